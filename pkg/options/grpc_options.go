package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*GrpcOptions)(nil)

// GrpcOptions configures a gRPC client connection, e.g. to the model server.
type GrpcOptions struct {
	// Addr is the target address of the server.
	Addr string `json:"addr" mapstructure:"addr"`

	// Timeout is applied to every unary call that has no deadline of its own.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Method is the full RPC method name invoked by the client.
	Method string `json:"method" mapstructure:"method"`
}

// NewGrpcOptions returns the defaults for a model server on the local host.
func NewGrpcOptions() *GrpcOptions {
	return &GrpcOptions{
		Addr:    "127.0.0.1:8091",
		Timeout: 200 * time.Millisecond,
		Method:  "/remotepilot.model.v1.ModelService/Predict",
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *GrpcOptions) Validate() []error {
	var errors []error

	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, err)
	}

	if o.Timeout <= 0 {
		errors = append(errors, fmt.Errorf("grpc timeout must be positive, got %s", o.Timeout))
	}

	return errors
}

// AddFlags adds flags for the gRPC client to the specified FlagSet. The
// first prefix replaces the default "grpc" flag namespace.
func (o *GrpcOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, flagName("grpc", "addr", prefixes), o.Addr, "Address of the gRPC server.")
	fs.DurationVar(&o.Timeout, flagName("grpc", "timeout", prefixes), o.Timeout, "Deadline applied to each call.")
	fs.StringVar(&o.Method, flagName("grpc", "method", prefixes), o.Method, "Full name of the invoked RPC method.")
}
