package options

import (
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*HttpOptions)(nil)

// HttpOptions configures the health and metrics endpoint of a binary.
type HttpOptions struct {
	// Addr is the bind address. An empty address disables the server.
	Addr string `json:"addr" mapstructure:"addr"`

	// ShutdownTimeout bounds the graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewHttpOptions creates a HttpOptions object with default parameters.
func NewHttpOptions() *HttpOptions {
	return &HttpOptions{
		Addr:            "0.0.0.0:9090",
		ShutdownTimeout: 5 * time.Second,
	}
}

// Enabled reports whether the HTTP server should be started.
func (o *HttpOptions) Enabled() bool {
	return o != nil && o.Addr != ""
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *HttpOptions) Validate() []error {
	if !o.Enabled() {
		return nil
	}

	errors := []error{}

	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, err)
	}

	return errors
}

// AddFlags adds flags related to the HTTP server to the specified FlagSet.
func (o *HttpOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, flagName("http", "addr", prefixes), o.Addr,
		"Bind address of the /healthz, /readyz and /metrics endpoints. Empty disables it.")
	fs.DurationVar(&o.ShutdownTimeout, flagName("http", "shutdown-timeout", prefixes), o.ShutdownTimeout,
		"Grace period for in-flight HTTP requests on shutdown.")
}
