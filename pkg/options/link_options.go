package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*LinkOptions)(nil)

// LinkOptions configures the edge side of the frame/decision connection.
type LinkOptions struct {
	// Server is the inference service address, host:port.
	Server string `json:"server" mapstructure:"server"`

	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`

	// IOTimeout is the session timeout clock: a read or write that makes no
	// progress for this long tears the session down.
	IOTimeout time.Duration `json:"io-timeout" mapstructure:"io-timeout"`

	// Window is the maximum number of frames awaiting a decision.
	Window int `json:"window" mapstructure:"window"`

	// MaxPayload is the largest encoded frame accepted on the wire, in bytes.
	MaxPayload uint32 `json:"max-payload" mapstructure:"max-payload"`
}

func NewLinkOptions() *LinkOptions {
	return &LinkOptions{
		Server:      "127.0.0.1:5000",
		DialTimeout: 2 * time.Second,
		IOTimeout:   2 * time.Second,
		Window:      2,
		MaxPayload:  4 << 20,
	}
}

func (o *LinkOptions) Validate() []error {
	var errs []error

	if err := ValidateAddress(o.Server); err != nil {
		errs = append(errs, fmt.Errorf("--link.server: %w", err))
	}
	if o.Window < 1 {
		errs = append(errs, fmt.Errorf("--link.window must be at least 1, got %d", o.Window))
	}
	if o.MaxPayload == 0 {
		errs = append(errs, fmt.Errorf("--link.max-payload must be positive"))
	}
	if o.DialTimeout <= 0 || o.IOTimeout <= 0 {
		errs = append(errs, fmt.Errorf("--link.dial-timeout and --link.io-timeout must be positive"))
	}

	return errs
}

func (o *LinkOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Server, "link.server", o.Server, "Address of the inference service (host:port).")
	fs.DurationVar(&o.DialTimeout, "link.dial-timeout", o.DialTimeout, "Timeout of a single connection attempt.")
	fs.DurationVar(&o.IOTimeout, "link.io-timeout", o.IOTimeout, "A session with no read or write progress for this long is torn down.")
	fs.IntVar(&o.Window, "link.window", o.Window, "Maximum number of frames in flight without a decision.")
	fs.Uint32Var(&o.MaxPayload, "link.max-payload", o.MaxPayload, "Maximum encoded frame size in bytes.")
}
