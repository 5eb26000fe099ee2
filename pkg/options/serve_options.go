package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*ServeOptions)(nil)

// ServeOptions configures the listening side of the inference service.
type ServeOptions struct {
	// Addr is the TCP bind address for edge agent sessions.
	Addr string `json:"addr" mapstructure:"addr"`

	// MaxPayload is the largest frame payload accepted, in bytes.
	MaxPayload uint32 `json:"max-payload" mapstructure:"max-payload"`

	// IdleTimeout tears a session down when no frame arrives for this long.
	IdleTimeout time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`

	// WriteTimeout bounds the write of a single decision.
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`

	// PipelineDepth bounds the predictions running concurrently within one session.
	PipelineDepth int `json:"pipeline-depth" mapstructure:"pipeline-depth"`
}

func NewServeOptions() *ServeOptions {
	return &ServeOptions{
		Addr:          "0.0.0.0:5000",
		MaxPayload:    4 << 20,
		IdleTimeout:   10 * time.Second,
		WriteTimeout:  2 * time.Second,
		PipelineDepth: 4,
	}
}

func (o *ServeOptions) Validate() []error {
	var errs []error

	if err := ValidateAddress(o.Addr); err != nil {
		errs = append(errs, fmt.Errorf("--serve.addr: %w", err))
	}
	if o.MaxPayload == 0 {
		errs = append(errs, fmt.Errorf("--serve.max-payload must be positive"))
	}
	if o.IdleTimeout <= 0 || o.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("--serve.idle-timeout and --serve.write-timeout must be positive"))
	}
	if o.PipelineDepth < 1 {
		errs = append(errs, fmt.Errorf("--serve.pipeline-depth must be at least 1"))
	}

	return errs
}

func (o *ServeOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, "serve.addr", o.Addr, "TCP address edge agents connect to.")
	fs.Uint32Var(&o.MaxPayload, "serve.max-payload", o.MaxPayload, "Maximum frame payload size in bytes.")
	fs.DurationVar(&o.IdleTimeout, "serve.idle-timeout", o.IdleTimeout, "Close a session that sends no frame for this long.")
	fs.DurationVar(&o.WriteTimeout, "serve.write-timeout", o.WriteTimeout, "Deadline for writing one decision.")
	fs.IntVar(&o.PipelineDepth, "serve.pipeline-depth", o.PipelineDepth, "Predictions that may run concurrently within one session.")
}
