package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/util/wait"
)

var _ IOptions = (*ReconnectOptions)(nil)

// ReconnectOptions configures the bounded exponential backoff used by the
// edge agent after a lost or refused connection.
type ReconnectOptions struct {
	Initial time.Duration `json:"initial" mapstructure:"initial"`
	Factor  float64       `json:"factor" mapstructure:"factor"`
	Max     time.Duration `json:"max" mapstructure:"max"`
	Jitter  float64       `json:"jitter" mapstructure:"jitter"`

	// Budget is the number of consecutive failed attempts tolerated before
	// the agent gives up.
	Budget int `json:"budget" mapstructure:"budget"`
}

func NewReconnectOptions() *ReconnectOptions {
	return &ReconnectOptions{
		Initial: 200 * time.Millisecond,
		Factor:  2,
		Max:     5 * time.Second,
		Jitter:  0.2,
		Budget:  10,
	}
}

// Backoff returns a fresh backoff sequence for one reconnect cycle.
func (o *ReconnectOptions) Backoff() wait.Backoff {
	return wait.Backoff{
		Duration: o.Initial,
		Factor:   o.Factor,
		Jitter:   o.Jitter,
		Steps:    o.Budget,
		Cap:      o.Max,
	}
}

func (o *ReconnectOptions) Validate() []error {
	var errs []error

	if o.Initial <= 0 || o.Max < o.Initial {
		errs = append(errs, fmt.Errorf("--reconnect.initial must be positive and not above --reconnect.max"))
	}
	if o.Factor < 1 {
		errs = append(errs, fmt.Errorf("--reconnect.factor must be at least 1, got %v", o.Factor))
	}
	if o.Jitter < 0 {
		errs = append(errs, fmt.Errorf("--reconnect.jitter must not be negative"))
	}
	if o.Budget < 1 {
		errs = append(errs, fmt.Errorf("--reconnect.budget must be at least 1"))
	}

	return errs
}

func (o *ReconnectOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.Initial, "reconnect.initial", o.Initial, "Delay before the first reconnect attempt.")
	fs.Float64Var(&o.Factor, "reconnect.factor", o.Factor, "Multiplier applied to the delay after each failed attempt.")
	fs.DurationVar(&o.Max, "reconnect.max", o.Max, "Upper bound of the reconnect delay.")
	fs.Float64Var(&o.Jitter, "reconnect.jitter", o.Jitter, "Random extra delay as a fraction of the current delay.")
	fs.IntVar(&o.Budget, "reconnect.budget", o.Budget, "Consecutive failed attempts before the agent stops with an error.")
}
