package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Fallback commands applied when a decision is stale or carries an inference error.
const (
	FallbackHold = "hold"
	FallbackStop = "stop"
)

// Policies applied to a captured frame when the in-flight window is full.
const (
	DropPolicyNewest     = "drop-newest"
	DropPolicyKeepLatest = "keep-latest"
)

var _ IOptions = (*LoopOptions)(nil)

// LoopOptions configures the capture cadence and the decision deadline policy.
type LoopOptions struct {
	// TargetRate is the desired loop rate in frames per second.
	TargetRate float64 `json:"target-rate" mapstructure:"target-rate"`

	// MinRate is the floor the throttle never goes below.
	MinRate float64 `json:"min-rate" mapstructure:"min-rate"`

	// Staleness is the maximum age of a decision, measured from frame capture.
	Staleness time.Duration `json:"staleness" mapstructure:"staleness"`

	// Fallback is the command applied on stale or failed decisions: hold or stop.
	Fallback string `json:"fallback" mapstructure:"fallback"`

	// DropPolicy decides what happens to a capture while the window is full.
	DropPolicy string `json:"drop-policy" mapstructure:"drop-policy"`

	// Speed is the PWM duty cycle, in percent, used for every motion command.
	Speed int `json:"speed" mapstructure:"speed"`

	// Smoothing is the EWMA weight of the newest latency sample, in (0, 1].
	Smoothing float64 `json:"smoothing" mapstructure:"smoothing"`

	// Patience is the number of consecutive samples needed before the rate changes.
	Patience int `json:"patience" mapstructure:"patience"`
}

func NewLoopOptions() *LoopOptions {
	return &LoopOptions{
		TargetRate: 20,
		MinRate:    5,
		Staleness:  150 * time.Millisecond,
		Fallback:   FallbackStop,
		DropPolicy: DropPolicyNewest,
		Speed:      4,
		Smoothing:  0.2,
		Patience:   10,
	}
}

func (o *LoopOptions) Validate() []error {
	var errs []error

	if o.TargetRate <= 0 {
		errs = append(errs, fmt.Errorf("--loop.target-rate must be positive, got %v", o.TargetRate))
	}
	if o.MinRate <= 0 || o.MinRate > o.TargetRate {
		errs = append(errs, fmt.Errorf("--loop.min-rate must be in (0, target-rate], got %v", o.MinRate))
	}
	if o.Staleness <= 0 {
		errs = append(errs, fmt.Errorf("--loop.staleness must be positive"))
	}
	switch o.Fallback {
	case FallbackHold, FallbackStop:
	default:
		errs = append(errs, fmt.Errorf("--loop.fallback must be %q or %q, got %q", FallbackHold, FallbackStop, o.Fallback))
	}
	switch o.DropPolicy {
	case DropPolicyNewest, DropPolicyKeepLatest:
	default:
		errs = append(errs, fmt.Errorf("--loop.drop-policy must be %q or %q, got %q", DropPolicyNewest, DropPolicyKeepLatest, o.DropPolicy))
	}
	if o.Speed < 0 || o.Speed > 100 {
		errs = append(errs, fmt.Errorf("--loop.speed must be a duty cycle in [0, 100]"))
	}
	if o.Smoothing <= 0 || o.Smoothing > 1 {
		errs = append(errs, fmt.Errorf("--loop.smoothing must be in (0, 1]"))
	}
	if o.Patience < 1 {
		errs = append(errs, fmt.Errorf("--loop.patience must be at least 1"))
	}

	return errs
}

func (o *LoopOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.Float64Var(&o.TargetRate, "loop.target-rate", o.TargetRate, "Target control loop rate in frames per second.")
	fs.Float64Var(&o.MinRate, "loop.min-rate", o.MinRate, "Lowest rate the loop throttles down to when the link is slow.")
	fs.DurationVar(&o.Staleness, "loop.staleness", o.Staleness, "Decisions older than this (from frame capture) are discarded.")
	fs.StringVar(&o.Fallback, "loop.fallback", o.Fallback, "Command applied on stale or failed decisions: 'hold' or 'stop'.")
	fs.StringVar(&o.DropPolicy, "loop.drop-policy", o.DropPolicy, "Window-full policy: 'drop-newest' or 'keep-latest'.")
	fs.IntVar(&o.Speed, "loop.speed", o.Speed, "Motor duty cycle in percent for motion commands.")
	fs.Float64Var(&o.Smoothing, "loop.smoothing", o.Smoothing, "Weight of the newest sample in the latency average.")
	fs.IntVar(&o.Patience, "loop.patience", o.Patience, "Consecutive latency samples required before the rate changes.")
}
