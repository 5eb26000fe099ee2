// Package loop paces frame capture and adapts the pace to the observed
// end-to-end latency.
package loop

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/remotepilot/internal/pkg/metrics"
	"github.com/autopeer-io/remotepilot/pkg/log"
	"github.com/autopeer-io/remotepilot/pkg/options"
)

const (
	// headroom is the margin kept between the loop period and the latency.
	headroom = 1.2

	// recoveryStep multiplies the rate on each recovery step.
	recoveryStep = 1.25
)

// Snapshot is the state of the driver at one instant.
type Snapshot struct {
	TargetRate    float64
	EffectiveRate float64
	LatencyEWMA   time.Duration
	Throttled     bool
}

// Driver paces the capture loop with a token bucket. Its one tunable is the
// target rate; when the latency average exceeds the loop period the
// effective rate backs off, and it climbs back once latency recovers.
type Driver struct {
	clock   clock.Clock
	limiter *rate.Limiter

	mu        sync.Mutex
	target    float64
	min       float64
	current   float64
	smoothing float64
	patience  int

	ewma    float64 // seconds
	samples int
	slow    int
	fast    int
}

// NewDriver creates a driver running at opts.TargetRate.
func NewDriver(opts *options.LoopOptions, clk clock.Clock) *Driver {
	if clk == nil {
		clk = clock.RealClock{}
	}
	d := &Driver{
		clock:     clk,
		limiter:   rate.NewLimiter(rate.Limit(opts.TargetRate), 1),
		target:    opts.TargetRate,
		min:       opts.MinRate,
		current:   opts.TargetRate,
		smoothing: opts.Smoothing,
		patience:  opts.Patience,
	}
	metrics.LoopRate.Set(d.current)
	return d
}

// Wait blocks until the next capture is due.
func (d *Driver) Wait(ctx context.Context) error {
	now := d.clock.Now()
	r := d.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	t := d.clock.NewTimer(delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		r.CancelAt(d.clock.Now())
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

// Observe feeds one end-to-end latency sample.
func (d *Driver) Observe(latency time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sample := latency.Seconds()
	if d.samples == 0 {
		d.ewma = sample
	} else {
		d.ewma = d.smoothing*sample + (1-d.smoothing)*d.ewma
	}
	d.samples++

	period := 1 / d.current
	switch {
	case d.ewma > period:
		d.fast = 0
		d.slow++
		if d.slow >= d.patience {
			d.slow = 0
			if r := math.Max(d.min, 1/(d.ewma*headroom)); r < d.current {
				log.Info("Latency exceeds loop period, throttling", "ewma", d.latency(), "from", d.current, "to", r)
				d.setRate(r)
			}
		}
	case d.ewma*headroom < period && d.current < d.target:
		d.slow = 0
		d.fast++
		if d.fast >= d.patience {
			d.fast = 0
			r := math.Min(d.target, d.current*recoveryStep)
			log.Info("Latency recovered, raising loop rate", "ewma", d.latency(), "from", d.current, "to", r)
			d.setRate(r)
		}
	default:
		d.slow, d.fast = 0, 0
	}
}

// SetTargetRate changes the target rate and restarts from it.
func (d *Driver) SetTargetRate(hz float64) {
	if hz <= 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.target = hz
	d.min = math.Min(d.min, hz)
	d.slow, d.fast = 0, 0
	d.setRate(hz)
}

// SetMinRate changes the throttle floor.
func (d *Driver) SetMinRate(hz float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.min = math.Min(hz, d.target)
	if d.current < d.min {
		d.setRate(d.min)
	}
}

// Snapshot returns the current state.
func (d *Driver) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Snapshot{
		TargetRate:    d.target,
		EffectiveRate: d.current,
		LatencyEWMA:   d.latency(),
		Throttled:     d.current < d.target,
	}
}

func (d *Driver) latency() time.Duration {
	return time.Duration(d.ewma * float64(time.Second))
}

// setRate is called with d.mu held.
func (d *Driver) setRate(hz float64) {
	d.current = hz
	d.limiter.SetLimitAt(d.clock.Now(), rate.Limit(hz))
	metrics.LoopRate.Set(hz)
}
