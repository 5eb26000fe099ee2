package hal

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/autopeer-io/remotepilot/pkg/log"
)

// SoftPWM generates a PWM signal on a plain digital output by toggling it
// from a goroutine. Timing follows the scheduler, which is precise enough
// for DC motor speed control.
type SoftPWM struct {
	pin    Pin
	period time.Duration
	duty   atomic.Uint64 // math.Float64bits of the percentage

	stop chan struct{}
	done chan struct{}
}

var _ PWM = (*SoftPWM)(nil)

// NewSoftPWM starts a signal at 0% duty cycle on pin.
func NewSoftPWM(pin Pin, freq float64) *SoftPWM {
	p := &SoftPWM{
		pin:    pin,
		period: time.Duration(float64(time.Second) / freq),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *SoftPWM) SetDutyCycle(percent float64) error {
	p.duty.Store(math.Float64bits(min(max(percent, 0), 100)))
	return nil
}

// Close stops the signal and leaves the pin low. The pin itself is not closed.
func (p *SoftPWM) Close() error {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	<-p.done
	return p.pin.Set(false)
}

func (p *SoftPWM) run() {
	defer close(p.done)

	failed := false
	set := func(high bool) {
		if err := p.pin.Set(high); err != nil && !failed {
			failed = true
			log.Error(err, "Software PWM lost its pin")
		}
	}

	for {
		select {
		case <-p.stop:
			return
		default:
		}

		on := time.Duration(math.Float64frombits(p.duty.Load()) / 100 * float64(p.period))
		if on > 0 {
			set(true)
			time.Sleep(on)
		}
		if off := p.period - on; off > 0 {
			set(false)
			time.Sleep(off)
		}
	}
}
