package hal

import (
	"context"
	"errors"
	"fmt"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
)

// Per-wheel speed corrections of the reference chassis, in duty cycle
// percent. The same signal turns the wheels at different speeds, so these
// need tuning for each car.
const (
	// LeftFrontRearBias is the speed difference between the two left wheels.
	LeftFrontRearBias = 1.0
	// RightFrontRearBias is the speed difference between the two right wheels.
	RightFrontRearBias = 1.0
	// LeftRightBias is the speed difference between the left and right sides.
	LeftRightBias = 0.2
	// rotateBoost is added to the rear left wheel while rotating in place.
	rotateBoost = 1.0
)

// Pin is a digital output.
type Pin interface {
	Set(high bool) error
	Close() error
}

// PWM is a pulse-width modulated output.
type PWM interface {
	SetDutyCycle(percent float64) error
	Close() error
}

type rotation uint8

const (
	stopped rotation = iota
	clockwise
	anticlockwise
)

// Wheel is one motor behind an H-bridge: a PWM input for speed and two
// direction inputs.
type Wheel struct {
	pwm        PWM
	dir1, dir2 Pin

	last rotation
	duty float64
}

func NewWheel(pwm PWM, dir1, dir2 Pin) *Wheel {
	return &Wheel{pwm: pwm, dir1: dir1, dir2: dir2, duty: -1}
}

// Clockwise turns the wheel clockwise at the given duty cycle.
func (w *Wheel) Clockwise(duty float64) error {
	if w.last != clockwise {
		if err := w.direction(true, false); err != nil {
			return err
		}
		w.last = clockwise
	}
	return w.setDuty(duty)
}

// Anticlockwise turns the wheel anticlockwise at the given duty cycle.
func (w *Wheel) Anticlockwise(duty float64) error {
	if w.last != anticlockwise {
		if err := w.direction(false, true); err != nil {
			return err
		}
		w.last = anticlockwise
	}
	return w.setDuty(duty)
}

// Stop brakes the wheel by driving both direction inputs high.
func (w *Wheel) Stop() error {
	if err := w.direction(true, true); err != nil {
		return err
	}
	w.last = stopped
	return nil
}

func (w *Wheel) Close() error {
	return errors.Join(w.Stop(), w.pwm.Close(), w.dir1.Close(), w.dir2.Close())
}

func (w *Wheel) direction(d1, d2 bool) error {
	if err := w.dir1.Set(d1); err != nil {
		return err
	}
	return w.dir2.Set(d2)
}

func (w *Wheel) setDuty(duty float64) error {
	duty = min(max(duty, 0), 100)
	if duty == w.duty {
		return nil
	}
	if err := w.pwm.SetDutyCycle(duty); err != nil {
		return err
	}
	w.duty = duty
	return nil
}

// Car is the four-wheel differential vehicle. Left and right wheels are
// mounted mirrored, so moving forward turns the left wheels anticlockwise
// and the right wheels clockwise.
type Car struct {
	frontLeft, frontRight *Wheel
	rearLeft, rearRight   *Wheel
}

var _ core.Actuator = (*Car)(nil)

func NewCar(frontLeft, frontRight, rearLeft, rearRight *Wheel) *Car {
	return &Car{
		frontLeft:  frontLeft,
		frontRight: frontRight,
		rearLeft:   rearLeft,
		rearRight:  rearRight,
	}
}

// Apply executes cmd. On a hardware error the car is stopped.
func (c *Car) Apply(_ context.Context, cmd core.ControlCommand) error {
	var err error
	speed := float64(cmd.Speed)

	switch cmd.Direction {
	case core.DirectionStop:
		return c.Stop()
	case core.DirectionForward:
		err = c.MoveForward(speed)
	case core.DirectionLeft:
		err = c.RotateLeft(speed)
	case core.DirectionRight:
		err = c.RotateRight(speed)
	default:
		err = fmt.Errorf("unsupported direction %s", cmd.Direction)
	}

	if err != nil {
		return errors.Join(err, c.Stop())
	}
	return nil
}

func (c *Car) MoveForward(speed float64) error {
	return errors.Join(
		c.frontLeft.Anticlockwise(speed+LeftFrontRearBias+LeftRightBias),
		c.frontRight.Clockwise(speed+RightFrontRearBias),
		c.rearLeft.Anticlockwise(speed+LeftRightBias),
		c.rearRight.Clockwise(speed),
	)
}

// RotateLeft spins the car in place, counterclockwise seen from above.
func (c *Car) RotateLeft(speed float64) error {
	return errors.Join(
		c.frontLeft.Clockwise(speed+LeftFrontRearBias+LeftRightBias),
		c.frontRight.Clockwise(speed+RightFrontRearBias),
		c.rearLeft.Clockwise(speed+rotateBoost+LeftRightBias),
		c.rearRight.Clockwise(speed),
	)
}

// RotateRight spins the car in place, clockwise seen from above.
func (c *Car) RotateRight(speed float64) error {
	return errors.Join(
		c.frontLeft.Anticlockwise(speed+LeftFrontRearBias+LeftRightBias),
		c.frontRight.Anticlockwise(speed+RightFrontRearBias),
		c.rearLeft.Anticlockwise(speed+rotateBoost+LeftRightBias),
		c.rearRight.Anticlockwise(speed),
	)
}

// Stop brakes all four wheels. Every wheel is attempted even if one fails.
func (c *Car) Stop() error {
	return errors.Join(
		c.frontLeft.Stop(),
		c.frontRight.Stop(),
		c.rearLeft.Stop(),
		c.rearRight.Stop(),
	)
}

// Close stops the car and releases the pins.
func (c *Car) Close() error {
	return errors.Join(
		c.frontLeft.Close(),
		c.frontRight.Close(),
		c.rearLeft.Close(),
		c.rearRight.Close(),
	)
}

// WheelPins are the BCM GPIO numbers wiring one wheel.
type WheelPins struct {
	PWM, Dir1, Dir2 int
}

// Layout is the wiring of the four wheels.
type Layout struct {
	FrontLeft, FrontRight WheelPins
	RearLeft, RearRight   WheelPins

	// PWMFrequency in Hz.
	PWMFrequency float64
}

// DefaultLayout is the wiring of the reference chassis. Physical header
// pins 33/35/37, 32/31/29, 40/38/36 and 15/13/11 map to these BCM numbers.
var DefaultLayout = Layout{
	FrontLeft:    WheelPins{PWM: 13, Dir1: 19, Dir2: 26},
	FrontRight:   WheelPins{PWM: 12, Dir1: 6, Dir2: 5},
	RearLeft:     WheelPins{PWM: 21, Dir1: 20, Dir2: 16},
	RearRight:    WheelPins{PWM: 22, Dir1: 27, Dir2: 17},
	PWMFrequency: 1500,
}

// OpenFunc opens a GPIO output by BCM number.
type OpenFunc func(bcm int) (Pin, error)

// OpenCar opens every pin of layout and returns a stopped car. Pins opened
// before a failure are closed again.
func OpenCar(layout Layout, open OpenFunc) (*Car, error) {
	var opened []Pin
	fail := func(err error) (*Car, error) {
		for _, p := range opened {
			_ = p.Close()
		}
		return nil, err
	}

	wheel := func(wp WheelPins) (*Wheel, error) {
		pins := make([]Pin, 0, 3)
		for _, n := range []int{wp.PWM, wp.Dir1, wp.Dir2} {
			p, err := open(n)
			if err != nil {
				return nil, fmt.Errorf("failed to open GPIO %d: %w", n, err)
			}
			opened = append(opened, p)
			pins = append(pins, p)
		}
		return NewWheel(NewSoftPWM(pins[0], layout.PWMFrequency), pins[1], pins[2]), nil
	}

	var wheels [4]*Wheel
	for i, wp := range []WheelPins{layout.FrontLeft, layout.FrontRight, layout.RearLeft, layout.RearRight} {
		w, err := wheel(wp)
		if err != nil {
			for _, w := range wheels[:i] {
				_ = w.pwm.Close()
			}
			return fail(err)
		}
		wheels[i] = w
	}

	car := NewCar(wheels[0], wheels[1], wheels[2], wheels[3])
	if err := car.Stop(); err != nil {
		_ = car.Close()
		return nil, err
	}
	return car, nil
}
