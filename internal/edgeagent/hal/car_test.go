package hal

import (
	"context"
	"errors"
	"testing"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
)

type fakePin struct {
	high   bool
	writes int
	closed bool
	err    error
}

func (p *fakePin) Set(high bool) error {
	if p.err != nil {
		return p.err
	}
	p.high = high
	p.writes++
	return nil
}

func (p *fakePin) Close() error {
	p.closed = true
	return nil
}

type fakePWM struct {
	duty    float64
	changes int
}

func (p *fakePWM) SetDutyCycle(d float64) error {
	p.duty = d
	p.changes++
	return nil
}

func (p *fakePWM) Close() error { return nil }

type testWheel struct {
	pwm        *fakePWM
	dir1, dir2 *fakePin
}

func (w testWheel) state() (rot string, duty float64) {
	switch {
	case w.dir1.high && w.dir2.high:
		rot = "stop"
	case w.dir1.high:
		rot = "cw"
	case w.dir2.high:
		rot = "acw"
	default:
		rot = "none"
	}
	return rot, w.pwm.duty
}

func newTestCar() (*Car, [4]testWheel) {
	var tw [4]testWheel
	var wheels [4]*Wheel
	for i := range tw {
		tw[i] = testWheel{pwm: &fakePWM{}, dir1: &fakePin{}, dir2: &fakePin{}}
		wheels[i] = NewWheel(tw[i].pwm, tw[i].dir1, tw[i].dir2)
	}
	return NewCar(wheels[0], wheels[1], wheels[2], wheels[3]), tw
}

func TestCarApply(t *testing.T) {
	tests := []struct {
		dir  core.Direction
		rot  [4]string
		duty [4]float64
	}{
		{core.DirectionForward, [4]string{"acw", "cw", "acw", "cw"}, [4]float64{5.2, 5, 4.2, 4}},
		{core.DirectionLeft, [4]string{"cw", "cw", "cw", "cw"}, [4]float64{5.2, 5, 5.2, 4}},
		{core.DirectionRight, [4]string{"acw", "acw", "acw", "acw"}, [4]float64{5.2, 5, 5.2, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.dir.String(), func(t *testing.T) {
			car, wheels := newTestCar()
			if err := car.Apply(context.Background(), core.ControlCommand{Direction: tt.dir, Speed: 4}); err != nil {
				t.Fatal(err)
			}
			for i, w := range wheels {
				rot, duty := w.state()
				if rot != tt.rot[i] {
					t.Errorf("wheel %d rotation = %s, want %s", i, rot, tt.rot[i])
				}
				if diff := duty - tt.duty[i]; diff > 1e-9 || diff < -1e-9 {
					t.Errorf("wheel %d duty = %v, want %v", i, duty, tt.duty[i])
				}
			}
		})
	}
}

func TestCarStopBrakesEveryWheel(t *testing.T) {
	car, wheels := newTestCar()
	_ = car.Apply(context.Background(), core.ControlCommand{Direction: core.DirectionForward, Speed: 4})

	if err := car.Apply(context.Background(), core.Stop(core.ReasonShutdown)); err != nil {
		t.Fatal(err)
	}
	for i, w := range wheels {
		if rot, _ := w.state(); rot != "stop" {
			t.Errorf("wheel %d = %s after stop", i, rot)
		}
	}
}

func TestWheelSkipsRedundantWrites(t *testing.T) {
	pwm, d1, d2 := &fakePWM{}, &fakePin{}, &fakePin{}
	w := NewWheel(pwm, d1, d2)

	for range 3 {
		if err := w.Clockwise(40); err != nil {
			t.Fatal(err)
		}
	}
	if d1.writes != 1 || pwm.changes != 1 {
		t.Errorf("direction writes = %d, duty changes = %d; want 1 and 1", d1.writes, pwm.changes)
	}

	_ = w.Clockwise(150)
	if pwm.duty != 100 {
		t.Errorf("duty = %v, want clamped to 100", pwm.duty)
	}
}

func TestCarStopsOnHardwareError(t *testing.T) {
	car, wheels := newTestCar()
	boom := errors.New("bus error")
	wheels[1].dir2.err = boom

	err := car.Apply(context.Background(), core.ControlCommand{Direction: core.DirectionForward, Speed: 4})
	if !errors.Is(err, boom) {
		t.Fatalf("Apply() error = %v, want %v", err, boom)
	}
	for _, i := range []int{0, 2, 3} {
		if rot, _ := wheels[i].state(); rot != "stop" {
			t.Errorf("wheel %d = %s, want stop after a failure", i, rot)
		}
	}
}

func TestOpenCarReleasesPinsOnFailure(t *testing.T) {
	var opened []*fakePin
	open := func(bcm int) (Pin, error) {
		if bcm == DefaultLayout.RearLeft.PWM {
			return nil, errors.New("busy")
		}
		p := &fakePin{}
		opened = append(opened, p)
		return p, nil
	}

	if _, err := OpenCar(DefaultLayout, open); err == nil {
		t.Fatal("OpenCar() succeeded with a busy pin")
	}
	if len(opened) != 6 {
		t.Fatalf("opened %d pins before the failure, want 6", len(opened))
	}
	for i, p := range opened {
		if !p.closed {
			t.Errorf("pin %d left open", i)
		}
	}
}
