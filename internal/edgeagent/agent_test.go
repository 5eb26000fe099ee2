package edgeagent

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"k8s.io/utils/clock"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
	"github.com/autopeer-io/remotepilot/internal/edgeagent/link"
	"github.com/autopeer-io/remotepilot/pkg/options"
	"github.com/autopeer-io/remotepilot/pkg/wire"
)

// chanSource hands out the frames pushed by the test.
type chanSource struct {
	frames chan core.Frame
}

func newChanSource() *chanSource {
	return &chanSource{frames: make(chan core.Frame, 8)}
}

func (s *chanSource) push() {
	s.frames <- core.Frame{Image: []byte{0xff, 0xd8, 0xff, 0xd9}}
}

func (s *chanSource) Capture(ctx context.Context) (core.Frame, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-ctx.Done():
		return core.Frame{}, ctx.Err()
	}
}

type failingSource struct{}

func (failingSource) Capture(context.Context) (core.Frame, error) {
	return core.Frame{}, core.ErrCapture
}

type recordingActuator struct {
	mu   sync.Mutex
	cmds []core.ControlCommand
}

func (a *recordingActuator) Apply(_ context.Context, cmd core.ControlCommand) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cmds = append(a.cmds, cmd)
	return nil
}

func (a *recordingActuator) commands() []core.ControlCommand {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.ControlCommand(nil), a.cmds...)
}

func (a *recordingActuator) has(dir core.Direction, reason string) bool {
	for _, c := range a.commands() {
		if c.Direction == dir && c.Reason == reason {
			return true
		}
	}
	return false
}

type recordingAlerter struct {
	mu    sync.Mutex
	kinds []string
}

func (r *recordingAlerter) Alert(_ context.Context, kind string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

// fakeService plays the inference service over in-memory pipes. handle
// runs once per connection, numbered from 1.
type fakeService struct {
	handle func(n int, c *wire.Conn)
	dials  atomic.Int32
	wg     sync.WaitGroup
}

func (s *fakeService) dial(context.Context) (net.Conn, error) {
	n := s.dials.Add(1)
	client, server := net.Pipe()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer server.Close()
		s.handle(int(n), wire.NewConn(server, wire.ConnOptions{}))
	}()
	return client, nil
}

// drain reads frames until the end-of-session marker or an error and
// reports whether the marker arrived.
func drain(c *wire.Conn) bool {
	for {
		f, err := c.ReadFrame()
		if err != nil {
			return false
		}
		if f.EndOfSession() {
			return true
		}
	}
}

type testConfig struct {
	link      *options.LinkOptions
	loop      *options.LoopOptions
	reconnect *options.ReconnectOptions
}

func newTestConfig() *testConfig {
	cfg := &testConfig{
		link:      options.NewLinkOptions(),
		loop:      options.NewLoopOptions(),
		reconnect: options.NewReconnectOptions(),
	}
	cfg.link.IOTimeout = 2 * time.Second
	cfg.reconnect.Initial = time.Millisecond
	cfg.reconnect.Max = 5 * time.Millisecond
	cfg.reconnect.Budget = 3
	return cfg
}

func newTestAgent(cfg *testConfig, src core.FrameSource, act core.Actuator, dial link.DialFunc, clk clock.Clock, opts ...Option) *Agent {
	opts = append(opts, WithOutput(io.Discard))
	if clk != nil {
		opts = append(opts, WithClock(clk))
	}
	return NewAgent("car-test", src, act, link.New(cfg.link, dial), cfg.link, cfg.loop, cfg.reconnect, 3, opts...)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func runAgent(a *Agent) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	return cancel, done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestAgentRoundTrip(t *testing.T) {
	eos := make(chan bool, 1)
	svc := &fakeService{handle: func(_ int, c *wire.Conn) {
		f, err := c.ReadFrame()
		if err != nil {
			return
		}
		_ = c.WriteDecision(wire.Decision{Seq: f.Seq, Status: wire.StatusOK, Class: wire.ClassForward})
		eos <- drain(c)
	}}

	src := newChanSource()
	act := &recordingActuator{}
	clk := clocktesting.NewFakeClock(time.Now())
	a := newTestAgent(newTestConfig(), src, act, svc.dial, clk)

	cancel, done := runAgent(a)
	src.push()

	eventually(t, "the forward command", func() bool { return act.has(core.DirectionForward, core.ReasonDecision) })
	eventually(t, "the link to be online", func() bool { return a.State() == StateOnline })

	cancel()
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !<-eos {
		t.Error("the end-of-session marker was not sent on shutdown")
	}

	cmds := act.commands()
	forward := 0
	for _, c := range cmds {
		if c.Direction == core.DirectionForward {
			forward++
			if c.Speed != 4 {
				t.Errorf("forward speed = %d, want 4", c.Speed)
			}
		}
	}
	if forward != 1 {
		t.Errorf("forward applied %d times, want once: %v", forward, cmds)
	}
	if last := cmds[len(cmds)-1]; !last.IsStop() {
		t.Errorf("last command = %v, want stop", last)
	}
	if a.State() != StateClosed {
		t.Errorf("State() = %s, want %s", a.State(), StateClosed)
	}
	if s := a.Stats(); s.FramesSent != 1 || s.DecisionsApplied != 1 || s.PeakInFlight != 1 {
		t.Errorf("Stats() = %+v", s)
	}
	svc.wg.Wait()
}

func TestAgentStaleDecisionFallsBack(t *testing.T) {
	received := make(chan struct{})
	release := make(chan struct{})
	svc := &fakeService{handle: func(_ int, c *wire.Conn) {
		f, err := c.ReadFrame()
		if err != nil {
			return
		}
		close(received)
		<-release
		_ = c.WriteDecision(wire.Decision{Seq: f.Seq, Status: wire.StatusOK, Class: wire.ClassForward})
		drain(c)
	}}

	src := newChanSource()
	act := &recordingActuator{}
	clk := clocktesting.NewFakeClock(time.Now())
	a := newTestAgent(newTestConfig(), src, act, svc.dial, clk)

	cancel, done := runAgent(a)
	defer func() {
		cancel()
		_ = waitRun(t, done)
	}()

	src.push()
	<-received
	clk.Step(200 * time.Millisecond)
	close(release)

	eventually(t, "the stale fallback", func() bool { return act.has(core.DirectionStop, core.ReasonStale) })
	if act.has(core.DirectionForward, core.ReasonDecision) {
		t.Error("a stale decision was applied")
	}
	if s := a.Stats(); s.DecisionsStale != 1 || s.DecisionsApplied != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestAgentInferenceErrorHoldsLastCommand(t *testing.T) {
	first := make(chan struct{})
	svc := &fakeService{handle: func(_ int, c *wire.Conn) {
		f, err := c.ReadFrame()
		if err != nil {
			return
		}
		close(first)
		_ = c.WriteDecision(wire.Decision{Seq: f.Seq, Status: wire.StatusOK, Class: wire.ClassLeft, Value: -0.4})

		f, err = c.ReadFrame()
		if err != nil {
			return
		}
		_ = c.WriteDecision(wire.ErrorDecision(f.Seq))
		drain(c)
	}}

	cfg := newTestConfig()
	cfg.loop.Fallback = options.FallbackHold
	cfg.loop.Staleness = time.Minute

	src := newChanSource()
	act := &recordingActuator{}
	a := newTestAgent(cfg, src, act, svc.dial, nil)

	cancel, done := runAgent(a)
	defer func() {
		cancel()
		_ = waitRun(t, done)
	}()

	src.push()
	<-first
	eventually(t, "the left command", func() bool { return act.has(core.DirectionLeft, core.ReasonDecision) })
	src.push()
	eventually(t, "the held command", func() bool { return act.has(core.DirectionLeft, core.ReasonInferenceError) })

	if s := a.Stats(); s.InferenceErrors != 1 {
		t.Errorf("InferenceErrors = %d, want 1", s.InferenceErrors)
	}
}

func TestAgentReconnectBudgetExhausted(t *testing.T) {
	var dials atomic.Int32
	refuse := func(context.Context) (net.Conn, error) {
		dials.Add(1)
		return nil, syscall.ECONNREFUSED
	}

	act := &recordingActuator{}
	al := &recordingAlerter{}
	a := newTestAgent(newTestConfig(), newChanSource(), act, refuse, nil, WithAlerter(al))

	_, done := runAgent(a)
	err := waitRun(t, done)

	if !errors.Is(err, ErrReconnectBudgetExhausted) {
		t.Fatalf("Run() error = %v, want ErrReconnectBudgetExhausted", err)
	}
	if !errors.Is(err, syscall.ECONNREFUSED) {
		t.Errorf("Run() error = %v, want the last dial error wrapped", err)
	}
	if n := dials.Load(); n != 3 {
		t.Errorf("dialed %d times, want 3", n)
	}
	if last := a.LastCommand(); !last.IsStop() {
		t.Errorf("LastCommand() = %v, want stop", last)
	}
	if a.State() != StateFailed {
		t.Errorf("State() = %s, want %s", a.State(), StateFailed)
	}
	if len(al.kinds) != 1 || al.kinds[0] != AlertReconnectBudget {
		t.Errorf("alerts = %v", al.kinds)
	}
}

func TestAgentStopsAndReconnectsOnLinkLoss(t *testing.T) {
	svc := &fakeService{handle: func(n int, c *wire.Conn) {
		f, err := c.ReadFrame()
		if err != nil {
			return
		}
		_ = c.WriteDecision(wire.Decision{Seq: f.Seq, Status: wire.StatusOK, Class: wire.ClassForward})
		if n == 1 {
			// Drop the first connection right after answering.
			return
		}
		drain(c)
	}}

	src := newChanSource()
	act := &recordingActuator{}
	a := newTestAgent(newTestConfig(), src, act, svc.dial, nil)

	cancel, done := runAgent(a)
	src.push()
	eventually(t, "the forward command", func() bool { return act.has(core.DirectionForward, core.ReasonDecision) })

	// The loss shows on the next send.
	src.push()
	eventually(t, "a second connection", func() bool { return svc.dials.Load() >= 2 })
	eventually(t, "the disconnect stop", func() bool { return act.has(core.DirectionStop, core.ReasonDisconnect) })

	cancel()
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if s := a.Stats(); s.Reconnects < 1 {
		t.Errorf("Reconnects = %d, want at least 1", s.Reconnects)
	}
}

func TestAgentRejectsOutOfOrderDecision(t *testing.T) {
	svc := &fakeService{handle: func(n int, c *wire.Conn) {
		f, err := c.ReadFrame()
		if err != nil {
			return
		}
		if n == 1 {
			_ = c.WriteDecision(wire.Decision{Seq: f.Seq + 10, Status: wire.StatusOK})
		}
		drain(c)
	}}

	src := newChanSource()
	act := &recordingActuator{}
	a := newTestAgent(newTestConfig(), src, act, svc.dial, nil)

	cancel, done := runAgent(a)
	defer func() {
		cancel()
		_ = waitRun(t, done)
	}()
	src.push()

	eventually(t, "a reconnect after the protocol error", func() bool { return svc.dials.Load() >= 2 })
	if act.has(core.DirectionForward, core.ReasonDecision) {
		t.Error("a decision for an unknown frame was applied")
	}
}

func TestAgentCaptureFailuresAreFatal(t *testing.T) {
	svc := &fakeService{handle: func(_ int, c *wire.Conn) { drain(c) }}

	cfg := newTestConfig()
	cfg.loop.TargetRate = 200
	act := &recordingActuator{}
	al := &recordingAlerter{}
	a := newTestAgent(cfg, failingSource{}, act, svc.dial, nil, WithAlerter(al))

	_, done := runAgent(a)
	err := waitRun(t, done)

	if !errors.Is(err, ErrCaptureFailed) || !errors.Is(err, core.ErrCapture) {
		t.Fatalf("Run() error = %v, want ErrCaptureFailed", err)
	}
	for _, c := range act.commands() {
		if !c.IsStop() {
			t.Errorf("non-stop command %v issued with a failing camera", c)
		}
	}
	if s := a.Stats(); s.CaptureErrors != 3 {
		t.Errorf("CaptureErrors = %d, want 3", s.CaptureErrors)
	}
	if len(al.kinds) != 1 || al.kinds[0] != AlertCapture {
		t.Errorf("alerts = %v", al.kinds)
	}
}

func TestAgentUpdateLoop(t *testing.T) {
	a := newTestAgent(newTestConfig(), newChanSource(), &recordingActuator{}, nil, nil)

	opts := options.NewLoopOptions()
	opts.TargetRate = 8
	opts.Fallback = options.FallbackHold
	a.UpdateLoop(opts)

	if s := a.Stats(); s.TargetRate != 8 || s.EffectiveRate != 8 {
		t.Errorf("rates = %v / %v, want 8", s.EffectiveRate, s.TargetRate)
	}
	if a.tunables.Load().fallback != options.FallbackHold {
		t.Error("fallback not updated")
	}
}
