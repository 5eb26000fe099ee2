package edgeagent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
	"github.com/autopeer-io/remotepilot/internal/edgeagent/link"
	"github.com/autopeer-io/remotepilot/internal/edgeagent/loop"
	"github.com/autopeer-io/remotepilot/internal/pkg/metrics"
	"github.com/autopeer-io/remotepilot/pkg/log"
	"github.com/autopeer-io/remotepilot/pkg/options"
	"github.com/autopeer-io/remotepilot/pkg/wire"
)

var (
	// ErrReconnectBudgetExhausted is returned when every reconnect attempt
	// of a cycle failed.
	ErrReconnectBudgetExhausted = errors.New("reconnect budget exhausted")

	// ErrCaptureFailed is returned after too many consecutive capture errors.
	ErrCaptureFailed = errors.New("frame source failed")

	// ErrActuation is returned when the actuator rejected a command.
	ErrActuation = errors.New("actuator failed")

	errLinkClosed = errors.New("link closed by inference service")
)

// Alert kinds published when the agent stops on a fatal error.
const (
	AlertReconnectBudget = "reconnect_budget_exhausted"
	AlertCapture         = "capture_failed"
	AlertActuation       = "actuation_failed"
)

// Alerter is told about fatal conditions.
type Alerter interface {
	Alert(ctx context.Context, kind string, err error)
}

// tunables are the loop settings that can change while the agent runs.
type tunables struct {
	staleness  time.Duration
	fallback   string
	dropPolicy string
	speed      int
}

type counters struct {
	captured        atomic.Uint64
	sent            atomic.Uint64
	dropped         atomic.Uint64
	captureErrors   atomic.Uint64
	applied         atomic.Uint64
	stale           atomic.Uint64
	inferenceErrors atomic.Uint64
	abandoned       atomic.Uint64
	reconnects      atomic.Uint64
	peakInFlight    atomic.Int64
}

// notePeak raises the recorded in-flight peak to n.
func (c *counters) notePeak(n int) {
	for {
		cur := c.peakInFlight.Load()
		if int64(n) <= cur || c.peakInFlight.CompareAndSwap(cur, int64(n)) {
			return
		}
	}
}

// Agent runs the capture, send and act loop against one inference service.
type Agent struct {
	vehicleID string
	source    core.FrameSource
	act       actuation
	link      *link.Link
	driver    *loop.Driver
	state     *fsm.FSM
	clock     clock.Clock

	reconnect        *options.ReconnectOptions
	window           int
	maxCaptureErrors int
	tunables         atomic.Pointer[tunables]

	alerter Alerter
	out     io.Writer

	seq     atomic.Uint32
	started atomic.Int64
	stopped atomic.Int64
	stats   counters
}

// Option configures an Agent.
type Option func(a *Agent)

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(a *Agent) { a.clock = clk }
}

// WithAlerter publishes fatal conditions through al.
func WithAlerter(al Alerter) Option {
	return func(a *Agent) { a.alerter = al }
}

// WithOutput sets where the run summary is printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *Agent) { a.out = w }
}

// NewAgent creates an agent. The loop options may later be changed with
// UpdateLoop.
func NewAgent(
	vehicleID string,
	source core.FrameSource,
	actuator core.Actuator,
	lnk *link.Link,
	linkOpts *options.LinkOptions,
	loopOpts *options.LoopOptions,
	reconnectOpts *options.ReconnectOptions,
	maxCaptureErrors int,
	opts ...Option,
) *Agent {
	a := &Agent{
		vehicleID:        vehicleID,
		source:           source,
		act:              actuation{act: actuator},
		link:             lnk,
		state:            newLinkFSM(),
		clock:            clock.RealClock{},
		reconnect:        reconnectOpts,
		window:           linkOpts.Window,
		maxCaptureErrors: maxCaptureErrors,
		out:              os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.driver = loop.NewDriver(loopOpts, a.clock)
	a.storeTunables(loopOpts)
	return a
}

// UpdateLoop applies new loop settings. The drop policy takes effect on the
// next session.
func (a *Agent) UpdateLoop(opts *options.LoopOptions) {
	a.storeTunables(opts)
	a.driver.SetTargetRate(opts.TargetRate)
	a.driver.SetMinRate(opts.MinRate)
	log.Info("Loop settings updated",
		"targetRate", opts.TargetRate,
		"staleness", opts.Staleness,
		"fallback", opts.Fallback,
		"speed", opts.Speed,
	)
}

func (a *Agent) storeTunables(opts *options.LoopOptions) {
	a.tunables.Store(&tunables{
		staleness:  opts.Staleness,
		fallback:   opts.Fallback,
		dropPolicy: opts.DropPolicy,
		speed:      opts.Speed,
	})
}

// State returns the current link state.
func (a *Agent) State() string {
	return a.state.Current()
}

// Ready reports an error unless a session is open.
func (a *Agent) Ready() error {
	if s := a.State(); s != StateOnline {
		return fmt.Errorf("link is %s", s)
	}
	return nil
}

// Run drives the vehicle until ctx is done or a fatal error occurs. The
// vehicle is stopped on every way out.
func (a *Agent) Run(ctx context.Context) error {
	log.Info("Starting rpilot-edge-agent", "vehicleID", a.vehicleID, "server", a.link.Server(), "window", a.window)
	a.started.Store(a.clock.Now().UnixNano())

	err := a.run(ctx)

	reason := core.ReasonShutdown
	if err != nil {
		reason = core.ReasonFault
	}
	if serr := a.act.apply(context.WithoutCancel(ctx), core.Stop(reason)); serr != nil {
		log.Error(serr, "Failed to stop the vehicle")
		if err == nil {
			err = fmt.Errorf("%w: %w", ErrActuation, serr)
		}
	}
	a.stopped.Store(a.clock.Now().UnixNano())

	if err != nil {
		log.Error(err, "Agent stopped")
		a.alert(ctx, err)
	} else {
		a.transition(eventClose)
		log.Info("Agent shutting down...")
	}

	a.printSummary()
	return err
}

func (a *Agent) run(ctx context.Context) error {
	for {
		sess, err := a.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		err = a.serve(ctx, sess)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrCaptureFailed) || errors.Is(err, ErrActuation) {
			return err
		}

		log.Warn("Link lost", "error", err)
		a.transition(eventDrop)
		if err := a.apply(ctx, core.Stop(core.ReasonDisconnect)); err != nil {
			return err
		}
		a.stats.reconnects.Add(1)
	}
}

// connect opens a session, retrying with bounded exponential backoff.
func (a *Agent) connect(ctx context.Context) (*link.Session, error) {
	backoff := a.reconnect.Backoff()

	for attempt := 1; ; attempt++ {
		a.transition(eventDial)

		sess, err := a.link.Connect(ctx)
		if err == nil {
			metrics.ReconnectAttempts.WithLabelValues("success").Inc()
			a.transition(eventUp)
			log.Info("Connected to inference service", "server", a.link.Server(), "remote", sess.RemoteAddr().String(), "attempt", attempt)
			return sess, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		metrics.ReconnectAttempts.WithLabelValues("failure").Inc()
		if attempt >= a.reconnect.Budget {
			a.transition(eventExhausted)
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrReconnectBudgetExhausted, attempt, err)
		}

		a.transition(eventRefused)
		delay := backoff.Step()
		log.Warn("Connection failed, retrying", "attempt", attempt, "budget", a.reconnect.Budget, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-a.clock.After(delay):
		}
	}
}

// serve runs one session until it fails or ctx is done.
func (a *Agent) serve(ctx context.Context, sess *link.Session) error {
	win := link.NewWindow(a.window, a.tunables.Load().dropPolicy)

	g, gctx := errgroup.WithContext(ctx)

	var once sync.Once
	closeSession := func() {
		once.Do(func() {
			if ctx.Err() != nil {
				if err := sess.End(a.seq.Load() + 1); err != nil {
					log.Debug("End-of-session marker not sent", "error", err)
				}
			}
			_ = sess.Close()
		})
	}
	stop := context.AfterFunc(gctx, closeSession)
	defer stop()

	g.Go(func() error { return a.capture(gctx, win) })
	g.Go(func() error { return a.send(gctx, win, sess) })
	g.Go(func() error { return a.receive(gctx, win, sess) })

	err := g.Wait()
	closeSession()

	if n := win.Abandon(); n > 0 {
		a.stats.abandoned.Add(uint64(n))
		metrics.DecisionsTotal.WithLabelValues("abandoned").Add(float64(n))
		log.Info("Abandoned unanswered frames", "count", n)
	}

	if err == nil && ctx.Err() == nil {
		err = errLinkClosed
	}
	return err
}

// capture takes frames at the driver's pace and hands them to the window.
func (a *Agent) capture(ctx context.Context, win *link.Window) error {
	failures := 0
	for {
		if err := a.driver.Wait(ctx); err != nil {
			return nil
		}

		f, err := a.source.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			a.stats.captureErrors.Add(1)
			metrics.FramesTotal.WithLabelValues("capture_error").Inc()
			log.Error(err, "Frame capture failed", "consecutive", failures)

			if err := a.apply(ctx, core.Stop(core.ReasonCaptureError)); err != nil {
				return err
			}
			if failures >= a.maxCaptureErrors {
				return fmt.Errorf("%w: %d consecutive errors: %w", ErrCaptureFailed, failures, err)
			}
			continue
		}
		failures = 0

		if f.CapturedAt.IsZero() {
			f.CapturedAt = a.clock.Now()
		}
		seq := a.seq.Add(1)
		a.stats.captured.Add(1)

		replaced, err := win.Offer(link.Outgoing{Seq: seq, Frame: f})
		switch {
		case err != nil:
			a.stats.dropped.Add(1)
			metrics.FramesTotal.WithLabelValues("dropped").Inc()
			log.Debug("Window full, frame dropped", "seq", seq)
		case replaced:
			a.stats.dropped.Add(1)
			metrics.FramesTotal.WithLabelValues("replaced").Inc()
		}
	}
}

// send writes frames as the window admits them.
func (a *Agent) send(ctx context.Context, win *link.Window, sess *link.Session) error {
	for {
		o, err := win.Next(ctx)
		if err != nil {
			return nil
		}
		if err := sess.Send(o); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to send frame %d: %w", o.Seq, err)
		}
		a.stats.sent.Add(1)
		a.stats.notePeak(win.Peak())
		metrics.FramesTotal.WithLabelValues("sent").Inc()
	}
}

// receive reads decisions while frames are in flight and acts on them.
func (a *Agent) receive(ctx context.Context, win *link.Window, sess *link.Session) error {
	for {
		if err := win.WaitOutstanding(ctx); err != nil {
			return nil
		}

		d, err := sess.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return errLinkClosed
			}
			return fmt.Errorf("failed to receive decision: %w", err)
		}

		p, err := win.Resolve(d.Seq)
		if err != nil {
			return err
		}
		if err := a.handle(ctx, d, p); err != nil {
			return err
		}
	}
}

// handle turns a decision into a command, applying the fallback for stale
// and failed decisions.
func (a *Agent) handle(ctx context.Context, d wire.Decision, p link.Pending) error {
	t := a.tunables.Load()
	age := a.clock.Since(p.CapturedAt)

	var cmd core.ControlCommand
	switch {
	case d.Status == wire.StatusInferenceError:
		a.stats.inferenceErrors.Add(1)
		metrics.DecisionsTotal.WithLabelValues("inference_error").Inc()
		log.Debug("Inference failed on the server", "seq", d.Seq)
		cmd = a.fallback(t, core.ReasonInferenceError)
	case age > t.staleness:
		a.stats.stale.Add(1)
		metrics.DecisionsTotal.WithLabelValues("stale").Inc()
		log.Debug("Decision arrived too late", "seq", d.Seq, "age", age, "staleness", t.staleness)
		cmd = a.fallback(t, core.ReasonStale)
	default:
		a.stats.applied.Add(1)
		metrics.DecisionsTotal.WithLabelValues("applied").Inc()
		cmd = core.CommandFor(d, t.speed)
	}

	if err := a.apply(ctx, cmd); err != nil {
		return err
	}

	latency := a.clock.Since(p.CapturedAt)
	metrics.RoundTripLatency.Observe(latency.Seconds())
	a.driver.Observe(latency)
	return nil
}

func (a *Agent) fallback(t *tunables, reason string) core.ControlCommand {
	if t.fallback == options.FallbackHold {
		cmd := a.act.lastCommand()
		cmd.Reason = reason
		return cmd
	}
	return core.Stop(reason)
}

// apply executes cmd. When the actuator fails the vehicle is stopped and
// the error is fatal.
func (a *Agent) apply(ctx context.Context, cmd core.ControlCommand) error {
	err := a.act.apply(ctx, cmd)
	if err == nil {
		return nil
	}
	if !cmd.IsStop() {
		if serr := a.act.apply(context.WithoutCancel(ctx), core.Stop(core.ReasonFault)); serr != nil {
			log.Error(serr, "Failed to stop the vehicle after an actuator error")
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrActuation, cmd, err)
}

func (a *Agent) alert(ctx context.Context, err error) {
	if a.alerter == nil {
		return
	}

	kind := AlertActuation
	switch {
	case errors.Is(err, ErrReconnectBudgetExhausted):
		kind = AlertReconnectBudget
	case errors.Is(err, ErrCaptureFailed):
		kind = AlertCapture
	}
	a.alerter.Alert(ctx, kind, err)
}

// LastCommand returns the last command the actuator accepted.
func (a *Agent) LastCommand() core.ControlCommand {
	return a.act.lastCommand()
}
