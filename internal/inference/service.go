package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/autopeer-io/remotepilot/internal/inference/archive"
	"github.com/autopeer-io/remotepilot/internal/pkg/metrics"
	"github.com/autopeer-io/remotepilot/pkg/log"
	"github.com/autopeer-io/remotepilot/pkg/options"
	"github.com/autopeer-io/remotepilot/pkg/wire"
)

// Service accepts edge agent sessions and answers every frame with a
// decision, in the order the frames arrived.
type Service struct {
	ln      net.Listener
	device  *Device
	archive archive.Archiver
	opts    *options.ServeOptions
}

// NewService creates a service answering sessions accepted on ln.
func NewService(ln net.Listener, device *Device, arch archive.Archiver, opts *options.ServeOptions) *Service {
	if arch == nil {
		arch = archive.Discard{}
	}
	return &Service{
		ln:      ln,
		device:  device,
		archive: arch,
		opts:    opts,
	}
}

// Addr returns the listening address.
func (s *Service) Addr() net.Addr {
	return s.ln.Addr()
}

// Accept waits for the next edge agent.
func (s *Service) Accept(ctx context.Context) (*Session, error) {
	stop := context.AfterFunc(ctx, func() {
		// Unblocks Accept; the listener is not reused after ctx is done.
		_ = s.ln.Close()
	})
	defer stop()

	nc, err := s.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	return newSession(nc, wire.ConnOptions{
		MaxPayload:   s.opts.MaxPayload,
		ReadTimeout:  s.opts.IdleTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}), nil
}

// Serve runs sess until the edge agent ends it, the connection fails, a
// protocol rule is broken or ctx is done. It returns nil for a clean end.
// No decision is written once Serve has started tearing the session down.
func (s *Service) Serve(ctx context.Context, sess *Session) error {
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	sess.log.Info("Session started")

	g, gctx := errgroup.WithContext(log.IntoContext(ctx, sess.log))
	stop := context.AfterFunc(gctx, func() { _ = sess.Close() })
	defer stop()

	rb := newReorderBuffer()
	slots := semaphore.NewWeighted(int64(s.opts.PipelineDepth))
	var tasks sync.WaitGroup

	// The reader returns only on teardown. The end-of-session marker
	// cancels the predictions still running; their frames were abandoned.
	g.Go(func() error {
		return s.read(gctx, sess, rb, slots, &tasks)
	})

	g.Go(func() error {
		return s.write(gctx, sess, rb)
	})

	err := g.Wait()
	_ = sess.Close()
	tasks.Wait()

	if err == nil && ctx.Err() != nil {
		err = net.ErrClosed
	}
	reason, err := classify(err)
	metrics.SessionsClosed.WithLabelValues(reason).Inc()
	sess.summary(reason, rb.pending())
	return err
}

// read decodes frames and starts one prediction task per frame. At most
// PipelineDepth tasks run at once; further frames wait in the socket.
func (s *Service) read(ctx context.Context, sess *Session, rb *reorderBuffer, slots *semaphore.Weighted, tasks *sync.WaitGroup) error {
	for {
		f, err := sess.conn.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errPeerClosed
			}
			return err
		}

		if f.EndOfSession() {
			sess.log.Debug("Received end-of-session marker", "seq", f.Seq)
			return errEndOfSession
		}

		if err := sess.guard.Check(f.Seq); err != nil {
			return err
		}
		sess.frames.Add(1)

		if err := slots.Acquire(ctx, 1); err != nil {
			return err
		}

		rb.expect(f.Seq)
		tasks.Add(1)
		go func() {
			defer tasks.Done()
			defer slots.Release(1)
			rb.complete(s.predict(ctx, sess, f))
		}()
	}
}

// write emits decisions in arrival order until the session is torn down.
func (s *Service) write(ctx context.Context, sess *Session, rb *reorderBuffer) error {
	for {
		for _, d := range rb.pop() {
			if ctx.Err() != nil {
				return nil
			}
			if err := sess.conn.WriteDecision(d); err != nil {
				return err
			}
			sess.decisions.Add(1)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-rb.notify:
		}
	}
}

// predict runs the device for one frame. Failures become an inline
// INFERENCE_ERROR decision and the frame is archived.
func (s *Service) predict(ctx context.Context, sess *Session, f wire.FramePacket) wire.Decision {
	start := time.Now()
	p, err := s.device.Predict(ctx, f.Payload)
	sess.inferenceNs.Add(int64(time.Since(start)))

	if err != nil {
		if ctx.Err() == nil {
			sess.failures.Add(1)
			metrics.PredictionsTotal.WithLabelValues("error").Inc()
			sess.log.Warn("Prediction failed", "seq", f.Seq, "error", err)
			s.archive.Archive(sess.ID, f.Seq, f.Payload)
		}
		return wire.ErrorDecision(f.Seq)
	}

	metrics.PredictionsTotal.WithLabelValues("ok").Inc()
	return wire.Decision{Seq: f.Seq, Status: wire.StatusOK, Class: p.Class, Value: p.Value}
}

// Run accepts sessions until ctx is done and serves each one concurrently.
func (s *Service) Run(ctx context.Context) error {
	log.Info("Accepting edge agent sessions", "addr", s.ln.Addr().String(), "predictor", s.device.Name())

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		sess, err := s.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener closed: %w", err)
			}
			log.Warn("Accept failed", "error", err)
			select {
			case <-time.After(50 * time.Millisecond):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Serve(ctx, sess); err != nil {
				sess.log.Warn("Session torn down", "error", err)
			}
		}()
	}
}
