package inference

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/autopeer-io/remotepilot/pkg/log"
	"github.com/autopeer-io/remotepilot/pkg/wire"
)

// Reasons a session ended, used in logs and metrics.
const (
	reasonEndOfSession = "eos"
	reasonPeerClosed   = "closed"
	reasonIdle         = "idle"
	reasonProtocol     = "protocol"
	reasonTransport    = "transport"
	reasonShutdown     = "shutdown"
)

var (
	// errEndOfSession stops the reader after the end-of-session marker.
	errEndOfSession = errors.New("end of session")

	// errPeerClosed is returned when the edge agent closed the connection
	// without sending the end-of-session marker.
	errPeerClosed = errors.New("connection closed by peer")
)

// Session is one connected edge agent.
type Session struct {
	ID   string
	conn *wire.Conn

	startedAt time.Time
	guard     wire.SequenceGuard
	log       log.Logger

	frames      atomic.Uint64
	decisions   atomic.Uint64
	failures    atomic.Uint64
	inferenceNs atomic.Int64
}

func newSession(nc net.Conn, opts wire.ConnOptions) *Session {
	id := uuid.NewString()
	return &Session{
		ID:        id,
		conn:      wire.NewConn(nc, opts),
		startedAt: time.Now(),
		log:       log.WithValues("session", id, "remote", nc.RemoteAddr().String()),
	}
}

// Close closes the connection. Pending decisions are not sent.
func (s *Session) Close() error {
	return s.conn.Close()
}

// summary logs the per-session counters. unanswered counts the frames whose
// decision was never written.
func (s *Session) summary(reason string, unanswered int) {
	frames := s.frames.Load()
	var meanMs float64
	if n := s.decisions.Load(); n > 0 {
		meanMs = float64(s.inferenceNs.Load()) / float64(n) / float64(time.Millisecond)
	}
	elapsed := time.Since(s.startedAt)
	lastSeq, _ := s.guard.Last()

	s.log.Info("Session ended",
		"reason", reason,
		"duration", elapsed.Round(time.Millisecond),
		"frames", frames,
		"decisions", s.decisions.Load(),
		"inferenceErrors", s.failures.Load(),
		"unanswered", unanswered,
		"lastSeq", lastSeq,
		"meanInferenceMs", meanMs,
		"fps", float64(frames)/elapsed.Seconds(),
	)
}

// classify maps the error that ended a session to a reason and to the
// error returned to the caller. Clean ends return nil.
func classify(err error) (string, error) {
	var ne net.Error
	switch {
	case err == nil, errors.Is(err, errEndOfSession):
		return reasonEndOfSession, nil
	case errors.Is(err, errPeerClosed):
		return reasonPeerClosed, nil
	case wire.IsProtocolError(err):
		return reasonProtocol, err
	case errors.As(err, &ne) && ne.Timeout():
		return reasonIdle, err
	case errors.Is(err, net.ErrClosed), errors.Is(err, context.Canceled):
		return reasonShutdown, nil
	default:
		return reasonTransport, err
	}
}
