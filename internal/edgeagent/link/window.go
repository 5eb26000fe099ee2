package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
	"github.com/autopeer-io/remotepilot/pkg/options"
	"github.com/autopeer-io/remotepilot/pkg/wire"
)

var (
	// ErrWindowFull is returned by Offer when the frame was dropped.
	ErrWindowFull = errors.New("in-flight window full")

	// ErrUnsolicited marks a decision received while no frame was in flight.
	ErrUnsolicited = errors.New("decision without a frame in flight")
)

// Outgoing is a captured frame with its sequence number.
type Outgoing struct {
	Seq   uint32
	Frame core.Frame
}

// Pending is a frame sent and not yet answered.
type Pending struct {
	Seq        uint32
	CapturedAt time.Time
}

// Window tracks the frames in flight on one session and holds at most one
// frame waiting to be sent. It never lets more than its size of frames
// await a decision.
type Window struct {
	size       int
	keepLatest bool

	mu       sync.Mutex
	inflight []Pending
	next     *Outgoing
	peak     int
	changed  chan struct{}
}

// NewWindow creates a window of the given size. policy is one of
// options.DropPolicyNewest or options.DropPolicyKeepLatest.
func NewWindow(size int, policy string) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		size:       size,
		keepLatest: policy == options.DropPolicyKeepLatest,
		inflight:   make([]Pending, 0, size),
		changed:    make(chan struct{}),
	}
}

// broadcast wakes every waiter. Callers hold w.mu.
func (w *Window) broadcast() {
	close(w.changed)
	w.changed = make(chan struct{})
}

// Offer hands a captured frame to the sender without blocking.
//
// With drop-newest, o is dropped and ErrWindowFull returned when the window
// is full or a frame is already waiting to be sent. With keep-latest, o
// replaces the waiting frame; replaced reports that an older frame was
// dropped that way.
func (w *Window) Offer(o Outgoing) (replaced bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	busy := w.next != nil || len(w.inflight) >= w.size
	if busy && !w.keepLatest {
		return false, ErrWindowFull
	}

	replaced = w.next != nil
	w.next = &o
	w.broadcast()
	return replaced, nil
}

// Next blocks until a frame is waiting and the window has room, then
// records the frame as in flight and returns it.
func (w *Window) Next(ctx context.Context) (Outgoing, error) {
	for {
		w.mu.Lock()
		if w.next != nil && len(w.inflight) < w.size {
			o := *w.next
			w.next = nil
			w.inflight = append(w.inflight, Pending{Seq: o.Seq, CapturedAt: o.Frame.CapturedAt})
			w.peak = max(w.peak, len(w.inflight))
			w.broadcast()
			w.mu.Unlock()
			return o, nil
		}
		changed := w.changed
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return Outgoing{}, ctx.Err()
		case <-changed:
		}
	}
}

// WaitOutstanding blocks until at least one frame is in flight.
func (w *Window) WaitOutstanding(ctx context.Context) error {
	for {
		w.mu.Lock()
		n := len(w.inflight)
		changed := w.changed
		w.mu.Unlock()

		if n > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Resolve matches a decision to the oldest frame in flight. Decisions arrive
// in frame order, so any other sequence number is a protocol error.
func (w *Window) Resolve(seq uint32) (Pending, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.inflight) == 0 {
		return Pending{}, &wire.ProtocolError{Op: "resolve decision", Seq: seq, Err: ErrUnsolicited}
	}
	oldest := w.inflight[0]
	if oldest.Seq != seq {
		return Pending{}, &wire.ProtocolError{
			Op:  "resolve decision",
			Seq: seq,
			Err: fmt.Errorf("%w: expected decision for %d", wire.ErrSequence, oldest.Seq),
		}
	}

	w.inflight = w.inflight[1:]
	w.broadcast()
	return oldest, nil
}

// Abandon forgets every frame in flight and the frame waiting to be sent.
// It returns the number of frames that will never be answered.
func (w *Window) Abandon() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(w.inflight)
	w.inflight = w.inflight[:0]
	w.next = nil
	w.broadcast()
	return n
}

// Peak returns the largest number of frames ever in flight at once.
func (w *Window) Peak() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.peak
}
