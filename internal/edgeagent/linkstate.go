package edgeagent

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/remotepilot/internal/pkg/metrics"
	fsmutil "github.com/autopeer-io/remotepilot/internal/pkg/util/fsm"
	"github.com/autopeer-io/remotepilot/pkg/log"
)

// Link states.
const (
	StateIdle       = "idle"
	StateConnecting = "connecting"
	StateOnline     = "online"
	StateLost       = "lost"
	StateBackoff    = "backoff"
	StateFailed     = "failed"
	StateClosed     = "closed"
)

// Link events.
const (
	eventDial      = "dial"
	eventUp        = "up"
	eventRefused   = "refused"
	eventDrop      = "drop"
	eventExhausted = "exhausted"
	eventClose     = "close"
)

var linkStates = []string{StateIdle, StateConnecting, StateOnline, StateLost, StateBackoff, StateFailed, StateClosed}

// newLinkFSM returns the lifecycle of the connection to the inference
// service:
//
//	idle -> connecting -> online -> lost -> connecting ...
//	connecting -> backoff -> connecting ... -> failed
//	any live state -> closed
func newLinkFSM() *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventDial, Src: []string{StateIdle, StateLost, StateBackoff}, Dst: StateConnecting},
			{Name: eventUp, Src: []string{StateConnecting}, Dst: StateOnline},
			{Name: eventRefused, Src: []string{StateConnecting}, Dst: StateBackoff},
			{Name: eventDrop, Src: []string{StateOnline}, Dst: StateLost},
			{Name: eventExhausted, Src: []string{StateConnecting, StateBackoff}, Dst: StateFailed},
			{Name: eventClose, Src: []string{StateIdle, StateConnecting, StateOnline, StateLost, StateBackoff}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"enter_state": fsmutil.WrapEvent(func(_ context.Context, e *fsm.Event) error {
				for _, s := range linkStates {
					v := 0.0
					if s == e.Dst {
						v = 1
					}
					metrics.LinkState.WithLabelValues(s).Set(v)
				}
				log.Debug("Link state changed", "event", e.Event, "from", e.Src, "to", e.Dst)
				return nil
			}),
		},
	)
}

// transition fires event on the link state machine. Events not allowed in
// the current state are logged and ignored.
func (a *Agent) transition(event string) {
	if err := fsmutil.IgnoreNoTransition(a.state.Event(context.Background(), event)); err != nil {
		log.Debug("Ignored link event", "event", event, "state", a.state.Current(), "error", err)
	}
}
