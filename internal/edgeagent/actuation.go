package edgeagent

import (
	"context"
	"sync"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
	"github.com/autopeer-io/remotepilot/internal/pkg/metrics"
)

// actuation serializes access to the actuator and remembers the last
// command it accepted.
type actuation struct {
	mu   sync.Mutex
	act  core.Actuator
	last core.ControlCommand
}

func (a *actuation) apply(ctx context.Context, cmd core.ControlCommand) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.act.Apply(ctx, cmd); err != nil {
		return err
	}
	a.last = cmd
	metrics.CommandsTotal.WithLabelValues(cmd.Direction.String(), cmd.Reason).Inc()
	return nil
}

func (a *actuation) lastCommand() core.ControlCommand {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}
