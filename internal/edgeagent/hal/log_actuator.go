package hal

import (
	"context"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
	"github.com/autopeer-io/remotepilot/pkg/log"
)

// LogActuator only logs the commands it receives.
type LogActuator struct {
	last core.ControlCommand
	log  log.Logger
}

var _ core.Actuator = (*LogActuator)(nil)

func NewLogActuator() *LogActuator {
	return &LogActuator{log: log.WithName("actuator")}
}

func (a *LogActuator) Apply(_ context.Context, cmd core.ControlCommand) error {
	if cmd.Direction != a.last.Direction || cmd.Speed != a.last.Speed {
		a.log.Info("Motion changed", "direction", cmd.Direction.String(), "speed", cmd.Speed, "reason", cmd.Reason)
	} else {
		a.log.Debug("Motion unchanged", "direction", cmd.Direction.String(), "reason", cmd.Reason)
	}
	a.last = cmd
	return nil
}
