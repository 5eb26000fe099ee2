package core

import (
	"fmt"

	"github.com/autopeer-io/remotepilot/pkg/wire"
)

// Direction is a motion primitive of the vehicle.
type Direction uint8

const (
	DirectionStop Direction = iota
	DirectionForward
	DirectionLeft
	DirectionRight
)

func (d Direction) String() string {
	switch d {
	case DirectionStop:
		return "stop"
	case DirectionForward:
		return "forward"
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Reasons a command was issued.
const (
	ReasonDecision       = "decision"
	ReasonStale          = "stale"
	ReasonInferenceError = "inference_error"
	ReasonDisconnect     = "disconnect"
	ReasonCaptureError   = "capture_error"
	ReasonFault          = "fault"
	ReasonShutdown       = "shutdown"
)

// ControlCommand is what the actuator executes.
type ControlCommand struct {
	Direction Direction

	// Speed is the motor duty cycle in percent. Ignored by STOP.
	Speed int

	// Reason records why the command was issued, for logs and metrics.
	Reason string
}

// Stop returns a STOP command.
func Stop(reason string) ControlCommand {
	return ControlCommand{Direction: DirectionStop, Reason: reason}
}

// IsStop reports whether c stops the vehicle.
func (c ControlCommand) IsStop() bool {
	return c.Direction == DirectionStop
}

func (c ControlCommand) String() string {
	if c.IsStop() {
		return fmt.Sprintf("stop (%s)", c.Reason)
	}
	return fmt.Sprintf("%s@%d (%s)", c.Direction, c.Speed, c.Reason)
}

// CommandFor maps an OK decision to a motion at the given speed.
func CommandFor(d wire.Decision, speed int) ControlCommand {
	var dir Direction
	switch d.Class {
	case wire.ClassForward:
		dir = DirectionForward
	case wire.ClassLeft:
		dir = DirectionLeft
	case wire.ClassRight:
		dir = DirectionRight
	default:
		return Stop(ReasonFault)
	}
	return ControlCommand{Direction: dir, Speed: speed, Reason: ReasonDecision}
}
