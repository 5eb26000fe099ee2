// Package core defines the hardware ports of the edge agent and the values
// exchanged across them.
package core

import (
	"context"
	"errors"
	"time"
)

// ErrCapture marks a failed camera read.
var ErrCapture = errors.New("capture failed")

// Frame is one encoded camera image.
type Frame struct {
	// Image is the JPEG-encoded picture.
	Image []byte

	// CapturedAt is the local time the image was taken. Decision age is
	// measured from here.
	CapturedAt time.Time
}

// FrameSource is the camera. Capture blocks until a frame is available.
type FrameSource interface {
	Capture(ctx context.Context) (Frame, error)
}

// Actuator drives the motors. Applying a STOP command must always be safe,
// whatever the previous command was.
type Actuator interface {
	Apply(ctx context.Context, cmd ControlCommand) error
}
