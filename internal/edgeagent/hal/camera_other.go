//go:build !linux || !camera

package hal

import (
	"context"
	"errors"
	"fmt"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
)

// CameraSource is only available on Linux builds tagged camera, which link
// against GStreamer.
type CameraSource struct{}

func OpenCamera(cfg CameraConfig) (*CameraSource, error) {
	return nil, fmt.Errorf("camera %s: build with -tags camera on linux: %w", cfg.Element, errors.ErrUnsupported)
}

func (c *CameraSource) Capture(context.Context) (core.Frame, error) {
	return core.Frame{}, errors.ErrUnsupported
}

func (c *CameraSource) Close() error { return nil }
