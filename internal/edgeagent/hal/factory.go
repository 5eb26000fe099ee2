package hal

import (
	"fmt"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
	"github.com/autopeer-io/remotepilot/pkg/options"
)

// NewFrameSource creates the frame source selected by opts.
func NewFrameSource(opts *options.HALOptions) (core.FrameSource, error) {
	switch opts.Source {
	case "synthetic":
		return NewSyntheticSource(opts.Width, opts.Height, opts.Quality), nil
	case "dir":
		src, err := NewDirSource(opts.SourceDir)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "camera":
		cam, err := OpenCamera(CameraConfig{
			Element:      opts.CameraElement,
			Device:       opts.CameraDevice,
			Width:        opts.Width,
			Height:       opts.Height,
			FPS:          opts.CameraFPS,
			Quality:      opts.Quality,
			FrameTimeout: opts.FrameTimeout,
		})
		if err != nil {
			return nil, err
		}
		return cam, nil
	default:
		return nil, fmt.Errorf("unknown frame source %q", opts.Source)
	}
}

// NewActuator creates the actuator selected by opts.
func NewActuator(opts *options.HALOptions) (core.Actuator, error) {
	switch opts.Actuator {
	case "log":
		return NewLogActuator(), nil
	case "car":
		car, err := OpenCar(DefaultLayout, func(bcm int) (Pin, error) {
			p, err := OpenSysfsPin(opts.GPIORoot, bcm)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
		if err != nil {
			return nil, err
		}
		return car, nil
	default:
		return nil, fmt.Errorf("unknown actuator %q", opts.Actuator)
	}
}
