package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*HALOptions)(nil)

// HALOptions selects the camera and motor backends of the edge agent.
type HALOptions struct {
	// Source is the frame source: synthetic, dir or camera.
	Source string `json:"source" mapstructure:"source"`

	// SourceDir holds the JPEG files replayed by the dir source.
	SourceDir string `json:"source-dir" mapstructure:"source-dir"`

	// Width and Height of synthetic and camera frames.
	Width  int `json:"width" mapstructure:"width"`
	Height int `json:"height" mapstructure:"height"`

	// Quality is the JPEG quality of synthetic and camera frames.
	Quality int `json:"quality" mapstructure:"quality"`

	// CameraElement is the GStreamer source of the camera: libcamerasrc or v4l2src.
	CameraElement string `json:"camera-element" mapstructure:"camera-element"`
	// CameraDevice is the video node read by v4l2src.
	CameraDevice string        `json:"camera-device" mapstructure:"camera-device"`
	CameraFPS    int           `json:"camera-fps" mapstructure:"camera-fps"`
	FrameTimeout time.Duration `json:"frame-timeout" mapstructure:"frame-timeout"`

	// Actuator is the motor backend: log or car.
	Actuator string `json:"actuator" mapstructure:"actuator"`

	// GPIORoot is the sysfs GPIO directory used by the car actuator.
	GPIORoot string `json:"gpio-root" mapstructure:"gpio-root"`

	// MaxCaptureErrors is the number of consecutive capture failures that stop the agent.
	MaxCaptureErrors int `json:"max-capture-errors" mapstructure:"max-capture-errors"`
}

func NewHALOptions() *HALOptions {
	return &HALOptions{
		Source:           "synthetic",
		Width:            320,
		Height:           240,
		Quality:          80,
		CameraElement:    "libcamerasrc",
		CameraDevice:     "/dev/video0",
		CameraFPS:        30,
		FrameTimeout:     time.Second,
		Actuator:         "log",
		GPIORoot:         "/sys/class/gpio",
		MaxCaptureErrors: 5,
	}
}

func (o *HALOptions) Validate() []error {
	var errs []error

	switch o.Source {
	case "synthetic":
		if o.Width <= 0 || o.Height <= 0 {
			errs = append(errs, fmt.Errorf("--hal.width and --hal.height must be positive"))
		}
	case "dir":
		if o.SourceDir == "" {
			errs = append(errs, fmt.Errorf("--hal.source-dir is required with --hal.source=dir"))
		}
	case "camera":
		if o.Width <= 0 || o.Height <= 0 {
			errs = append(errs, fmt.Errorf("--hal.width and --hal.height must be positive"))
		}
		if o.CameraElement != "libcamerasrc" && o.CameraElement != "v4l2src" {
			errs = append(errs, fmt.Errorf("--hal.camera-element must be 'libcamerasrc' or 'v4l2src', got %q", o.CameraElement))
		}
		if o.CameraFPS <= 0 {
			errs = append(errs, fmt.Errorf("--hal.camera-fps must be positive"))
		}
		if o.FrameTimeout <= 0 {
			errs = append(errs, fmt.Errorf("--hal.frame-timeout must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("--hal.source must be 'synthetic', 'dir' or 'camera', got %q", o.Source))
	}
	if o.Quality < 1 || o.Quality > 100 {
		errs = append(errs, fmt.Errorf("--hal.quality must be in [1, 100]"))
	}
	if o.Actuator != "log" && o.Actuator != "car" {
		errs = append(errs, fmt.Errorf("--hal.actuator must be 'log' or 'car', got %q", o.Actuator))
	}
	if o.MaxCaptureErrors < 1 {
		errs = append(errs, fmt.Errorf("--hal.max-capture-errors must be at least 1"))
	}

	return errs
}

func (o *HALOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Source, "hal.source", o.Source, "Frame source: 'synthetic', 'dir' or 'camera'.")
	fs.StringVar(&o.SourceDir, "hal.source-dir", o.SourceDir, "Directory of JPEG frames replayed by the dir source.")
	fs.IntVar(&o.Width, "hal.width", o.Width, "Width of synthetic and camera frames.")
	fs.IntVar(&o.Height, "hal.height", o.Height, "Height of synthetic and camera frames.")
	fs.IntVar(&o.Quality, "hal.quality", o.Quality, "JPEG quality of synthetic and camera frames.")
	fs.StringVar(&o.CameraElement, "hal.camera-element", o.CameraElement, "GStreamer camera source: 'libcamerasrc' or 'v4l2src'.")
	fs.StringVar(&o.CameraDevice, "hal.camera-device", o.CameraDevice, "Video device read by v4l2src.")
	fs.IntVar(&o.CameraFPS, "hal.camera-fps", o.CameraFPS, "Frame rate requested from the camera.")
	fs.DurationVar(&o.FrameTimeout, "hal.frame-timeout", o.FrameTimeout, "Longest wait for a camera frame before the capture fails.")
	fs.StringVar(&o.Actuator, "hal.actuator", o.Actuator, "Motor backend: 'log' or 'car'.")
	fs.StringVar(&o.GPIORoot, "hal.gpio-root", o.GPIORoot, "sysfs GPIO root used by the car actuator.")
	fs.IntVar(&o.MaxCaptureErrors, "hal.max-capture-errors", o.MaxCaptureErrors, "Consecutive capture failures tolerated before the agent stops.")
}
