package hal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
)

// CameraConfig describes the capture pipeline of the car camera.
type CameraConfig struct {
	// Element is the GStreamer source: libcamerasrc or v4l2src.
	Element string
	// Device is the video node read by v4l2src.
	Device string

	Width, Height int
	FPS           int
	Quality       int

	// FrameTimeout bounds the wait for the next frame in Capture.
	FrameTimeout time.Duration
}

// caps is the raw format requested from the camera before encoding.
func (c CameraConfig) caps() string {
	return fmt.Sprintf("video/x-raw,width=%d,height=%d,framerate=%d/1", c.Width, c.Height, c.FPS)
}

// mailbox holds the newest frame produced by the pipeline. Older frames are
// overwritten, so a slow loop always gets the most recent picture.
type mailbox struct {
	mu     sync.Mutex
	frame  core.Frame
	fresh  bool
	err    error
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) put(f core.Frame) {
	m.mu.Lock()
	m.frame, m.fresh = f, true
	m.mu.Unlock()
	m.signal()
}

// fail records a pipeline failure. Every later take returns it.
func (m *mailbox) fail(err error) {
	m.mu.Lock()
	if m.err == nil {
		m.err = err
	}
	m.mu.Unlock()
	m.signal()
}

func (m *mailbox) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// take returns the newest frame not returned before, waiting at most timeout.
func (m *mailbox) take(ctx context.Context, timeout time.Duration) (core.Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		m.mu.Lock()
		if m.err != nil {
			err := m.err
			m.mu.Unlock()
			return core.Frame{}, fmt.Errorf("%w: %w", core.ErrCapture, err)
		}
		if m.fresh {
			f := m.frame
			m.fresh = false
			m.mu.Unlock()
			return f, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return core.Frame{}, ctx.Err()
		case <-timer.C:
			return core.Frame{}, fmt.Errorf("%w: no camera frame within %s", core.ErrCapture, timeout)
		case <-m.notify:
		}
	}
}
