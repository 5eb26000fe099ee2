//go:build linux && camera

package hal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
	"github.com/autopeer-io/remotepilot/pkg/log"
)

// CameraSource captures JPEG frames from the car camera through the pipeline
//
//	source ! videoconvert ! videoscale ! videorate ! capsfilter ! jpegenc ! appsink
//
// The appsink keeps a single buffer and drops the rest.
type CameraSource struct {
	cfg      CameraConfig
	pipeline *gst.Pipeline
	frames   *mailbox

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ core.FrameSource = (*CameraSource)(nil)

// OpenCamera builds the pipeline and sets it to PLAYING.
func OpenCamera(cfg CameraConfig) (*CameraSource, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	elems, err := newElements(cfg.Element, "videoconvert", "videoscale", "videorate", "capsfilter", "jpegenc")
	if err != nil {
		return nil, err
	}
	src, capsfilter, enc := elems[0], elems[4], elems[5]

	if cfg.Element == "v4l2src" && cfg.Device != "" {
		if err := src.SetProperty("device", cfg.Device); err != nil {
			return nil, fmt.Errorf("failed to set camera device: %w", err)
		}
	}
	if err := capsfilter.SetProperty("caps", gst.NewCapsFromString(cfg.caps())); err != nil {
		return nil, fmt.Errorf("failed to set camera caps: %w", err)
	}
	if err := enc.SetProperty("quality", cfg.Quality); err != nil {
		return nil, fmt.Errorf("failed to set jpeg quality: %w", err)
	}

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 1)
	sink.SetProperty("drop", true)

	if err := pipeline.AddMany(append(elems, sink.Element)...); err != nil {
		return nil, fmt.Errorf("failed to add camera elements: %w", err)
	}
	if err := gst.ElementLinkMany(append(elems, sink.Element)...); err != nil {
		return nil, fmt.Errorf("failed to link camera pipeline: %w", err)
	}

	c := &CameraSource{
		cfg:      cfg,
		pipeline: pipeline,
		frames:   newMailbox(),
		stop:     make(chan struct{}),
	}
	sink.SetCallbacks(&app.SinkCallbacks{NewSampleFunc: c.onSample})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("failed to start camera pipeline: %w", err)
	}

	c.wg.Add(1)
	go c.watch()

	log.Info("Camera started", "element", cfg.Element, "caps", cfg.caps(), "quality", cfg.Quality)
	return c, nil
}

func newElements(names ...string) ([]*gst.Element, error) {
	elems := make([]*gst.Element, 0, len(names))
	for _, name := range names {
		e, err := gst.NewElement(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", name, err)
		}
		elems = append(elems, e)
	}
	return elems, nil
}

// onSample copies the encoded frame out of the GStreamer buffer, which is
// reused once the callback returns.
func (c *CameraSource) onSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}
	img := bytes.Clone(data)
	buffer.Unmap()

	c.frames.put(core.Frame{Image: img, CapturedAt: time.Now()})
	return gst.FlowOK
}

// watch polls the bus until Close or until the pipeline fails.
func (c *CameraSource) watch() {
	defer c.wg.Done()

	bus := c.pipeline.GetPipelineBus()
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			c.frames.fail(errors.New("camera stream ended"))
			return
		case gst.MessageError:
			gerr := msg.ParseError()
			err := errors.New(gerr.Error())
			log.Error(err, "Camera pipeline failed", "debug", gerr.DebugString())
			c.frames.fail(err)
			return
		}
	}
}

// Capture returns the newest frame the camera produced since the last call.
func (c *CameraSource) Capture(ctx context.Context) (core.Frame, error) {
	return c.frames.take(ctx, c.cfg.FrameTimeout)
}

// Close stops the pipeline.
func (c *CameraSource) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()
		err = c.pipeline.SetState(gst.StateNull)
	})
	return err
}
