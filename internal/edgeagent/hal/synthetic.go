// Package hal implements the camera and motor ports for bench runs and for
// the four-wheel Raspberry Pi car.
package hal

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"time"

	"github.com/autopeer-io/remotepilot/internal/edgeagent/core"
)

// SyntheticSource renders a road with a dark lane that sways from side to
// side, so the loop can run without a camera.
type SyntheticSource struct {
	width, height int
	quality       int
	frame         int
	buf           bytes.Buffer
}

var _ core.FrameSource = (*SyntheticSource)(nil)

func NewSyntheticSource(width, height, quality int) *SyntheticSource {
	return &SyntheticSource{width: width, height: height, quality: quality}
}

func (s *SyntheticSource) Capture(ctx context.Context) (core.Frame, error) {
	if err := ctx.Err(); err != nil {
		return core.Frame{}, err
	}

	img := image.NewGray(image.Rect(0, 0, s.width, s.height))
	center := float64(s.width) * (0.5 + 0.3*math.Sin(float64(s.frame)/15))
	half := float64(s.width) / 16
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			c := uint8(200)
			if math.Abs(float64(x)-center) < half {
				c = 30
			}
			img.SetGray(x, y, color.Gray{Y: c})
		}
	}
	s.frame++

	s.buf.Reset()
	if err := jpeg.Encode(&s.buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return core.Frame{}, fmt.Errorf("%w: encode synthetic frame: %w", core.ErrCapture, err)
	}

	return core.Frame{
		Image:      bytes.Clone(s.buf.Bytes()),
		CapturedAt: time.Now(),
	}, nil
}
