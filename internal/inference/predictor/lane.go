package predictor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"

	"github.com/autopeer-io/remotepilot/pkg/wire"
)

// Model input size of the track-following network.
const (
	InputWidth  = 160
	InputHeight = 120
)

// MaxFramePixels bounds the decoded size of a frame. A few kilobytes of
// JPEG can declare dimensions that take gigabytes to decode.
const MaxFramePixels = 4096 * 4096

// minTrackShare is the share of the lower half that must be dark before a
// centroid is trusted.
const minTrackShare = 0.01

// Lane estimates the steering class from the position of the dark track in
// the lower half of the frame, closest to the vehicle.
type Lane struct {
	darkThreshold float64
	deadZone      float64
}

// NewLane returns a Lane predictor. darkThreshold is the normalized
// luminance under which a pixel is track; deadZone is the normalized
// centroid offset still treated as straight ahead.
func NewLane(darkThreshold, deadZone float64) *Lane {
	return &Lane{darkThreshold: darkThreshold, deadZone: deadZone}
}

func (l *Lane) Name() string { return "lane" }

func (l *Lane) Predict(ctx context.Context, img []byte) (Prediction, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return Prediction{}, fmt.Errorf("decode frame header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxFramePixels {
		return Prediction{}, fmt.Errorf("%w: %dx%d", ErrFrameTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return Prediction{}, fmt.Errorf("decode frame: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	gray := Preprocess(src)

	threshold := uint8(math.Round(l.darkThreshold * 255))
	var sumX, count float64
	for y := InputHeight / 2; y < InputHeight; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+InputWidth]
		for x, v := range row {
			if v < threshold {
				sumX += float64(x)
				count++
			}
		}
	}

	if count < minTrackShare*InputWidth*InputHeight/2 {
		return Prediction{}, ErrNoTrack
	}

	center := float64(InputWidth-1) / 2
	offset := (sumX/count - center) / center

	p := Prediction{Class: wire.ClassForward, Value: clamp(float32(offset), -1, 1)}
	switch {
	case offset < -l.deadZone:
		p.Class = wire.ClassLeft
	case offset > l.deadZone:
		p.Class = wire.ClassRight
	}
	return p, nil
}

// Preprocess scales src to the model input size in grayscale.
func Preprocess(src image.Image) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, InputWidth, InputHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
