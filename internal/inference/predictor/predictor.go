package predictor

import (
	"context"
	"errors"
	"fmt"

	"github.com/autopeer-io/remotepilot/pkg/wire"
)

// ErrNoTrack is returned when a frame does not show anything to follow.
var ErrNoTrack = errors.New("no track visible in frame")

// ErrFrameTooLarge is returned for frames whose header declares more than
// MaxFramePixels pixels. They are rejected before any pixel is decoded.
var ErrFrameTooLarge = errors.New("frame dimensions too large")

// Prediction is the output of a model for one frame.
type Prediction struct {
	Class wire.Class

	// Value is the continuous steering estimate in [-1, 1], negative to the left.
	Value float32

	// Probabilities per class, indexed by wire.Class. Nil when the model
	// does not produce them.
	Probabilities []float32
}

// Predictor turns an encoded image into a steering prediction. It may block
// on a compute device and must honor ctx cancellation.
type Predictor interface {
	Name() string
	Predict(ctx context.Context, image []byte) (Prediction, error)
}

// FromProbabilities picks the most likely class, first index winning ties,
// and derives Value as p(right) - p(left).
func FromProbabilities(p []float32) (Prediction, error) {
	if len(p) != wire.NumClasses {
		return Prediction{}, fmt.Errorf("expected %d class probabilities, got %d", wire.NumClasses, len(p))
	}

	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}

	return Prediction{
		Class:         wire.Class(best),
		Value:         clamp(p[wire.ClassRight]-p[wire.ClassLeft], -1, 1),
		Probabilities: p,
	}, nil
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
