package inference

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/autopeer-io/remotepilot/internal/inference/predictor"
	"github.com/autopeer-io/remotepilot/internal/pkg/metrics"
	"github.com/autopeer-io/remotepilot/pkg/log"
)

// Device is the compute resource shared by all sessions. It admits at most
// a fixed number of predictions at a time.
type Device struct {
	predictor predictor.Predictor
	sem       *semaphore.Weighted
}

// NewDevice wraps p. concurrency 1 serializes every prediction.
func NewDevice(p predictor.Predictor, concurrency int64) *Device {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Device{
		predictor: p,
		sem:       semaphore.NewWeighted(concurrency),
	}
}

// Predict waits for the device and runs the predictor. A panicking
// predictor is reported as an error.
func (d *Device) Predict(ctx context.Context, img []byte) (p predictor.Prediction, err error) {
	start := time.Now()
	defer func() {
		metrics.PredictionLatency.WithLabelValues(d.predictor.Name()).Observe(time.Since(start).Seconds())
	}()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return predictor.Prediction{}, err
	}
	defer d.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("predictor %s panicked: %v", d.predictor.Name(), r)
			log.FromContext(ctx).Error(err, "Recovered from predictor panic")
		}
	}()

	return d.predictor.Predict(ctx, img)
}

// Name returns the name of the underlying predictor.
func (d *Device) Name() string {
	return d.predictor.Name()
}
