package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Predictor kinds.
const (
	PredictorStatic = "static"
	PredictorLane   = "lane"
	PredictorGRPC   = "grpc"
)

var _ IOptions = (*PredictorOptions)(nil)

// PredictorOptions selects and tunes the model used by the inference service.
type PredictorOptions struct {
	Kind string `json:"kind" mapstructure:"kind"`

	// Concurrency is the number of predictions the shared device runs at once.
	Concurrency int64 `json:"concurrency" mapstructure:"concurrency"`

	// StaticClass is returned by the static predictor (forward, left or right).
	StaticClass string `json:"static-class" mapstructure:"static-class"`

	// DarkThreshold is the normalized luminance under which a pixel counts as track.
	DarkThreshold float64 `json:"dark-threshold" mapstructure:"dark-threshold"`

	// DeadZone is the centroid offset, in [0, 1], still considered straight ahead.
	DeadZone float64 `json:"dead-zone" mapstructure:"dead-zone"`

	// Model configures the model server used by the grpc predictor.
	Model *GrpcOptions `json:"model" mapstructure:"model"`
}

func NewPredictorOptions() *PredictorOptions {
	return &PredictorOptions{
		Kind:          PredictorLane,
		Concurrency:   1,
		StaticClass:   "forward",
		DarkThreshold: 0.35,
		DeadZone:      0.15,
		Model:         NewGrpcOptions(),
	}
}

func (o *PredictorOptions) Validate() []error {
	var errs []error

	switch o.Kind {
	case PredictorStatic, PredictorLane:
	case PredictorGRPC:
		errs = append(errs, o.Model.Validate()...)
	default:
		errs = append(errs, fmt.Errorf("--predictor.kind must be one of static, lane, grpc; got %q", o.Kind))
	}
	if o.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("--predictor.concurrency must be at least 1"))
	}
	if o.DarkThreshold <= 0 || o.DarkThreshold >= 1 {
		errs = append(errs, fmt.Errorf("--predictor.dark-threshold must be in (0, 1)"))
	}
	if o.DeadZone < 0 || o.DeadZone >= 1 {
		errs = append(errs, fmt.Errorf("--predictor.dead-zone must be in [0, 1)"))
	}

	return errs
}

func (o *PredictorOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Kind, "predictor.kind", o.Kind, "Predictor implementation: static, lane or grpc.")
	fs.Int64Var(&o.Concurrency, "predictor.concurrency", o.Concurrency, "Predictions the compute device runs at once across all sessions.")
	fs.StringVar(&o.StaticClass, "predictor.static-class", o.StaticClass, "Class returned by the static predictor.")
	fs.Float64Var(&o.DarkThreshold, "predictor.dark-threshold", o.DarkThreshold, "Luminance under which a pixel belongs to the track (lane predictor).")
	fs.Float64Var(&o.DeadZone, "predictor.dead-zone", o.DeadZone, "Track offset still treated as straight ahead (lane predictor).")
	o.Model.AddFlags(fs, "predictor.model")
}
