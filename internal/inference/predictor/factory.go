package predictor

import (
	"fmt"

	"github.com/autopeer-io/remotepilot/pkg/options"
	"github.com/autopeer-io/remotepilot/pkg/wire"
)

// New builds the predictor selected by opts.
func New(opts *options.PredictorOptions) (Predictor, error) {
	switch opts.Kind {
	case options.PredictorStatic:
		class, err := wire.ParseClass(opts.StaticClass)
		if err != nil {
			return nil, err
		}
		return NewStatic(class), nil
	case options.PredictorLane:
		return NewLane(opts.DarkThreshold, opts.DeadZone), nil
	case options.PredictorGRPC:
		g, err := NewGRPC(opts.Model)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown predictor kind %q", opts.Kind)
	}
}
