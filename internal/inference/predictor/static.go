package predictor

import (
	"context"

	"github.com/autopeer-io/remotepilot/pkg/wire"
)

// Static always predicts the same class. Used to bench the loop without a model.
type Static struct {
	class wire.Class
}

func NewStatic(class wire.Class) *Static {
	return &Static{class: class}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Predict(ctx context.Context, _ []byte) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	return Prediction{Class: s.class}, nil
}
