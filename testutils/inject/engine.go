package inject

import (
	"context"

	"gorgonia.org/tensor"

	"github.com/evsproject/headcount/ml/inference"
)

// Engine is an injected inference engine.
type Engine struct {
	inference.Engine
	InferFunc func(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error)
	CloseFunc func(ctx context.Context) error
}

// Infer calls the injected Infer or the real version.
func (e *Engine) Infer(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	if e.InferFunc == nil {
		return e.Engine.Infer(ctx, input)
	}
	return e.InferFunc(ctx, input)
}

// Close calls the injected Close or the real version.
func (e *Engine) Close(ctx context.Context) error {
	if e.CloseFunc == nil {
		if e.Engine == nil {
			return nil
		}
		return e.Engine.Close(ctx)
	}
	return e.CloseFunc(ctx)
}
