// Package inference runs loaded neural network models over input tensors.
package inference

import (
	"context"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrModelUnavailable is returned when a model could not be loaded or has been closed.
var ErrModelUnavailable = errors.New("detection model unavailable")

// An Engine runs one forward pass of a loaded model.
type Engine interface {
	// Infer feeds input to the model and returns its raw output tensor.
	Infer(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error)
	Close(ctx context.Context) error
}

// EngineFunc adapts a plain function into an Engine with nothing to close.
type EngineFunc func(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error)

// Infer calls f.
func (f EngineFunc) Infer(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	return f(ctx, input)
}

// Close does nothing.
func (f EngineFunc) Close(ctx context.Context) error {
	return nil
}
