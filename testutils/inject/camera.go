// Package inject provides test doubles whose methods are overridden by function fields.
package inject

import (
	"context"
	"image"

	"github.com/evsproject/headcount/camera"
)

// Source is an injected frame source.
type Source struct {
	camera.Source
	NextFunc       func(ctx context.Context) (*image.RGBA, error)
	ResetFunc      func(ctx context.Context) error
	ResolutionFunc func() image.Point
	CloseFunc      func(ctx context.Context) error
}

// Next calls the injected Next or the real version.
func (s *Source) Next(ctx context.Context) (*image.RGBA, error) {
	if s.NextFunc == nil {
		return s.Source.Next(ctx)
	}
	return s.NextFunc(ctx)
}

// Reset calls the injected Reset or the real version.
func (s *Source) Reset(ctx context.Context) error {
	if s.ResetFunc == nil {
		return s.Source.Reset(ctx)
	}
	return s.ResetFunc(ctx)
}

// Resolution calls the injected Resolution or the real version.
func (s *Source) Resolution() image.Point {
	if s.ResolutionFunc == nil {
		return s.Source.Resolution()
	}
	return s.ResolutionFunc()
}

// Close calls the injected Close or the real version.
func (s *Source) Close(ctx context.Context) error {
	if s.CloseFunc == nil {
		if s.Source == nil {
			return nil
		}
		return s.Source.Close(ctx)
	}
	return s.CloseFunc(ctx)
}
