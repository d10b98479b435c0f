package inject

import (
	"context"
	"image"
)

// Recorder is an injected recorder.
type Recorder struct {
	WriteFrameFunc func(img *image.RGBA) error
	CloseFunc      func() error
}

// WriteFrame calls the injected WriteFrame or does nothing.
func (r *Recorder) WriteFrame(img *image.RGBA) error {
	if r.WriteFrameFunc == nil {
		return nil
	}
	return r.WriteFrameFunc(img)
}

// Close calls the injected Close or does nothing.
func (r *Recorder) Close() error {
	if r.CloseFunc == nil {
		return nil
	}
	return r.CloseFunc()
}

// Sink is an injected pipeline sink.
type Sink struct {
	PublishFunc func(ctx context.Context, frame *image.RGBA) error
	CloseFunc   func(ctx context.Context) error
}

// Publish calls the injected Publish or does nothing.
func (s *Sink) Publish(ctx context.Context, frame *image.RGBA) error {
	if s.PublishFunc == nil {
		return nil
	}
	return s.PublishFunc(ctx, frame)
}

// Close calls the injected Close or does nothing.
func (s *Sink) Close(ctx context.Context) error {
	if s.CloseFunc == nil {
		return nil
	}
	return s.CloseFunc(ctx)
}
