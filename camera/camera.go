// Package camera defines the frame sources the pipeline pulls from.
package camera

import (
	"context"
	"image"

	"github.com/pkg/errors"
)

var (
	// ErrCaptureUnavailable is returned when the capture device cannot be opened or has gone away.
	ErrCaptureUnavailable = errors.New("capture device unavailable")
	// ErrEmptyFrame is returned when the device delivered no frame this time. It is transient.
	ErrEmptyFrame = errors.New("empty frame")
)

// A Source produces frames from a capture device.
type Source interface {
	// Next returns the next frame. The caller owns it until its next call to Next.
	Next(ctx context.Context) (*image.RGBA, error)
	// Reset releases and reopens the underlying device.
	Reset(ctx context.Context) error
	// Resolution is the size of the frames Next returns, or zero if unknown.
	Resolution() image.Point
	Close(ctx context.Context) error
}

// IsTransient reports whether err only means this frame was skipped.
func IsTransient(err error) bool {
	return errors.Is(err, ErrEmptyFrame)
}
