// Package fake implements a fake camera which returns a solid frame with a user specified resolution.
package fake

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/pkg/errors"

	"github.com/evsproject/headcount/camera"
	"github.com/evsproject/headcount/rimage"
)

const (
	initialWidth  = 640
	initialHeight = 480
)

// Camera is a fake camera. It can be scripted to deliver empty frames or to fail.
type Camera struct {
	mu     sync.Mutex
	width  int
	height int
	color  color.RGBA

	frame       *image.RGBA
	pulls       int
	resets      int
	closed      bool
	emptyFrames int
	unavailable bool
}

// NewCamera returns a fake camera producing width x height frames. Non-positive sizes fall back to
// 640x480.
func NewCamera(width, height int) *Camera {
	if width <= 0 || height <= 0 {
		width, height = initialWidth, initialHeight
	}
	return &Camera{width: width, height: height, color: color.RGBA{R: 90, G: 60, B: 30, A: 255}}
}

// Next returns a fresh solid frame with a white dot that moves with every pull.
func (c *Camera) Next(ctx context.Context) (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.Wrap(camera.ErrCaptureUnavailable, "camera closed")
	}
	c.pulls++
	if c.unavailable {
		return nil, camera.ErrCaptureUnavailable
	}
	if c.emptyFrames > 0 {
		c.emptyFrames--
		return nil, camera.ErrEmptyFrame
	}
	if c.frame == nil {
		c.frame = image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	}
	rimage.Fill(c.frame, c.color)
	c.frame.SetRGBA(c.pulls%c.width, c.height/2, rimage.White)
	return c.frame, nil
}

// Reset reopens the camera, clearing any scripted failure.
func (c *Camera) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.Wrap(camera.ErrCaptureUnavailable, "camera closed")
	}
	c.resets++
	c.unavailable = false
	c.emptyFrames = 0
	return nil
}

// Resolution returns the frame size.
func (c *Camera) Resolution() image.Point {
	return image.Pt(c.width, c.height)
}

// Close marks the camera closed.
func (c *Camera) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// DeliverEmpty makes the next n pulls return camera.ErrEmptyFrame.
func (c *Camera) DeliverEmpty(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emptyFrames = n
}

// Unplug makes every pull fail with camera.ErrCaptureUnavailable until the next Reset.
func (c *Camera) Unplug() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unavailable = true
}

// Pulls is the number of times Next was called.
func (c *Camera) Pulls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pulls
}

// Resets is the number of successful resets.
func (c *Camera) Resets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets
}
