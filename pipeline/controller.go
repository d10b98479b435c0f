// Package pipeline drives frames from a camera through face detection to the sinks.
package pipeline

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/evsproject/headcount/camera"
	"github.com/evsproject/headcount/logging"
	"github.com/evsproject/headcount/rimage"
	"github.com/evsproject/headcount/sink"
	"github.com/evsproject/headcount/vision/objectdetection"
)

// ErrNoFrame is returned by Snapshot before any frame has been published.
var ErrNoFrame = errors.New("no frame available to capture")

// State is whether the pipeline is consuming frames.
type State int

// The pipeline states.
const (
	Playing State = iota
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// A Sink receives every composited frame.
type Sink interface {
	Publish(ctx context.Context, frame *image.RGBA) error
	Close(ctx context.Context) error
}

// Options are the collaborators of a Controller.
type Options struct {
	Source camera.Source
	// SourceDown says the source already failed to open and that failure was reported. Ticks skip
	// capture until a Reset succeeds.
	SourceDown bool
	// Extractor may be nil, which is treated as an unavailable model.
	Extractor *objectdetection.Extractor
	Selector  objectdetection.Selector
	Sink      Sink
	// Clock defaults to the wall clock.
	Clock     clock.Clock
	FPSWindow time.Duration
	// OnFrameRate, if set, is called with every measured frame rate.
	OnFrameRate func(fps float64)
}

// Stats is a summary of what a Controller has done.
type Stats struct {
	State       State
	Ticks       uint64
	Published   uint64
	EmptyFrames uint64
	HeadCount   int
	FPS         float64
}

// A Controller runs one frame through the pipeline per Tick. It holds all pipeline state; nothing
// runs in the background.
type Controller struct {
	mu          sync.Mutex
	sessionID   string
	source      camera.Source
	extractor   *objectdetection.Extractor
	selector    objectdetection.Selector
	sink        Sink
	clk         clock.Clock
	meter       *FrameRateMeter
	onFrameRate func(fps float64)
	logger      logging.Logger

	state       State
	modelDown   bool
	captureDown bool
	lastFrame   *image.RGBA
	stats       Stats
}

// NewController returns a Controller in the Playing state.
func NewController(opts Options, logger logging.Logger) (*Controller, error) {
	if opts.Source == nil {
		return nil, errors.New("pipeline needs a frame source")
	}
	if opts.Sink == nil {
		return nil, errors.New("pipeline needs a sink")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	c := &Controller{
		sessionID:   uuid.New().String(),
		source:      opts.Source,
		extractor:   opts.Extractor,
		selector:    opts.Selector,
		sink:        opts.Sink,
		clk:         clk,
		meter:       NewFrameRateMeter(clk, opts.FPSWindow),
		onFrameRate: opts.OnFrameRate,
		logger:      logger,
		state:       Playing,
		captureDown: opts.SourceDown,
	}
	logger.Infow("pipeline created", "session", c.sessionID, "dedup", opts.Selector.Dedup)
	return c, nil
}

// SessionID identifies this run of the pipeline.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Play resumes consuming frames. It does nothing if already playing.
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Playing {
		return
	}
	c.state = Playing
	c.logger.Info("video resumed")
}

// Pause stops consuming frames. The last published frame stays up.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Paused {
		return
	}
	c.state = Paused
	c.logger.Info("video paused")
}

// Reset reopens the source. The play state is unchanged.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.source.Reset(ctx); err != nil {
		c.captureDown = true
		return errors.Wrap(err, "cannot reset video feed")
	}
	c.captureDown = false
	c.logger.Info("video feed reset")
	return nil
}

// Tick runs one frame through the pipeline if playing.
func (c *Controller) Tick(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Ticks++
	if c.state == Paused || c.captureDown {
		return nil
	}

	frame, err := c.source.Next(ctx)
	if err != nil {
		switch {
		case camera.IsTransient(err):
			c.stats.EmptyFrames++
			c.logger.Debugw("skipping empty frame", "error", err)
			return nil
		case errors.Is(err, camera.ErrCaptureUnavailable):
			c.captureDown = true
			c.logger.Errorw("capture unavailable, skipping frames until reset", "error", err)
			return nil
		default:
			return errors.Wrap(err, "cannot read frame")
		}
	}

	faces := c.detect(ctx, frame)
	objectdetection.Composite(frame, faces, c.clk.Now())
	c.stats.HeadCount = faces.Len()

	if fps, ok := c.meter.Tick(); ok {
		c.stats.FPS = fps
		c.logger.Debugf("Frame Rate: %.2f FPS", fps)
		if c.onFrameRate != nil {
			c.onFrameRate(fps)
		}
	}

	c.lastFrame = rimage.CopyRGBA(c.lastFrame, frame)
	if err := c.sink.Publish(ctx, frame); err != nil {
		return err
	}
	c.stats.Published++
	return nil
}

func (c *Controller) detect(ctx context.Context, frame *image.RGBA) objectdetection.FaceSet {
	if c.modelDown {
		return objectdetection.FaceSet{}
	}
	raws, err := c.extractor.Extract(ctx, frame)
	if err != nil {
		if errors.Is(err, objectdetection.ErrModelUnavailable) {
			c.modelDown = true
			c.logger.Errorw("detection model unavailable, publishing frames without faces", "error", err)
		} else {
			c.logger.Warnw("detection failed", "error", err)
		}
		return objectdetection.FaceSet{}
	}
	size := frame.Bounds().Size()
	return c.selector.Select(raws, size.X, size.Y)
}

// Snapshot saves the last published frame to path as a JPEG.
func (c *Controller) Snapshot(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFrame == nil {
		return ErrNoFrame
	}
	if err := sink.Snapshot(c.lastFrame, path); err != nil {
		return err
	}
	c.logger.Infow("snapshot saved", "path", path)
	return nil
}

// Stats returns a summary of the pipeline so far.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.State = c.state
	return stats
}

// Close releases the source, the sink and the model.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return multierr.Combine(
		errors.Wrap(c.source.Close(ctx), "cannot close source"),
		errors.Wrap(c.sink.Close(ctx), "cannot close sink"),
		errors.Wrap(c.extractor.Close(ctx), "cannot close model"),
	)
}
