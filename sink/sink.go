// Package sink fans composited frames out to a live display and a recording.
package sink

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/evsproject/headcount/logging"
	"github.com/evsproject/headcount/rimage"
)

var (
	// ErrRecordingUnavailable is returned when the recording could not be created.
	ErrRecordingUnavailable = errors.New("recording unavailable")
	// ErrSnapshotFailed is matched by every error Snapshot returns.
	ErrSnapshotFailed = errors.New("snapshot failed")
)

// A Display shows frames live.
type Display interface {
	Show(img image.Image) error
}

// A Recorder appends frames to a persistent recording.
type Recorder interface {
	WriteFrame(img *image.RGBA) error
	Close() error
}

// DisplayFunc adapts a function into a Display.
type DisplayFunc func(img image.Image) error

// Show calls f.
func (f DisplayFunc) Show(img image.Image) error {
	return f(img)
}

// Sink publishes frames to an optional display and an optional recorder.
type Sink struct {
	mu              sync.Mutex
	display         Display
	recorder        Recorder
	recordingFailed bool
	logger          logging.Logger
}

// New returns a Sink. Either display or recorder may be nil.
func New(display Display, recorder Recorder, logger logging.Logger) *Sink {
	return &Sink{display: display, recorder: recorder, logger: logger}
}

// Recording reports whether frames are still being recorded.
func (s *Sink) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorder != nil && !s.recordingFailed
}

// Publish shows frame and appends it to the recording. The first recording failure is logged and
// stops recording; display errors are returned.
func (s *Sink) Publish(ctx context.Context, frame *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.display != nil {
		if showErr := s.display.Show(frame); showErr != nil {
			err = errors.Wrap(showErr, "cannot display frame")
		}
	}
	if s.recorder != nil && !s.recordingFailed {
		if writeErr := s.recorder.WriteFrame(frame); writeErr != nil {
			s.recordingFailed = true
			s.logger.Errorw("recording stopped", "error", writeErr)
		}
	}
	return err
}

// SnapshotError describes a failed snapshot.
type SnapshotError struct {
	Path string
	Err  error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("%s: cannot save %q: %v", ErrSnapshotFailed, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SnapshotError) Unwrap() error {
	return e.Err
}

// Is matches ErrSnapshotFailed.
func (e *SnapshotError) Is(target error) bool {
	return target == ErrSnapshotFailed
}

// Snapshot writes frame to path as a JPEG.
func Snapshot(frame image.Image, path string) error {
	if frame == nil {
		return &SnapshotError{Path: path, Err: errors.New("no frame")}
	}
	if err := rimage.WriteJPEG(path, frame); err != nil {
		return &SnapshotError{Path: path, Err: err}
	}
	return nil
}

// Close finishes the recording and closes the display if it can be closed.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.recorder != nil {
		err = multierr.Combine(err, errors.Wrap(s.recorder.Close(), "cannot close recording"))
		s.recorder = nil
	}
	if closer, ok := s.display.(io.Closer); ok {
		err = multierr.Combine(err, errors.Wrap(closer.Close(), "cannot close display"))
		s.display = nil
	}
	return err
}
