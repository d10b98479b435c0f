// Package mjpeg records frames to a Motion-JPEG AVI file through OpenCV.
package mjpeg

import (
	"image"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/evsproject/headcount/logging"
	"github.com/evsproject/headcount/sink"
)

// Codec is the FourCC the recording is encoded with.
const Codec = "MJPG"

// Recorder appends frames to a video file of a fixed size.
type Recorder struct {
	mu     sync.Mutex
	path   string
	size   image.Point
	writer *gocv.VideoWriter
	frames int
	logger logging.Logger
}

// NewRecorder creates the file at path, truncating it, for frames of the given size at a nominal
// fps. It fails with an error wrapping sink.ErrRecordingUnavailable if the writer cannot be opened.
func NewRecorder(path string, fps float64, size image.Point, logger logging.Logger) (*Recorder, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, errors.Wrapf(sink.ErrRecordingUnavailable, "invalid frame size %v", size)
	}
	writer, err := gocv.VideoWriterFile(path, Codec, fps, size.X, size.Y, true)
	if err != nil {
		return nil, errors.Wrapf(sink.ErrRecordingUnavailable, "cannot create %q: %v", path, err)
	}
	if !writer.IsOpened() {
		//nolint:errcheck
		writer.Close()
		return nil, errors.Wrapf(sink.ErrRecordingUnavailable, "video writer for %q did not open", path)
	}
	logger.Infow("recording", "path", path, "codec", Codec, "fps", fps, "size", size)
	return &Recorder{path: path, size: size, writer: writer, logger: logger}, nil
}

// WriteFrame appends img, which must have the recording's size.
func (r *Recorder) WriteFrame(img *image.RGBA) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer == nil {
		return errors.Wrap(sink.ErrRecordingUnavailable, "recording closed")
	}
	if got := img.Bounds().Size(); got != r.size {
		return errors.Errorf("frame size %v does not match recording size %v", got, r.size)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "cannot convert frame")
	}
	defer func() {
		//nolint:errcheck
		mat.Close()
	}()
	if err := r.writer.Write(mat); err != nil {
		return errors.Wrapf(err, "cannot write frame %d to %q", r.frames, r.path)
	}
	r.frames++
	return nil
}

// Frames is the number of frames written so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close finalizes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer == nil {
		return nil
	}
	err := r.writer.Close()
	r.writer = nil
	r.logger.Infow("recording closed", "path", r.path, "frames", r.frames)
	return err
}
