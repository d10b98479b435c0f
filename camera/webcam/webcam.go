// Package webcam captures frames from a local camera through OpenCV.
package webcam

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/evsproject/headcount/camera"
	"github.com/evsproject/headcount/logging"
	"github.com/evsproject/headcount/rimage"
)

// Source reads frames from an OpenCV video capture device.
type Source struct {
	mu       sync.Mutex
	deviceID int
	width    int
	height   int
	webcam   *gocv.VideoCapture
	mat      gocv.Mat
	logger   logging.Logger
}

// NewSource opens the camera at deviceID, requesting width x height when both are positive. If the
// device cannot be opened a usable Source is still returned along with an error wrapping
// camera.ErrCaptureUnavailable, so that a later Reset can bring it up.
func NewSource(deviceID, width, height int, logger logging.Logger) (*Source, error) {
	s := &Source{
		deviceID: deviceID,
		width:    width,
		height:   height,
		mat:      gocv.NewMat(),
		logger:   logger,
	}
	return s, s.open()
}

func (s *Source) open() error {
	webcam, err := gocv.OpenVideoCapture(s.deviceID)
	if err != nil || !webcam.IsOpened() {
		if webcam != nil {
			//nolint:errcheck
			webcam.Close()
		}
		return errors.Wrapf(camera.ErrCaptureUnavailable, "cannot open webcam device %d", s.deviceID)
	}
	if s.width > 0 && s.height > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(s.width))
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(s.height))
	}
	s.webcam = webcam
	s.logger.Infow("opened webcam", "device_id", s.deviceID, "resolution", s.resolutionLocked())
	return nil
}

func (s *Source) release() error {
	if s.webcam == nil {
		return nil
	}
	err := s.webcam.Close()
	s.webcam = nil
	return err
}

// Next reads one frame from the device.
func (s *Source) Next(ctx context.Context) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.webcam == nil {
		return nil, errors.Wrapf(camera.ErrCaptureUnavailable, "webcam device %d is not open", s.deviceID)
	}
	if ok := s.webcam.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, camera.ErrEmptyFrame
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "cannot convert webcam frame")
	}
	return rimage.ConvertToRGBA(img), nil
}

// Reset closes and reopens the device.
func (s *Source) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.release(); err != nil {
		s.logger.Warnw("error closing webcam", "device_id", s.deviceID, "error", err)
	}
	return s.open()
}

// Resolution returns the frame size the device reports.
func (s *Source) Resolution() image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolutionLocked()
}

func (s *Source) resolutionLocked() image.Point {
	if s.webcam == nil {
		return image.Point{}
	}
	return image.Pt(
		int(s.webcam.Get(gocv.VideoCaptureFrameWidth)),
		int(s.webcam.Get(gocv.VideoCaptureFrameHeight)),
	)
}

// Close releases the device.
func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.release()
	if closeErr := s.mat.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
