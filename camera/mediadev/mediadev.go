// Package mediadev captures frames from a local camera through pion/mediadevices.
package mediadev

import (
	"context"
	"image"
	"sync"

	"github.com/pion/mediadevices"
	// register the camera driver.
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/evsproject/headcount/camera"
	"github.com/evsproject/headcount/logging"
	"github.com/evsproject/headcount/rimage"
)

// Source reads frames from the first video track mediadevices selects.
type Source struct {
	mu         sync.Mutex
	width      int
	height     int
	track      mediadevices.Track
	reader     video.Reader
	frame      *image.RGBA
	resolution image.Point
	logger     logging.Logger
}

// NewSource opens a camera, preferring width x height when both are positive. Like the webcam
// source, a usable Source is returned even when opening fails.
func NewSource(width, height int, logger logging.Logger) (*Source, error) {
	s := &Source{width: width, height: height, logger: logger}
	return s, s.open()
}

// makeConstraints returns the constraints used to pick the video stream.
func makeConstraints(width, height int) mediadevices.MediaStreamConstraints {
	return mediadevices.MediaStreamConstraints{
		Video: func(constraint *mediadevices.MediaTrackConstraints) {
			if width > 0 {
				constraint.Width = prop.IntExact(width)
			} else {
				constraint.Width = prop.IntRanged{Min: 0, Ideal: 640, Max: 4096}
			}
			if height > 0 {
				constraint.Height = prop.IntExact(height)
			} else {
				constraint.Height = prop.IntRanged{Min: 0, Ideal: 480, Max: 2160}
			}
			constraint.FrameRate = prop.FloatRanged{Min: 0.0, Ideal: 30.0, Max: 140.0}
		},
	}
}

func (s *Source) open() error {
	stream, err := mediadevices.GetUserMedia(makeConstraints(s.width, s.height))
	if err != nil {
		return errors.Wrapf(camera.ErrCaptureUnavailable, "cannot open camera: %v", err)
	}
	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return errors.Wrap(camera.ErrCaptureUnavailable, "camera has no video track")
	}
	videoTrack, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		for _, t := range tracks {
			//nolint:errcheck
			t.Close()
		}
		return errors.Wrapf(camera.ErrCaptureUnavailable, "unexpected track type %T", tracks[0])
	}
	for _, t := range tracks[1:] {
		//nolint:errcheck
		t.Close()
	}
	s.track = videoTrack
	s.reader = videoTrack.NewReader(false)

	// read one frame for the resolution.
	img, release, err := s.reader.Read()
	if release != nil {
		defer release()
	}
	if err == nil && img != nil {
		s.resolution = img.Bounds().Size()
	}
	s.logger.Infow("opened camera", "track", videoTrack.ID(), "resolution", s.resolution)
	return nil
}

func (s *Source) release() error {
	if s.track == nil {
		return nil
	}
	err := s.track.Close()
	s.track = nil
	s.reader = nil
	return err
}

// Next reads one frame. The frame is copied out of the driver's buffer.
func (s *Source) Next(ctx context.Context) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return nil, errors.Wrap(camera.ErrCaptureUnavailable, "camera is not open")
	}
	img, release, err := s.reader.Read()
	if release != nil {
		defer release()
	}
	if err != nil {
		return nil, errors.Wrap(camera.ErrEmptyFrame, err.Error())
	}
	if img == nil || img.Bounds().Empty() {
		return nil, camera.ErrEmptyFrame
	}
	if rgba, ok := img.(*image.RGBA); ok {
		s.frame = rimage.CopyRGBA(s.frame, rgba)
	} else {
		s.frame = rimage.CloneRGBA(img)
	}
	s.resolution = s.frame.Bounds().Size()
	return s.frame, nil
}

// Reset closes and reopens the camera.
func (s *Source) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return multierr.Combine(s.release(), s.open())
}

// Resolution returns the size of the last frame seen.
func (s *Source) Resolution() image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolution
}

// Close releases the camera.
func (s *Source) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.release()
}
