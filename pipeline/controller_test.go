package pipeline

import (
	"context"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gorgonia.org/tensor"

	"github.com/evsproject/headcount/camera"
	"github.com/evsproject/headcount/camera/fake"
	"github.com/evsproject/headcount/logging"
	"github.com/evsproject/headcount/ml"
	"github.com/evsproject/headcount/ml/inference"
	"github.com/evsproject/headcount/rimage"
	"github.com/evsproject/headcount/sink"
	"github.com/evsproject/headcount/testutils/inject"
	"github.com/evsproject/headcount/vision/objectdetection"
)

type fakeSink struct {
	mu        sync.Mutex
	published []*image.RGBA
	closeErr  error
	closed    bool
}

func (s *fakeSink) Publish(ctx context.Context, frame *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, rimage.CloneRGBA(frame))
	return nil
}

func (s *fakeSink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeErr
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

// faceEngine reports the given rows for every frame.
func faceEngine(rows ...[7]float32) inference.Engine {
	return inference.EngineFunc(func(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
		data := make([]float32, 0, 7*len(rows))
		for _, r := range rows {
			data = append(data, r[:]...)
		}
		return tensor.New(tensor.WithShape(1, 1, len(rows), 7), tensor.WithBacking(data)), nil
	})
}

type harness struct {
	cam        *fake.Camera
	sink       *fakeSink
	clk        *clock.Mock
	controller *Controller
}

func newHarness(t *testing.T, engine inference.Engine, logger logging.Logger) *harness {
	t.Helper()
	h := &harness{
		cam:  fake.NewCamera(320, 240),
		sink: &fakeSink{},
		clk:  clock.NewMock(),
	}
	var extractor *objectdetection.Extractor
	if engine != nil {
		extractor = objectdetection.NewExtractor(engine, ml.BlobParams{Size: image.Pt(30, 30), Mean: [3]float64{104, 177, 123}}, logger)
	}
	var err error
	h.controller, err = NewController(Options{
		Source:    h.cam,
		Extractor: extractor,
		Selector:  objectdetection.Selector{Threshold: objectdetection.DefaultConfidenceThreshold, Dedup: objectdetection.DedupByArea},
		Sink:      h.sink,
		Clock:     h.clk,
		FPSWindow: time.Second,
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	return h
}

func TestNewControllerRequiresCollaborators(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := NewController(Options{Sink: &fakeSink{}}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewController(Options{Source: fake.NewCamera(4, 4)}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTickPublishes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, faceEngine(
		[7]float32{0, 1, 0.9, 0.25, 0.25, 0.5, 0.5},
		[7]float32{0, 1, 0.1, 0, 0, 1, 1},
	), logging.NewTestLogger(t))
	test.That(t, h.controller.State(), test.ShouldEqual, Playing)
	test.That(t, h.controller.SessionID(), test.ShouldNotBeEmpty)

	test.That(t, h.controller.Tick(ctx), test.ShouldBeNil)
	test.That(t, h.cam.Pulls(), test.ShouldEqual, 1)
	test.That(t, h.sink.count(), test.ShouldEqual, 1)

	stats := h.controller.Stats()
	test.That(t, stats.HeadCount, test.ShouldEqual, 1)
	test.That(t, stats.Published, test.ShouldEqual, uint64(1))

	// the face box is drawn on the published frame
	frame := h.sink.published[0]
	test.That(t, frame.RGBAAt(120, 120), test.ShouldResemble, rimage.Green)
	test.That(t, frame.RGBAAt(80, 90), test.ShouldResemble, rimage.Green)
	test.That(t, frame.RGBAAt(120, 90), test.ShouldNotResemble, rimage.Green)
}

func TestTickEqualAreaFacesCollapse(t *testing.T) {
	h := newHarness(t, faceEngine(
		[7]float32{0, 1, 0.9, 0.125, 0.125, 0.25, 0.25},
		[7]float32{0, 1, 0.9, 0.5, 0.5, 0.625, 0.625},
	), logging.NewTestLogger(t))
	test.That(t, h.controller.Tick(context.Background()), test.ShouldBeNil)
	test.That(t, h.controller.Stats().HeadCount, test.ShouldEqual, 1)
}

func TestPausePlay(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	h := newHarness(t, faceEngine(), logger)

	// play while playing captures nothing
	h.controller.Play()
	test.That(t, h.cam.Pulls(), test.ShouldEqual, 0)
	test.That(t, logs.FilterMessage("video resumed").Len(), test.ShouldEqual, 0)

	test.That(t, h.controller.Tick(ctx), test.ShouldBeNil)
	h.controller.Pause()
	h.controller.Pause()
	test.That(t, h.controller.State(), test.ShouldEqual, Paused)
	test.That(t, logs.FilterMessage("video paused").Len(), test.ShouldEqual, 1)

	for i := 0; i < 5; i++ {
		h.clk.Add(time.Second)
		test.That(t, h.controller.Tick(ctx), test.ShouldBeNil)
	}
	test.That(t, h.cam.Pulls(), test.ShouldEqual, 1)
	test.That(t, h.sink.count(), test.ShouldEqual, 1)
	// the meter did not advance while paused
	test.That(t, h.controller.Stats().FPS, test.ShouldEqual, 0.0)

	h.controller.Play()
	test.That(t, logs.FilterMessage("video resumed").Len(), test.ShouldEqual, 1)
	test.That(t, h.controller.Tick(ctx), test.ShouldBeNil)
	test.That(t, h.cam.Pulls(), test.ShouldEqual, 2)
	test.That(t, h.sink.count(), test.ShouldEqual, 2)
}

func TestTickEmptyFrame(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, faceEngine(), logging.NewTestLogger(t))
	test.That(t, h.controller.Tick(ctx), test.ShouldBeNil)
	h.cam.DeliverEmpty(3)
	for i := 0; i < 3; i++ {
		test.That(t, h.controller.Tick(ctx), test.ShouldBeNil)
	}
	test.That(t, h.sink.count(), test.ShouldEqual, 1)
	stats := h.controller.Stats()
	test.That(t, stats.EmptyFrames, test.ShouldEqual, uint64(3))
	test.That(t, stats.Ticks, test.ShouldEqual, uint64(4))

	test.That(t, h.controller.Tick(ctx), test.ShouldBeNil)
	test.That(t, h.sink.count(), test.ShouldEqual, 2)
}

func TestTickModelUnavailable(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	h := newHarness(t, nil, logger)
	for i := 0; i < 4; i++ {
		test.That(t, h.controller.Tick(ctx), test.ShouldBeNil)
	}
	test.That(t, h.sink.count(), test.ShouldEqual, 4)
	test.That(t, h.controller.Stats().HeadCount, test.ShouldEqual, 0)
	test.That(t, logs.FilterMessage("detection model unavailable, publishing frames without faces").Len(), test.ShouldEqual, 1)

	// only the head count and timestamp are drawn
	green := 0
	for _, frame := range h.sink.published {
		for y := 0; y < frame.Rect.Dy(); y++ {
			for x := 0; x < frame.Rect.Dx(); x++ {
				if frame.RGBAAt(x, y) == rimage.Green {
					green++
				}
			}
		}
	}
	test.That(t, green, test.ShouldEqual, 0)
}

func TestTickModelUnavailableAfterLoad(t *testing.T) {
	ctx := context.Background()
	calls := 0
	engine := inference.EngineFunc(func(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
		calls++
		return nil, errors.Wrap(inference.ErrModelUnavailable, "network released")
	})
	h := newHarness(t, engine, logging.NewTestLogger(t))
	for i := 0; i < 3; i++ {
		test.That(t, h.controller.Tick(ctx), test.ShouldBeNil)
	}
	test.That(t, calls, test.ShouldEqual, 1)
	test.That(t, h.sink.count(), test.ShouldEqual, 3)
}

func TestTickCaptureUnavailable(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	h := newHarness(t, faceEngine(), logger)
	h.cam.Unplug()
	for i := 0; i < 5; i++ {
		test.That(t, h.controller.Tick(ctx), test.ShouldBeNil)
	}
	test.That(t, h.cam.Pulls(), test.ShouldEqual, 1)
	test.That(t, h.sink.count(), test.ShouldEqual, 0)
	test.That(t, logs.FilterMessage("capture unavailable, skipping frames until reset").Len(), test.ShouldEqual, 1)

	h.controller.Pause()
	test.That(t, h.controller.Reset(ctx), test.ShouldBeNil)
	test.That(t, h.controller.State(), test.ShouldEqual, Paused)
	test.That(t, logs.FilterMessage("video feed reset").Len(), test.ShouldEqual, 1)
	h.controller.Play()
	test.That(t, h.controller.Tick(ctx), test.ShouldBeNil)
	test.That(t, h.cam.Pulls(), test.ShouldEqual, 2)
	test.That(t, h.sink.count(), test.ShouldEqual, 1)
}

func TestTickNoCandidates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, faceEngine(), logging.NewTestLogger(t))
	for i := 0; i < 3; i++ {
		test.That(t, h.controller.Tick(ctx), test.ShouldBeNil)
	}
	test.That(t, h.sink.count(), test.ShouldEqual, 3)
	test.That(t, h.controller.Stats().HeadCount, test.ShouldEqual, 0)
}

func TestSourceDownAtStartup(t *testing.T) {
	ctx := context.Background()
	logger, logs := logging.NewObservedTestLogger(t)
	pulls := 0
	resets := 0
	src := &inject.Source{
		NextFunc: func(ctx context.Context) (*image.RGBA, error) {
			pulls++
			return image.NewRGBA(image.Rect(0, 0, 64, 48)), nil
		},
		ResetFunc: func(ctx context.Context) error {
			resets++
			return nil
		},
	}
	controller, err := NewController(Options{
		Source:     src,
		SourceDown: true,
		Sink:       &fakeSink{},
		Clock:      clock.NewMock(),
	}, logger)
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < 3; i++ {
		test.That(t, controller.Tick(ctx), test.ShouldBeNil)
	}
	test.That(t, pulls, test.ShouldEqual, 0)
	test.That(t, logs.FilterMessage("capture unavailable, skipping frames until reset").Len(), test.ShouldEqual, 0)

	test.That(t, controller.Reset(ctx), test.ShouldBeNil)
	test.That(t, resets, test.ShouldEqual, 1)
	test.That(t, controller.Tick(ctx), test.ShouldBeNil)
	test.That(t, pulls, test.ShouldEqual, 1)
	test.That(t, controller.Stats().Published, test.ShouldEqual, uint64(1))
}

func TestFrameRateReported(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, faceEngine(), logging.NewTestLogger(t))
	var rates []float64
	h.controller.onFrameRate = func(fps float64) {
		rates = append(rates, fps)
	}
	start := h.clk.Now()
	for i := 1; i <= 30; i++ {
		h.clk.Set(start.Add(time.Duration(i) * time.Second / 30))
		test.That(t, h.controller.Tick(ctx), test.ShouldBeNil)
	}
	test.That(t, rates, test.ShouldResemble, []float64{30})
	test.That(t, h.controller.Stats().FPS, test.ShouldEqual, 30.0)
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, faceEngine(), logging.NewTestLogger(t))
	path := filepath.Join(t.TempDir(), "snap.jpg")

	err := h.controller.Snapshot(path)
	test.That(t, errors.Is(err, ErrNoFrame), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldEqual, "no frame available to capture")

	test.That(t, h.controller.Tick(ctx), test.ShouldBeNil)
	test.That(t, h.controller.Snapshot(path), test.ShouldBeNil)

	err = h.controller.Snapshot(filepath.Join(t.TempDir(), "missing", "snap.jpg"))
	test.That(t, errors.Is(err, sink.ErrSnapshotFailed), test.ShouldBeTrue)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, faceEngine(), logging.NewTestLogger(t))
	h.sink.closeErr = errors.New("window gone")
	err := h.controller.Close(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldEqual, "cannot close sink: window gone")
	test.That(t, h.sink.closed, test.ShouldBeTrue)
	_, err = h.cam.Next(ctx)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTickSourceError(t *testing.T) {
	ctx := context.Background()
	src := &inject.Source{
		NextFunc: func(ctx context.Context) (*image.RGBA, error) {
			return nil, errors.New("usb reset")
		},
	}
	published := 0
	controller, err := NewController(Options{
		Source: src,
		Sink: &inject.Sink{PublishFunc: func(ctx context.Context, frame *image.RGBA) error {
			published++
			return nil
		}},
		Clock: clock.NewMock(),
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	err = controller.Tick(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldEqual, "cannot read frame: usb reset")
	test.That(t, published, test.ShouldEqual, 0)

	// a failed reset leaves capture down until a reset succeeds
	src.ResetFunc = func(ctx context.Context) error {
		return errors.Wrap(camera.ErrCaptureUnavailable, "device 0")
	}
	err = controller.Reset(ctx)
	test.That(t, errors.Is(err, camera.ErrCaptureUnavailable), test.ShouldBeTrue)
	test.That(t, controller.Tick(ctx), test.ShouldBeNil)
}

func TestCloseCombinesErrors(t *testing.T) {
	engineClosed := false
	engine := &inject.Engine{
		CloseFunc: func(ctx context.Context) error {
			engineClosed = true
			return errors.New("net busy")
		},
	}
	controller, err := NewController(Options{
		Source: &inject.Source{CloseFunc: func(ctx context.Context) error {
			return errors.New("device busy")
		}},
		Extractor: objectdetection.NewExtractor(engine, ml.DefaultBlobParams(), logging.NewTestLogger(t)),
		Sink:      &inject.Sink{},
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	err = controller.Close(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot close source: device busy")
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot close model: net busy")
	test.That(t, engineClosed, test.ShouldBeTrue)
}
