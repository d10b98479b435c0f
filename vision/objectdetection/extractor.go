package objectdetection

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"github.com/evsproject/headcount/logging"
	"github.com/evsproject/headcount/ml"
	"github.com/evsproject/headcount/ml/inference"
)

// ErrModelUnavailable is returned when there is no loaded model to run.
var ErrModelUnavailable = inference.ErrModelUnavailable

// Extractor runs a face detection model over frames.
type Extractor struct {
	engine inference.Engine
	params ml.BlobParams
	logger logging.Logger
}

// NewExtractor returns an Extractor feeding engine with tensors built from params. engine may be nil,
// in which case every extraction fails with ErrModelUnavailable.
func NewExtractor(engine inference.Engine, params ml.BlobParams, logger logging.Logger) *Extractor {
	return &Extractor{engine: engine, params: params, logger: logger}
}

// Extract runs one forward pass over img and returns all of its raw detections.
func (e *Extractor) Extract(ctx context.Context, img image.Image) ([]RawDetection, error) {
	if e == nil || e.engine == nil {
		return nil, ErrModelUnavailable
	}
	blob := ml.NewBlob(img, e.params)
	out, err := e.engine.Infer(ctx, blob)
	if err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}
	detections, err := DecodeDetections(out)
	if err != nil {
		return nil, err
	}
	e.logger.Debugw("extracted detections", "rows", len(detections))
	return detections, nil
}

// Detector returns Extract as a Detector.
func (e *Extractor) Detector() Detector {
	return e.Extract
}

// Close releases the underlying engine.
func (e *Extractor) Close(ctx context.Context) error {
	if e == nil || e.engine == nil {
		return nil
	}
	return e.engine.Close(ctx)
}
