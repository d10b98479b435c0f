package objectdetection

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrMalformedOutput is returned when a detector output tensor is not a table of SSD rows.
var ErrMalformedOutput = errors.New("malformed detection output")

// minDetectionCols is the width of an SSD row: image id, label, confidence, x1, y1, x2, y2.
const minDetectionCols = 7

// DecodeDetections reads every row of an SSD output tensor. The last dimension holds the columns of
// a row and all the leading dimensions are flattened into rows, so both Nx7 and 1x1xNx7 are accepted.
func DecodeDetections(out *tensor.Dense) ([]RawDetection, error) {
	if out == nil {
		return nil, errors.Wrap(ErrMalformedOutput, "no output tensor")
	}
	shape := out.Shape()
	if len(shape) == 0 || shape[len(shape)-1] < minDetectionCols {
		return nil, errors.Wrapf(ErrMalformedOutput, "expected rows of at least %d columns, got shape %v", minDetectionCols, shape)
	}
	cols := shape[len(shape)-1]
	rows := 1
	for _, d := range shape[:len(shape)-1] {
		rows *= d
	}
	if rows == 0 || out.Size() == 0 {
		return []RawDetection{}, nil
	}

	var at func(i int) float32
	switch data := out.Data().(type) {
	case []float32:
		if len(data) < rows*cols {
			return nil, errors.Wrapf(ErrMalformedOutput, "shape %v but only %d values", shape, len(data))
		}
		at = func(i int) float32 { return data[i] }
	case []float64:
		if len(data) < rows*cols {
			return nil, errors.Wrapf(ErrMalformedOutput, "shape %v but only %d values", shape, len(data))
		}
		at = func(i int) float32 { return float32(data[i]) }
	default:
		return nil, errors.Wrapf(ErrMalformedOutput, "unsupported output type %v", out.Dtype())
	}

	detections := make([]RawDetection, 0, rows)
	for r := 0; r < rows; r++ {
		base := r * cols
		detections = append(detections, RawDetection{
			Confidence: at(base + 2),
			Box:        [4]float32{at(base + 3), at(base + 4), at(base + 5), at(base + 6)},
		})
	}
	return detections, nil
}
