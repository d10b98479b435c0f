// Package caffe runs Caffe SSD models through OpenCV's dnn module.
package caffe

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/evsproject/headcount/logging"
	"github.com/evsproject/headcount/ml/inference"
)

// Engine is a loaded Caffe network. It is safe for concurrent use; forward passes are serialized.
type Engine struct {
	mu     sync.Mutex
	net    gocv.Net
	closed bool
	logger logging.Logger
}

// Load reads the network description at configPath and the trained weights at weightsPath. Any
// failure is reported as an error wrapping inference.ErrModelUnavailable.
func Load(configPath, weightsPath string, logger logging.Logger) (*Engine, error) {
	for _, path := range []string{configPath, weightsPath} {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(inference.ErrModelUnavailable, "cannot load caffe model: %v", err)
		}
	}
	net := gocv.ReadNetFromCaffe(configPath, weightsPath)
	if net.Empty() {
		//nolint:errcheck
		net.Close()
		return nil, errors.Wrapf(inference.ErrModelUnavailable, "cannot load caffe model %q (weights %q)", configPath, weightsPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		logger.Warnw("cannot select dnn backend", "error", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		logger.Warnw("cannot select dnn target", "error", err)
	}
	logger.Infow("loaded caffe model", "config", configPath, "weights", weightsPath)
	return &Engine{net: net, logger: logger}, nil
}

// Infer runs a forward pass over a float32 NCHW input and returns the network's output.
func (e *Engine) Infer(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := input.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("caffe input must be float32, got %v", input.Dtype())
	}

	blob, err := gocv.NewMatWithSizesFromBytes([]int(input.Shape()), gocv.MatTypeCV32F, float32Bytes(data))
	if err != nil {
		return nil, errors.Wrap(err, "cannot build input blob")
	}
	defer func() {
		//nolint:errcheck
		blob.Close()
	}()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, inference.ErrModelUnavailable
	}
	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer func() {
		//nolint:errcheck
		out.Close()
	}()
	if out.Empty() {
		return nil, errors.New("forward pass produced no output")
	}

	values, err := out.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "cannot read network output")
	}
	backing := make([]float32, len(values))
	copy(backing, values)
	return tensor.New(tensor.WithShape(out.Size()...), tensor.WithBacking(backing)), nil
}

// Close releases the network. Later calls to Infer return inference.ErrModelUnavailable.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.net.Close()
}

func float32Bytes(data []float32) []byte {
	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}
