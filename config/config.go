// Package config defines the structures to configure a headcount pipeline and the functions to read
// and validate them.
package config

import (
	"image"
	"time"

	"github.com/pkg/errors"
)

// Camera drivers a Config can select.
const (
	CameraDriverWebcam       = "webcam"
	CameraDriverMediaDevices = "mediadevices"
)

// Dedup modes for the face selector.
const (
	// DedupArea keys FaceSet uniqueness on area, so two faces of identical area collapse into one.
	DedupArea = "area"
	// DedupIdentity keeps every accepted detection and uses area only for ordering.
	DedupIdentity = "identity"
)

// Config is the complete configuration of a headcount pipeline.
type Config struct {
	ConfidenceThreshold float64   `json:"confidence_threshold"`
	TickIntervalMs      int       `json:"tick_interval_ms"`
	InputTensorSize     [2]int    `json:"input_tensor_size"`
	MeanSubtraction     []float64 `json:"mean_subtraction"`
	FPSWindowMs         int       `json:"fps_window_ms"`
	RecordingFPS        float64   `json:"recording_fps"`

	RecordingEnabled bool   `json:"recording_enabled"`
	RecordingPath    string `json:"recording_path"`

	Dedup           string  `json:"dedup"`
	NMSIoUThreshold float64 `json:"nms_iou_threshold"`
	MinFaceArea     float64 `json:"min_face_area"`

	Camera CameraConfig `json:"camera"`
	Model  ModelConfig  `json:"model"`

	Debug bool `json:"debug"`
}

// CameraConfig selects and sizes the capture device.
type CameraConfig struct {
	Driver   string `json:"driver"`
	DeviceID int    `json:"device_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// ModelConfig locates the face detection network on disk.
type ModelConfig struct {
	ConfigPath  string `json:"config_path"`
	WeightsPath string `json:"weights_path"`
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		ConfidenceThreshold: 0.2,
		TickIntervalMs:      30,
		InputTensorSize:     [2]int{300, 300},
		MeanSubtraction:     []float64{104.0, 177.0, 123.0},
		FPSWindowMs:         1000,
		RecordingFPS:        30,
		RecordingEnabled:    true,
		RecordingPath:       "output_video.avi",
		Dedup:               DedupArea,
		Camera: CameraConfig{
			Driver: CameraDriverWebcam,
		},
		Model: ModelConfig{
			ConfigPath:  "deploy.prototxt",
			WeightsPath: "res10_300x300_ssd_iter_140000.caffemodel",
		},
	}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold >= 1 {
		return errors.Errorf("%s: confidence_threshold must be in [0, 1), got %v", path, c.ConfidenceThreshold)
	}
	if c.TickIntervalMs <= 0 {
		return errors.Errorf("%s: tick_interval_ms must be positive, got %d", path, c.TickIntervalMs)
	}
	if c.InputTensorSize[0] <= 0 || c.InputTensorSize[1] <= 0 {
		return errors.Errorf("%s: input_tensor_size must be positive, got %v", path, c.InputTensorSize)
	}
	if len(c.MeanSubtraction) != 3 {
		return errors.Errorf("%s: mean_subtraction needs one value per channel, got %d", path, len(c.MeanSubtraction))
	}
	if c.FPSWindowMs <= 0 {
		return errors.Errorf("%s: fps_window_ms must be positive, got %d", path, c.FPSWindowMs)
	}
	if c.RecordingFPS <= 0 {
		return errors.Errorf("%s: recording_fps must be positive, got %v", path, c.RecordingFPS)
	}
	if c.RecordingEnabled && c.RecordingPath == "" {
		return errors.Errorf("%s: recording_path is required when recording is enabled", path)
	}
	switch c.Dedup {
	case DedupArea, DedupIdentity:
	default:
		return errors.Errorf("%s: unknown dedup mode %q", path, c.Dedup)
	}
	if c.NMSIoUThreshold < 0 || c.NMSIoUThreshold > 1 {
		return errors.Errorf("%s: nms_iou_threshold must be in [0, 1], got %v", path, c.NMSIoUThreshold)
	}
	if c.MinFaceArea < 0 {
		return errors.Errorf("%s: min_face_area must not be negative, got %v", path, c.MinFaceArea)
	}
	if c.NMSIoUThreshold > 0 && c.Dedup != DedupIdentity {
		return errors.Errorf("%s: nms_iou_threshold requires dedup %q", path, DedupIdentity)
	}
	if err := c.Camera.Validate(path + ".camera"); err != nil {
		return err
	}
	return c.Model.Validate(path + ".model")
}

// Validate ensures the camera section is usable.
func (c *CameraConfig) Validate(path string) error {
	switch c.Driver {
	case CameraDriverWebcam, CameraDriverMediaDevices:
	default:
		return errors.Errorf("%s: unknown driver %q", path, c.Driver)
	}
	if c.DeviceID < 0 {
		return errors.Errorf("%s: device_id must not be negative", path)
	}
	if c.Width < 0 || c.Height < 0 {
		return errors.Errorf("%s: width and height must not be negative", path)
	}
	return nil
}

// Validate ensures both model files are named. Whether they load is decided at startup.
func (c *ModelConfig) Validate(path string) error {
	if c.ConfigPath == "" {
		return errors.Errorf("%s: config_path is required", path)
	}
	if c.WeightsPath == "" {
		return errors.Errorf("%s: weights_path is required", path)
	}
	return nil
}

// TickInterval is the fixed cadence of the pipeline.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// FPSWindow is the frame rate measurement window.
func (c *Config) FPSWindow() time.Duration {
	return time.Duration(c.FPSWindowMs) * time.Millisecond
}

// InputSize is the spatial size of the inference engine's input tensor.
func (c *Config) InputSize() image.Point {
	return image.Pt(c.InputTensorSize[0], c.InputTensorSize[1])
}

// Mean returns the per-channel mean subtraction. Call only on a validated config.
func (c *Config) Mean() [3]float64 {
	return [3]float64{c.MeanSubtraction[0], c.MeanSubtraction[1], c.MeanSubtraction[2]}
}
