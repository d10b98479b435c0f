package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"github.com/evsproject/headcount/logging"
)

// AttributeMap is a raw, decoded-but-untyped config document.
type AttributeMap map[string]interface{}

// Read reads a config from the given file. Environment variables in the file are expanded
// before parsing. Options missing from the file keep their defaults.
func Read(ctx context.Context, filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(ctx context.Context, originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	attrs := AttributeMap{}
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&attrs); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", originalPath)
	}

	cfg, err := FromAttributes(attrs)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", originalPath)
	}
	if cfg.Dedup == DedupIdentity {
		logger.Infow("face selector keeps equal-area faces", "dedup", cfg.Dedup, "nms_iou_threshold", cfg.NMSIoUThreshold)
	}
	logger.Debugw("config loaded", "path", originalPath)
	return cfg, nil
}

// FromAttributes decodes attrs over the defaults and validates the result. Unknown keys are
// rejected so that typos do not silently fall back to defaults.
func FromAttributes(attrs AttributeMap) (*Config, error) {
	cfg := Default()
	if _, ok := attrs["mean_subtraction"]; ok {
		// decoding into a non-nil slice overwrites in place and never shrinks it.
		cfg.MeanSubtraction = nil
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:  "json",
		Result:   cfg,
		Metadata: &md,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]interface{}(attrs)); err != nil {
		return nil, err
	}
	if len(md.Unused) != 0 {
		sort.Strings(md.Unused)
		return nil, errors.Errorf("unknown config keys: %s", strings.Join(md.Unused, ", "))
	}

	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	return cfg, nil
}
