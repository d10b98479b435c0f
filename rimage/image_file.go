package rimage

import (
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// DefaultJPEGQuality is the quality used for still images.
const DefaultJPEGQuality = 95

// EncodeJPEG writes img to w as a JPEG.
func EncodeJPEG(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(DefaultJPEGQuality))
}

// WriteJPEG writes img as a JPEG to the file at path, whatever its extension, replacing any
// existing file.
func WriteJPEG(path string, img image.Image) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %q", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return EncodeJPEG(f, img)
}
