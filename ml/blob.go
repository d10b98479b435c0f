// Package ml converts frames into the tensors an inference engine consumes.
package ml

import (
	"image"

	"github.com/nfnt/resize"
	"gorgonia.org/tensor"
)

// BlobParams describes how a frame becomes an input tensor.
type BlobParams struct {
	// Size is the spatial size of the input tensor. The frame is stretched to it, not letterboxed.
	Size image.Point
	// Mean is subtracted per channel, in blue, green, red order.
	Mean [3]float64
}

// DefaultBlobParams is the reference input configuration: 300x300 with mean (104, 177, 123).
func DefaultBlobParams() BlobParams {
	return BlobParams{
		Size: image.Pt(300, 300),
		Mean: [3]float64{104.0, 177.0, 123.0},
	}
}

// NewBlob resizes img to params.Size and packs it into a 1x3xHxW float32 tensor. Channels are laid
// out in the capture device's native blue, green, red order; each has its mean subtracted and no
// other scaling is applied.
func NewBlob(img image.Image, params BlobParams) *tensor.Dense {
	width, height := params.Size.X, params.Size.Y
	resized := img
	if img.Bounds().Size() != params.Size {
		resized = resize.Resize(uint(width), uint(height), img, resize.Bilinear)
	}

	plane := width * height
	data := make([]float32, 3*plane)
	bounds := resized.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b := rgb8(resized, bounds.Min.X+x, bounds.Min.Y+y)
			idx := y*width + x
			data[idx] = float32(float64(b) - params.Mean[0])
			data[plane+idx] = float32(float64(g) - params.Mean[1])
			data[2*plane+idx] = float32(float64(r) - params.Mean[2])
		}
	}
	return tensor.New(tensor.WithShape(1, 3, height, width), tensor.WithBacking(data))
}

func rgb8(img image.Image, x, y int) (uint8, uint8, uint8) {
	if rgba, ok := img.(*image.RGBA); ok {
		i := rgba.PixOffset(x, y)
		return rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2]
	}
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}
