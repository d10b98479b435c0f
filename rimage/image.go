// Package rimage holds the image helpers shared by the pipeline: frame copies, drawing and
// still-image encoding.
package rimage

import (
	"image"
	"image/color"
	"image/draw"
)

// Named colors used for overlays.
var (
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

// ConvertToRGBA returns img as an *image.RGBA, converting it if it is some other image type.
// An *image.RGBA is returned as is, without copying.
func ConvertToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	return CloneRGBA(img)
}

// CloneRGBA returns a new *image.RGBA holding a copy of img's pixels, with bounds starting at the
// origin.
func CloneRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// CopyRGBA copies src into dst and returns dst. If dst is nil or its size differs from src, a new
// image is allocated instead, so callers can keep reusing the returned buffer.
func CopyRGBA(dst, src *image.RGBA) *image.RGBA {
	if dst == nil || dst.Bounds().Size() != src.Bounds().Size() {
		return CloneRGBA(src)
	}
	if src.Rect.Min == (image.Point{}) && dst.Stride == src.Stride {
		copy(dst.Pix, src.Pix)
		return dst
	}
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

// Fill sets every pixel of img to c.
func Fill(img *image.RGBA, c color.RGBA) {
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
}
