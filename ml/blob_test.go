package ml

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestNewBlobLayout(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.Set(1, 0, color.RGBA{R: 200, G: 177, B: 104, A: 255})
	img.Set(0, 1, color.RGBA{R: 123, G: 0, B: 255, A: 255})
	img.Set(1, 1, color.RGBA{A: 255})

	params := BlobParams{Size: image.Pt(2, 2), Mean: [3]float64{104, 177, 123}}
	blob := NewBlob(img, params)
	test.That(t, []int(blob.Shape()), test.ShouldResemble, []int{1, 3, 2, 2})

	data, ok := blob.Data().([]float32)
	test.That(t, ok, test.ShouldBeTrue)
	// blue plane
	test.That(t, data[0:4], test.ShouldResemble, []float32{30 - 104, 0, 255 - 104, -104})
	// green plane
	test.That(t, data[4:8], test.ShouldResemble, []float32{20 - 177, 0, -177, -177})
	// red plane
	test.That(t, data[8:12], test.ShouldResemble, []float32{10 - 123, 200 - 123, 0, -123})
}

func TestNewBlobResizes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	blob := NewBlob(img, DefaultBlobParams())
	test.That(t, []int(blob.Shape()), test.ShouldResemble, []int{1, 3, 300, 300})

	data := blob.Data().([]float32)
	test.That(t, data, test.ShouldHaveLength, 3*300*300)
	// a uniform image stays uniform through bilinear resizing.
	test.That(t, data[0], test.ShouldEqual, float32(200-104))
	test.That(t, data[300*300+150*300+150], test.ShouldEqual, float32(200-177))
	test.That(t, data[len(data)-1], test.ShouldEqual, float32(200-123))
}
