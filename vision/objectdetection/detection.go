// Package objectdetection turns raw detector output into ranked faces and draws them onto frames.
package objectdetection

import (
	"context"
	"image"
	"sort"
)

// RawDetection is one row of a detector's output tensor.
type RawDetection struct {
	Confidence float32
	// Box holds the corners x1, y1, x2, y2 normalized to [0, 1].
	Box [4]float32
}

// Detector returns every raw detection found in an image, whatever its confidence.
type Detector func(ctx context.Context, img image.Image) ([]RawDetection, error)

// Detection is a face bounding box in pixel space.
type Detection struct {
	Rect  image.Rectangle
	Area  float64
	Score float64
}

// NewDetection scales raw to a width x height frame. Corners are truncated toward zero. It returns
// false if the resulting box has no positive width or height.
func NewDetection(raw RawDetection, width, height int) (Detection, bool) {
	w, h := float32(width), float32(height)
	x1 := int(raw.Box[0] * w)
	y1 := int(raw.Box[1] * h)
	x2 := int(raw.Box[2] * w)
	y2 := int(raw.Box[3] * h)
	dx, dy := x2-x1, y2-y1
	if dx <= 0 || dy <= 0 {
		return Detection{}, false
	}
	return Detection{
		Rect:  image.Rectangle{Min: image.Pt(x1, y1), Max: image.Pt(x2, y2)},
		Area:  float64(dx * dy),
		Score: float64(raw.Confidence),
	}, true
}

// FaceSet is an immutable list of faces ordered by area, largest first.
type FaceSet struct {
	faces []Detection
}

// NewFaceSet builds a FaceSet from faces, sorting them by area with ties kept in input order.
// No deduplication is done.
func NewFaceSet(faces []Detection) FaceSet {
	sorted := make([]Detection, len(faces))
	copy(sorted, faces)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Area > sorted[j].Area
	})
	return FaceSet{faces: sorted}
}

// Len is the head count.
func (fs FaceSet) Len() int {
	return len(fs.faces)
}

// At returns the i-th largest face.
func (fs FaceSet) At(i int) Detection {
	return fs.faces[i]
}

// Faces returns a copy of the faces in order.
func (fs FaceSet) Faces() []Detection {
	out := make([]Detection, len(fs.faces))
	copy(out, fs.faces)
	return out
}
