package objectdetection

import (
	"image"
)

// Postprocessor defines a function that filters/modifies on an incoming array of Detections.
type Postprocessor func([]Detection) []Detection

// NewAreaFilter returns a function that filters out detections below a certain area.
func NewAreaFilter(area float64) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if d.Area >= area {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewScoreFilter returns a function that filters out detections at or below a certain confidence.
func NewScoreFilter(conf float64) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if d.Score > conf {
				out = append(out, d)
			}
		}
		return out
	}
}

// NewNMSFilter returns a function that greedily drops every detection whose intersection over union
// with an earlier kept detection exceeds iou. Input order is priority order.
func NewNMSFilter(iou float64) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			suppressed := false
			for _, kept := range out {
				if IoU(d.Rect, kept.Rect) > iou {
					suppressed = true
					break
				}
			}
			if !suppressed {
				out = append(out, d)
			}
		}
		return out
	}
}

// IoU is the intersection over union of two rectangles.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	i := float64(inter.Dx() * inter.Dy())
	u := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - i
	if u <= 0 {
		return 0
	}
	return i / u
}
