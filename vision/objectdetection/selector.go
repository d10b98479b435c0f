package objectdetection

import (
	"sort"
)

// DefaultConfidenceThreshold is the confidence a detection must exceed to count as a face.
const DefaultConfidenceThreshold = 0.2

// DedupMode says how a Selector treats faces of equal area.
type DedupMode string

const (
	// DedupByArea keys faces on their area: of several faces with identical area only the first
	// survives.
	DedupByArea DedupMode = "area"
	// DedupByIdentity keeps every face and uses area only to order them.
	DedupByIdentity DedupMode = "identity"
)

// Selector reduces raw detections to a FaceSet.
type Selector struct {
	Threshold float64
	Dedup     DedupMode
	// MinArea, when positive, drops faces smaller than this many pixels.
	MinArea float64
	// NMSThreshold, when positive and Dedup is DedupByIdentity, suppresses faces overlapping a
	// larger one by more than this IoU.
	NMSThreshold float64
}

// Select keeps the detections of raws whose confidence exceeds threshold, scales them to a
// width x height frame and returns them ranked by area with equal areas collapsed.
func Select(raws []RawDetection, width, height int, threshold float64) FaceSet {
	return Selector{Threshold: threshold, Dedup: DedupByArea}.Select(raws, width, height)
}

// Select reduces raws to the faces of a width x height frame.
func (s Selector) Select(raws []RawDetection, width, height int) FaceSet {
	candidates := make([]Detection, 0, len(raws))
	for _, raw := range raws {
		if d, ok := NewDetection(raw, width, height); ok {
			candidates = append(candidates, d)
		}
	}
	candidates = NewScoreFilter(s.Threshold)(candidates)
	if s.MinArea > 0 {
		candidates = NewAreaFilter(s.MinArea)(candidates)
	}

	faces := make([]Detection, 0, len(candidates))
	for _, d := range candidates {
		if s.Dedup == DedupByIdentity {
			faces = insertStable(faces, d)
		} else {
			faces = insertUniqueArea(faces, d)
		}
	}
	if s.Dedup == DedupByIdentity && s.NMSThreshold > 0 {
		faces = NewNMSFilter(s.NMSThreshold)(faces)
	}
	return FaceSet{faces: faces}
}

// insertUniqueArea inserts d into faces, kept in descending area order, unless a face of the same
// area is already present.
func insertUniqueArea(faces []Detection, d Detection) []Detection {
	i := sort.Search(len(faces), func(i int) bool { return faces[i].Area <= d.Area })
	if i < len(faces) && faces[i].Area == d.Area {
		return faces
	}
	return insertAt(faces, i, d)
}

// insertStable inserts d after every face at least as large.
func insertStable(faces []Detection, d Detection) []Detection {
	i := sort.Search(len(faces), func(i int) bool { return faces[i].Area < d.Area })
	return insertAt(faces, i, d)
}

func insertAt(faces []Detection, i int, d Detection) []Detection {
	faces = append(faces, Detection{})
	copy(faces[i+1:], faces[i:])
	faces[i] = d
	return faces
}
