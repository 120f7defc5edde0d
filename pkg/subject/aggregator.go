package subject

import (
	"math"

	"github.com/sko/reframe/pkg/types"
)

// Aggregate weights mirror the ranker's kind bias at clip level: faces pull
// the centroid hardest, detected people next, everything else neutrally.
const (
	faceAggregateWeight   = 2.0
	personAggregateWeight = 1.5
)

// Aggregator merges per-frame rankings of a sampled clip into one weighted
// centroid and one union bounding box. The merge is a commutative,
// associative weighted sum, so samples may be added in any order and partial
// aggregates are always valid.
type Aggregator struct {
	frameWidth  int
	frameHeight int

	weightSum float64
	weightedX float64
	weightedY float64

	union    Rect
	hasUnion bool
	count    int
}

// NewAggregator creates an Aggregator for a clip with the given frame size.
func NewAggregator(frameWidth, frameHeight int) *Aggregator {
	return &Aggregator{frameWidth: frameWidth, frameHeight: frameHeight}
}

// Add merges one sampled frame's ranking into the aggregate.
func (a *Aggregator) Add(r Ranking) {
	for _, s := range r.Subjects {
		w := s.Confidence * aggregateWeight(s)
		a.weightSum += w
		a.weightedX += s.Center.X * w
		a.weightedY += s.Center.Y * w

		if a.hasUnion {
			a.union = a.union.Union(s.Box)
		} else {
			a.union = s.Box
			a.hasUnion = true
		}
		a.count++
	}
}

func aggregateWeight(s Subject) float64 {
	switch {
	case s.Kind == types.KindFace:
		return faceAggregateWeight
	case s.Kind == types.KindObject && s.Class == "person":
		return personAggregateWeight
	default:
		return 1.0
	}
}

// Empty reports whether every sampled frame yielded an empty candidate set.
func (a *Aggregator) Empty() bool {
	return a.count == 0 || a.weightSum == 0
}

// SubjectCount returns the number of subjects merged so far.
func (a *Aggregator) SubjectCount() int {
	return a.count
}

// Centroid returns the confidence- and kind-weighted mean center of all
// merged subjects. Duplicating every sample scales numerator and denominator
// equally, so the centroid is invariant under uniform duplication.
func (a *Aggregator) Centroid() (types.Point, bool) {
	if a.Empty() {
		return types.Point{}, false
	}
	return types.Point{
		X: a.weightedX / a.weightSum,
		Y: a.weightedY / a.weightSum,
	}, true
}

// UnionBox returns the tightest box containing every merged subject's box.
func (a *Aggregator) UnionBox() (Rect, bool) {
	if !a.hasUnion {
		return Rect{}, false
	}
	return a.union, true
}

// PaddedBox returns the union box grown by a margin of half the detection
// span or a tenth of the frame dimension per axis, whichever is larger,
// clamped to the frame. Used to size a crop when no target ratio is supplied.
func (a *Aggregator) PaddedBox() (Rect, bool) {
	if !a.hasUnion {
		return Rect{}, false
	}
	padX := math.Max(a.union.Width*0.5, float64(a.frameWidth)*0.1)
	padY := math.Max(a.union.Height*0.5, float64(a.frameHeight)*0.1)

	x0 := math.Max(0, a.union.X-padX)
	y0 := math.Max(0, a.union.Y-padY)
	x1 := math.Min(float64(a.frameWidth), a.union.X+a.union.Width+padX)
	y1 := math.Min(float64(a.frameHeight), a.union.Y+a.union.Height+padY)

	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, true
}
