// Package subject turns normalized detection signals into ranked subjects
// and, for video, merges per-frame rankings into one aggregate focal point.
package subject

import (
	"math"
	"sort"

	"github.com/sko/reframe/pkg/types"
)

// kindPriority orders detector kinds by how strongly they should attract the
// crop. Hands never anchor a crop; their priority is zero.
var kindPriority = map[types.SignalKind]float64{
	types.KindFace:   3,
	types.KindPose:   2,
	types.KindObject: 1,
}

// kindOrder breaks exact score/area ties deterministically: the earlier kind
// in the priority table wins.
var kindOrder = map[types.SignalKind]int{
	types.KindFace:   0,
	types.KindPose:   1,
	types.KindObject: 2,
}

// Subject is a ranked, bounded region believed to hold important content.
type Subject struct {
	Kind       types.SignalKind
	Class      string
	Confidence float64
	Area       float64
	Center     types.Point
	Box        Rect
	Score      float64
}

// Rect is an axis-aligned rectangle in absolute pixels.
type Rect struct {
	X, Y, Width, Height float64
}

// Union returns the tightest rectangle containing both r and other.
func (r Rect) Union(other Rect) Rect {
	x0 := math.Min(r.X, other.X)
	y0 := math.Min(r.Y, other.Y)
	x1 := math.Max(r.X+r.Width, other.X+other.Width)
	y1 := math.Max(r.Y+r.Height, other.Y+other.Height)
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// RankerConfig holds the noise-filtering thresholds for object signals.
type RankerConfig struct {
	ObjectMinConfidence float64
	ObjectMinAreaRatio  float64
}

// DefaultRankerConfig returns the thresholds used when none are supplied.
func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		ObjectMinConfidence: 0.2,
		ObjectMinAreaRatio:  0.01,
	}
}

// Ranker scores signals and selects the dominant subject for a frame.
type Ranker struct {
	config RankerConfig
}

// NewRanker creates a Ranker with default thresholds.
func NewRanker() *Ranker {
	return &Ranker{config: DefaultRankerConfig()}
}

// NewRankerWithConfig creates a Ranker with custom thresholds.
func NewRankerWithConfig(config RankerConfig) *Ranker {
	return &Ranker{config: config}
}

// Ranking is the result of ranking one frame's signals. Subjects are ordered
// best first; the dominant subject, when present, is Subjects[0].
type Ranking struct {
	Subjects []Subject
}

// Empty reports whether no usable subject was found.
func (r Ranking) Empty() bool {
	return len(r.Subjects) == 0
}

// Dominant returns the highest-ranked subject.
func (r Ranking) Dominant() (Subject, bool) {
	if len(r.Subjects) == 0 {
		return Subject{}, false
	}
	return r.Subjects[0], true
}

// FocalPoints returns the centers of the top three subjects. These are
// supplementary centering hints only; the crop anchor is always the dominant
// subject's center.
func (r Ranking) FocalPoints() []types.Point {
	n := len(r.Subjects)
	if n > 3 {
		n = 3
	}
	points := make([]types.Point, 0, n)
	for _, s := range r.Subjects[:n] {
		points = append(points, s.Center)
	}
	return points
}

// Rank derives subjects from one frame's normalized signals and orders them.
// The result is invariant under permutation of the input signals.
func (k *Ranker) Rank(signals []types.DetectionSignal, frameWidth, frameHeight int) Ranking {
	if frameWidth <= 0 || frameHeight <= 0 {
		return Ranking{}
	}
	frameArea := float64(frameWidth) * float64(frameHeight)

	var subjects []Subject
	for _, sig := range signals {
		priority, ok := kindPriority[sig.Kind]
		if !ok || priority == 0 {
			continue
		}

		box := Rect{X: sig.X, Y: sig.Y, Width: sig.Width, Height: sig.Height}
		if sig.Kind == types.KindPose && sig.Pose != nil {
			box = poseBoundingBox(sig.Pose)
		}
		area := box.Width * box.Height
		if area <= 0 {
			continue
		}

		if sig.Kind == types.KindObject {
			if sig.Confidence <= k.config.ObjectMinConfidence {
				continue
			}
			if area < k.config.ObjectMinAreaRatio*frameArea {
				continue
			}
		}

		subjects = append(subjects, Subject{
			Kind:       sig.Kind,
			Class:      sig.Class,
			Confidence: sig.Confidence,
			Area:       area,
			Center:     types.Point{X: box.X + box.Width/2, Y: box.Y + box.Height/2},
			Box:        box,
			Score:      priority * sig.Confidence * (area / frameArea),
		})
	}

	sort.Slice(subjects, func(i, j int) bool {
		return lessSubject(subjects[j], subjects[i])
	})

	return Ranking{Subjects: subjects}
}

// lessSubject defines a total order so that ranking never depends on input
// order: score, then area, then kind priority, then confidence, then center.
func lessSubject(a, b Subject) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.Area != b.Area {
		return a.Area < b.Area
	}
	if kindOrder[a.Kind] != kindOrder[b.Kind] {
		return kindOrder[a.Kind] > kindOrder[b.Kind]
	}
	if a.Confidence != b.Confidence {
		return a.Confidence < b.Confidence
	}
	if a.Center.X != b.Center.X {
		return a.Center.X > b.Center.X
	}
	return a.Center.Y > b.Center.Y
}

// poseBoundingBox estimates a body box from shoulder span. Pose detectors
// return landmarks rather than boxes; a torso is roughly three shoulder
// widths tall with the head a third above the shoulders.
func poseBoundingBox(p *types.PoseLandmarks) Rect {
	shoulderWidth := math.Abs(p.RightShoulder.X - p.LeftShoulder.X)
	estimatedHeight := shoulderWidth * 3
	left := math.Min(p.LeftShoulder.X, p.RightShoulder.X)
	return Rect{
		X:      left - shoulderWidth/2,
		Y:      p.Nose.Y - estimatedHeight/3,
		Width:  shoulderWidth * 2,
		Height: estimatedHeight,
	}
}
