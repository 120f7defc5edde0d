// Package cropper computes the crop rectangle for a frame: it ranks detector
// signals, aggregates them across sampled video frames, anchors a maximal
// crop of the target aspect ratio on the chosen focal point, and falls back
// through content-aware, rule-of-thirds and center strategies when no signal
// is usable.
package cropper

import (
	"errors"
	"fmt"
	"image"

	"github.com/sko/reframe/pkg/signal"
	"github.com/sko/reframe/pkg/subject"
	"github.com/sko/reframe/pkg/types"
	"github.com/sko/reframe/pkg/vision"
)

var (
	// ErrInvalidTarget is returned for non-positive target dimensions.
	ErrInvalidTarget = errors.New("cropper: target dimensions must be positive")
	// ErrInvalidFrame is returned for non-positive frame dimensions; no crop
	// box can satisfy the containment invariants on a zero-area frame.
	ErrInvalidFrame = errors.New("cropper: frame dimensions must be positive")
)

// ratioTolerance is the maximum allowed deviation between the crop box ratio
// and the target ratio.
const ratioTolerance = 0.01

// Calculator computes crop boxes from detection signals.
type Calculator struct {
	ranker *subject.Ranker
	edges  *vision.EdgeDetector
}

// New creates a Calculator with default ranking and edge thresholds.
func New() *Calculator {
	return &Calculator{
		ranker: subject.NewRanker(),
		edges:  vision.NewEdgeDetector(),
	}
}

// NewWithConfig creates a Calculator with custom thresholds.
func NewWithConfig(rankerConfig subject.RankerConfig, edgeConfig vision.EdgeConfig) *Calculator {
	return &Calculator{
		ranker: subject.NewRankerWithConfig(rankerConfig),
		edges:  vision.NewEdgeDetectorWithConfig(edgeConfig),
	}
}

// Request describes one crop computation. Exactly one of Batches or Samples
// is consulted: Samples when non-empty (video path), Batches otherwise
// (image path). Frame optionally carries frame pixels for the content-aware
// and rule-of-thirds fallbacks; without it an empty signal set degrades
// straight to the center fallback.
type Request struct {
	FrameWidth  int
	FrameHeight int
	Target      types.TargetSpec
	Batches     []types.SignalBatch
	Samples     []types.FrameSample
	Frame       image.Image
}

// ComputeCropBox computes the crop rectangle for a frame or clip. It never
// fails for detection-related reasons; the only errors are invalid target or
// frame dimensions.
func (c *Calculator) ComputeCropBox(req Request) (types.CropBox, error) {
	if !req.Target.Valid() {
		return types.CropBox{}, fmt.Errorf("%w: %dx%d", ErrInvalidTarget, req.Target.Width, req.Target.Height)
	}
	if req.FrameWidth <= 0 || req.FrameHeight <= 0 {
		return types.CropBox{}, fmt.Errorf("%w: %dx%d", ErrInvalidFrame, req.FrameWidth, req.FrameHeight)
	}

	anchor, found := c.subjectAnchor(req)
	if found {
		return c.solve(req, anchor, types.MethodAIDetected), nil
	}
	return c.fallback(req), nil
}

// subjectAnchor resolves the crop anchor from detection signals: the dominant
// subject's center for a single frame, the aggregated weighted centroid for a
// sampled clip.
func (c *Calculator) subjectAnchor(req Request) (types.Point, bool) {
	if len(req.Samples) > 0 {
		agg := subject.NewAggregator(req.FrameWidth, req.FrameHeight)
		for _, sample := range req.Samples {
			normalized := normalizeBatches(sample.Batches, req.FrameWidth, req.FrameHeight)
			agg.Add(c.ranker.Rank(normalized, req.FrameWidth, req.FrameHeight))
		}
		return agg.Centroid()
	}

	normalized := normalizeBatches(req.Batches, req.FrameWidth, req.FrameHeight)
	ranking := c.ranker.Rank(normalized, req.FrameWidth, req.FrameHeight)
	dominant, ok := ranking.Dominant()
	if !ok {
		return types.Point{}, false
	}
	return dominant.Center, true
}

func normalizeBatches(batches []types.SignalBatch, frameWidth, frameHeight int) []types.DetectionSignal {
	var out []types.DetectionSignal
	for _, batch := range batches {
		out = append(out, signal.Normalize(batch, frameWidth, frameHeight)...)
	}
	return out
}

// fallback selects an anchor without detector signals: the largest prominent
// edge region, else the busiest rule-of-thirds intersection, else the frame
// center. All strategies share the same geometry solver.
func (c *Calculator) fallback(req Request) types.CropBox {
	center := types.Point{
		X: float64(req.FrameWidth) / 2,
		Y: float64(req.FrameHeight) / 2,
	}

	if req.Frame == nil {
		return c.solve(req, center, types.MethodCenterFallback)
	}
	edgeMap, err := c.edges.BuildEdgeMap(req.Frame)
	if err != nil {
		// Unreadable or degenerate frame: degrade, never propagate.
		return c.solve(req, center, types.MethodCenterFallback)
	}

	if regions := c.edges.ProminentRegions(edgeMap); len(regions) > 0 {
		x, y := regions[0].Center()
		return c.solve(req, types.Point{X: x, Y: y}, types.MethodContentAware)
	}

	if point, ok := c.edges.BestThirdsPoint(edgeMap); ok {
		return c.solve(req, types.Point{X: point.X, Y: point.Y}, types.MethodRuleOfThirds)
	}

	return c.solve(req, center, types.MethodCenterFallback)
}

// solve computes the largest crop of the target ratio that fits the frame,
// centers it on the anchor, translates it into bounds, and runs the final
// ratio enforcement pass.
func (c *Calculator) solve(req Request, anchor types.Point, method types.CropMethod) types.CropBox {
	fw := float64(req.FrameWidth)
	fh := float64(req.FrameHeight)
	ratio := req.Target.Ratio()

	// Two maximal candidates: full-width with derived height, full-height
	// with derived width. Exactly one fits; prefer full width when both do.
	width := fw
	height := fw / ratio
	if height > fh {
		height = fh
		width = fh * ratio
	}

	// Translate only, never resize: the ratio is exact at this point.
	x := clamp(anchor.X-width/2, 0, fw-width)
	y := clamp(anchor.Y-height/2, 0, fh-height)

	box := types.CropBox{
		X:      int(x),
		Y:      int(y),
		Width:  int(width),
		Height: int(height),
		Method: method,
	}
	return enforceRatio(box, ratio, req.FrameWidth, req.FrameHeight)
}

// enforceRatio corrects integer-truncation drift: if the truncated box ratio
// is outside tolerance, shrink the over-sized dimension to match, re-center
// the adjustment and re-clamp.
func enforceRatio(box types.CropBox, targetRatio float64, frameWidth, frameHeight int) types.CropBox {
	if box.Width < 1 {
		box.Width = 1
	}
	if box.Height < 1 {
		box.Height = 1
	}

	actual := float64(box.Width) / float64(box.Height)
	if diff := actual - targetRatio; diff > ratioTolerance || diff < -ratioTolerance {
		if actual > targetRatio {
			newWidth := int(float64(box.Height) * targetRatio)
			box.X += (box.Width - newWidth) / 2
			box.Width = newWidth
		} else {
			newHeight := int(float64(box.Width) / targetRatio)
			box.Y += (box.Height - newHeight) / 2
			box.Height = newHeight
		}
		if box.Width < 1 {
			box.Width = 1
		}
		if box.Height < 1 {
			box.Height = 1
		}
	}

	if box.X < 0 {
		box.X = 0
	}
	if box.Y < 0 {
		box.Y = 0
	}
	if box.X+box.Width > frameWidth {
		box.X = frameWidth - box.Width
	}
	if box.Y+box.Height > frameHeight {
		box.Y = frameHeight - box.Height
	}
	return box
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
