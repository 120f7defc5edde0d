package cropper

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/sko/reframe/pkg/types"
)

// createSubjectImage creates a dark frame with a bright off-center rectangle
func createSubjectImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x >= width/8 && x < width/3 && y >= height/8 && y < height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{32, 32, 32, 255})
			}
		}
	}
	return img
}

// createBlankImage creates a uniform frame with no edge content
func createBlankImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{0, 0, 0, 255})
		}
	}
	return img
}

func faceBatch(x, y, w, h, confidence float64) types.SignalBatch {
	return types.SignalBatch{
		Signals: []types.RawSignal{
			{Kind: types.KindFace, Confidence: confidence, X: x, Y: y, Width: w, Height: h},
		},
	}
}

func checkInvariants(t *testing.T, box types.CropBox, frameWidth, frameHeight int, target types.TargetSpec) {
	t.Helper()

	if box.X < 0 || box.Y < 0 {
		t.Errorf("Crop box origin outside frame: %+v", box)
	}
	if box.X+box.Width > frameWidth || box.Y+box.Height > frameHeight {
		t.Errorf("Crop box %+v escapes %dx%d frame", box, frameWidth, frameHeight)
	}
	if box.Width < 1 || box.Height < 1 {
		t.Errorf("Crop box has non-positive dimensions: %+v", box)
	}
	if diff := math.Abs(box.Ratio() - target.Ratio()); diff > 0.01 {
		t.Errorf("Crop ratio %f deviates from target %f by %f", box.Ratio(), target.Ratio(), diff)
	}
}

func TestComputeCropBoxInvalidTarget(t *testing.T) {
	calc := New()

	_, err := calc.ComputeCropBox(Request{
		FrameWidth: 1000, FrameHeight: 1000,
		Target: types.TargetSpec{Width: 0, Height: 1080},
	})
	if !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("Expected ErrInvalidTarget, got %v", err)
	}

	_, err = calc.ComputeCropBox(Request{
		FrameWidth: 1000, FrameHeight: 1000,
		Target: types.TargetSpec{Width: 1080, Height: -1},
	})
	if !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("Expected ErrInvalidTarget, got %v", err)
	}
}

func TestComputeCropBoxInvalidFrame(t *testing.T) {
	calc := New()

	_, err := calc.ComputeCropBox(Request{
		FrameWidth: 0, FrameHeight: 1000,
		Target: types.TargetSpec{Width: 1080, Height: 1920},
	})
	if !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("Expected ErrInvalidFrame, got %v", err)
	}
}

func TestComputeCropBoxCenteredSubject(t *testing.T) {
	calc := New()

	// Face centered at (500, 500) in a square frame with a square target:
	// the crop is the whole frame.
	box, err := calc.ComputeCropBox(Request{
		FrameWidth: 1000, FrameHeight: 1000,
		Target:  types.TargetSpec{Width: 1080, Height: 1080},
		Batches: []types.SignalBatch{faceBatch(450, 450, 100, 100, 0.9)},
	})
	if err != nil {
		t.Fatalf("ComputeCropBox failed: %v", err)
	}

	if box.X != 0 || box.Y != 0 || box.Width != 1000 || box.Height != 1000 {
		t.Errorf("Expected full-frame crop, got %+v", box)
	}
	if box.Method != types.MethodAIDetected {
		t.Errorf("Expected ai_detected method, got %s", box.Method)
	}
}

func TestComputeCropBoxClampsToBoundary(t *testing.T) {
	calc := New()

	// Subject in the top-left corner: the crop translates into bounds
	// instead of shrinking.
	box, err := calc.ComputeCropBox(Request{
		FrameWidth: 1920, FrameHeight: 1080,
		Target:  types.TargetSpec{Width: 1080, Height: 1920},
		Batches: []types.SignalBatch{faceBatch(25, 25, 50, 50, 0.9)},
	})
	if err != nil {
		t.Fatalf("ComputeCropBox failed: %v", err)
	}

	if box.X != 0 || box.Y != 0 {
		t.Errorf("Expected crop pinned to the origin, got %+v", box)
	}
	if box.Height != 1080 {
		t.Errorf("Expected full-height crop for a portrait target, got %+v", box)
	}
	checkInvariants(t, box, 1920, 1080, types.TargetSpec{Width: 1080, Height: 1920})
}

func TestComputeCropBoxContainmentTable(t *testing.T) {
	calc := New()

	frames := []struct{ w, h int }{
		{1920, 1080},
		{1080, 1920},
		{640, 480},
		{3840, 2160},
		{100, 100},
	}
	targets := []types.TargetSpec{
		{Width: 1080, Height: 1920},
		{Width: 1920, Height: 1080},
		{Width: 1080, Height: 1080},
		{Width: 1280, Height: 720},
		{Width: 4, Height: 5},
	}
	anchors := []struct{ x, y float64 }{
		{0.05, 0.05},
		{0.5, 0.5},
		{0.95, 0.95},
		{0.9, 0.1},
	}

	for _, frame := range frames {
		for _, target := range targets {
			for _, anchor := range anchors {
				fx := anchor.x * float64(frame.w)
				fy := anchor.y * float64(frame.h)
				box, err := calc.ComputeCropBox(Request{
					FrameWidth: frame.w, FrameHeight: frame.h,
					Target:  target,
					Batches: []types.SignalBatch{faceBatch(fx-10, fy-10, 20, 20, 0.9)},
				})
				if err != nil {
					t.Fatalf("ComputeCropBox(%dx%d -> %dx%d) failed: %v",
						frame.w, frame.h, target.Width, target.Height, err)
				}
				checkInvariants(t, box, frame.w, frame.h, target)
			}
		}
	}
}

func TestComputeCropBoxMaximalCrop(t *testing.T) {
	calc := New()

	// Landscape frame, portrait target: the crop uses the full frame height.
	box, err := calc.ComputeCropBox(Request{
		FrameWidth: 1920, FrameHeight: 1080,
		Target:  types.TargetSpec{Width: 1080, Height: 1920},
		Batches: []types.SignalBatch{faceBatch(900, 500, 100, 100, 0.9)},
	})
	if err != nil {
		t.Fatalf("ComputeCropBox failed: %v", err)
	}
	if box.Height != 1080 {
		t.Errorf("Expected full-height crop, got height %d", box.Height)
	}

	// Portrait frame, landscape target: the crop uses the full frame width.
	box, err = calc.ComputeCropBox(Request{
		FrameWidth: 1080, FrameHeight: 1920,
		Target:  types.TargetSpec{Width: 1920, Height: 1080},
		Batches: []types.SignalBatch{faceBatch(500, 900, 100, 100, 0.9)},
	})
	if err != nil {
		t.Fatalf("ComputeCropBox failed: %v", err)
	}
	if box.Width != 1080 {
		t.Errorf("Expected full-width crop, got width %d", box.Width)
	}
}

func TestComputeCropBoxNormalizedSignals(t *testing.T) {
	calc := New()

	box, err := calc.ComputeCropBox(Request{
		FrameWidth: 2000, FrameHeight: 1000,
		Target: types.TargetSpec{Width: 1080, Height: 1080},
		Batches: []types.SignalBatch{
			{
				Normalized: true,
				Signals: []types.RawSignal{
					{Kind: types.KindFace, Confidence: 0.9, X: 0.7, Y: 0.4, Width: 0.1, Height: 0.2},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("ComputeCropBox failed: %v", err)
	}

	// Face center in pixels is (1500, 500); a 1000-wide square crop centered
	// there starts at x=1000.
	if box.X != 1000 || box.Y != 0 {
		t.Errorf("Expected crop at (1000, 0), got %+v", box)
	}
	if box.Method != types.MethodAIDetected {
		t.Errorf("Expected ai_detected method, got %s", box.Method)
	}
}

func TestComputeCropBoxFallsBackToContentAware(t *testing.T) {
	calc := New()

	box, err := calc.ComputeCropBox(Request{
		FrameWidth: 400, FrameHeight: 400,
		Target: types.TargetSpec{Width: 1080, Height: 1080},
		Frame:  createSubjectImage(400, 400),
	})
	if err != nil {
		t.Fatalf("ComputeCropBox failed: %v", err)
	}
	if box.Method != types.MethodContentAware {
		t.Errorf("Expected content_aware method, got %s", box.Method)
	}
	checkInvariants(t, box, 400, 400, types.TargetSpec{Width: 1080, Height: 1080})
}

func TestComputeCropBoxBlankFrameCenterFallback(t *testing.T) {
	calc := New()

	box, err := calc.ComputeCropBox(Request{
		FrameWidth: 1920, FrameHeight: 1080,
		Target: types.TargetSpec{Width: 1080, Height: 1920},
		Frame:  createBlankImage(1920, 1080),
	})
	if err != nil {
		t.Fatalf("ComputeCropBox failed: %v", err)
	}
	if box.Method != types.MethodCenterFallback {
		t.Errorf("Expected center_fallback method, got %s", box.Method)
	}

	// Centered horizontally within integer truncation.
	expectedX := (1920 - box.Width) / 2
	if diff := box.X - expectedX; diff > 1 || diff < -1 {
		t.Errorf("Expected horizontally centered crop, got %+v", box)
	}
	checkInvariants(t, box, 1920, 1080, types.TargetSpec{Width: 1080, Height: 1920})
}

func TestComputeCropBoxNoFrameCenterFallback(t *testing.T) {
	calc := New()

	box, err := calc.ComputeCropBox(Request{
		FrameWidth: 1000, FrameHeight: 1000,
		Target: types.TargetSpec{Width: 1080, Height: 1080},
	})
	if err != nil {
		t.Fatalf("ComputeCropBox failed: %v", err)
	}
	if box.Method != types.MethodCenterFallback {
		t.Errorf("Expected center_fallback method, got %s", box.Method)
	}
	if box.X != 0 || box.Y != 0 || box.Width != 1000 || box.Height != 1000 {
		t.Errorf("Expected full-frame centered crop, got %+v", box)
	}
}

func TestComputeCropBoxIgnoredSignalsUseFallback(t *testing.T) {
	calc := New()

	// Hands never anchor a crop; with nothing else the request degrades to
	// the fallback chain.
	box, err := calc.ComputeCropBox(Request{
		FrameWidth: 1000, FrameHeight: 1000,
		Target: types.TargetSpec{Width: 1080, Height: 1080},
		Batches: []types.SignalBatch{
			{
				Signals: []types.RawSignal{
					{Kind: types.KindHand, Confidence: 0.99, X: 100, Y: 100, Width: 200, Height: 200},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("ComputeCropBox failed: %v", err)
	}
	if box.Method != types.MethodCenterFallback {
		t.Errorf("Expected center_fallback method, got %s", box.Method)
	}
}

func TestComputeCropBoxVideoSamples(t *testing.T) {
	calc := New()

	// The subject drifts right across the clip; the aggregate crop anchors
	// on the weighted centroid rather than any single frame.
	samples := []types.FrameSample{
		{FrameIndex: 0, Batches: []types.SignalBatch{faceBatch(100, 450, 100, 100, 0.9)}},
		{FrameIndex: 1, Batches: []types.SignalBatch{faceBatch(450, 450, 100, 100, 0.9)}},
		{FrameIndex: 2, Batches: []types.SignalBatch{faceBatch(800, 450, 100, 100, 0.9)}},
	}

	box, err := calc.ComputeCropBox(Request{
		FrameWidth: 1000, FrameHeight: 1000,
		Target:  types.TargetSpec{Width: 1080, Height: 1920},
		Samples: samples,
	})
	if err != nil {
		t.Fatalf("ComputeCropBox failed: %v", err)
	}
	if box.Method != types.MethodAIDetected {
		t.Errorf("Expected ai_detected method, got %s", box.Method)
	}

	// Equal weights put the centroid at x=500.
	center := box.X + box.Width/2
	if center < 480 || center > 520 {
		t.Errorf("Expected crop centered near x=500, got center %d (%+v)", center, box)
	}
	checkInvariants(t, box, 1000, 1000, types.TargetSpec{Width: 1080, Height: 1920})
}

func TestComputeCropBoxVideoSamplesEmptyFallsBack(t *testing.T) {
	calc := New()

	samples := []types.FrameSample{
		{FrameIndex: 0},
		{FrameIndex: 1},
	}

	box, err := calc.ComputeCropBox(Request{
		FrameWidth: 1000, FrameHeight: 1000,
		Target:  types.TargetSpec{Width: 1080, Height: 1080},
		Samples: samples,
	})
	if err != nil {
		t.Fatalf("ComputeCropBox failed: %v", err)
	}
	if box.Method != types.MethodCenterFallback {
		t.Errorf("Expected center_fallback for subject-free samples, got %s", box.Method)
	}
}

func TestComputeCropBoxDeterministic(t *testing.T) {
	calc := New()

	req := Request{
		FrameWidth: 1920, FrameHeight: 1080,
		Target: types.TargetSpec{Width: 1080, Height: 1920},
		Batches: []types.SignalBatch{
			faceBatch(300, 200, 120, 120, 0.8),
			faceBatch(900, 400, 80, 80, 0.95),
		},
	}

	first, err := calc.ComputeCropBox(req)
	if err != nil {
		t.Fatalf("ComputeCropBox failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		box, err := calc.ComputeCropBox(req)
		if err != nil {
			t.Fatalf("ComputeCropBox failed on repeat %d: %v", i, err)
		}
		if box != first {
			t.Fatalf("Nondeterministic crop: %+v vs %+v", box, first)
		}
	}
}

func TestComputeCropBoxExtremeRatios(t *testing.T) {
	calc := New()

	targets := []types.TargetSpec{
		{Width: 1000, Height: 10},
		{Width: 10, Height: 1000},
		{Width: 1, Height: 3},
	}
	for _, target := range targets {
		box, err := calc.ComputeCropBox(Request{
			FrameWidth: 200, FrameHeight: 200,
			Target:  target,
			Batches: []types.SignalBatch{faceBatch(90, 90, 20, 20, 0.9)},
		})
		if err != nil {
			t.Fatalf("ComputeCropBox(%dx%d) failed: %v", target.Width, target.Height, err)
		}
		if box.Width < 1 || box.Height < 1 {
			t.Errorf("Degenerate crop for %dx%d target: %+v", target.Width, target.Height, box)
		}
		if box.X < 0 || box.Y < 0 || box.X+box.Width > 200 || box.Y+box.Height > 200 {
			t.Errorf("Crop escapes frame for %dx%d target: %+v", target.Width, target.Height, box)
		}
	}
}
