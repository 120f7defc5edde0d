package subject

import (
	"math"
	"testing"

	"github.com/sko/reframe/pkg/types"
)

func frameRanking(subjects ...Subject) Ranking {
	return Ranking{Subjects: subjects}
}

func faceSubject(x, y, w, h, confidence float64) Subject {
	return Subject{
		Kind:       types.KindFace,
		Confidence: confidence,
		Area:       w * h,
		Center:     types.Point{X: x + w/2, Y: y + h/2},
		Box:        Rect{X: x, Y: y, Width: w, Height: h},
	}
}

func personSubject(x, y, w, h, confidence float64) Subject {
	return Subject{
		Kind:       types.KindObject,
		Class:      "person",
		Confidence: confidence,
		Area:       w * h,
		Center:     types.Point{X: x + w/2, Y: y + h/2},
		Box:        Rect{X: x, Y: y, Width: w, Height: h},
	}
}

func TestAggregatorEmpty(t *testing.T) {
	agg := NewAggregator(1920, 1080)

	if !agg.Empty() {
		t.Error("Expected a fresh aggregator to be empty")
	}
	if _, ok := agg.Centroid(); ok {
		t.Error("Expected no centroid from an empty aggregator")
	}
	if _, ok := agg.UnionBox(); ok {
		t.Error("Expected no union box from an empty aggregator")
	}

	agg.Add(frameRanking())
	if !agg.Empty() {
		t.Error("Expected aggregator to stay empty after an empty ranking")
	}
}

func TestAggregatorWeightedCentroid(t *testing.T) {
	agg := NewAggregator(1000, 1000)

	// Face at (100, 100) with weight 1.0*2.0, plain object at (900, 900)
	// with weight 1.0*1.0. Centroid lands twice as close to the face.
	face := faceSubject(50, 50, 100, 100, 1.0)
	object := Subject{
		Kind:       types.KindObject,
		Class:      "dog",
		Confidence: 1.0,
		Area:       100 * 100,
		Center:     types.Point{X: 900, Y: 900},
		Box:        Rect{X: 850, Y: 850, Width: 100, Height: 100},
	}
	agg.Add(frameRanking(face, object))

	centroid, ok := agg.Centroid()
	if !ok {
		t.Fatal("Expected a centroid")
	}
	expected := (100.0*2 + 900.0*1) / 3.0
	if math.Abs(centroid.X-expected) > 1e-9 || math.Abs(centroid.Y-expected) > 1e-9 {
		t.Errorf("Expected centroid (%f, %f), got (%f, %f)", expected, expected, centroid.X, centroid.Y)
	}
}

func TestAggregatorPersonClassWeight(t *testing.T) {
	agg := NewAggregator(1000, 1000)
	agg.Add(frameRanking(
		personSubject(0, 0, 100, 100, 1.0),
		Subject{
			Kind:       types.KindObject,
			Class:      "chair",
			Confidence: 1.0,
			Area:       100 * 100,
			Center:     types.Point{X: 550, Y: 550},
			Box:        Rect{X: 500, Y: 500, Width: 100, Height: 100},
		},
	))

	centroid, ok := agg.Centroid()
	if !ok {
		t.Fatal("Expected a centroid")
	}
	// Person weight 1.5 vs chair weight 1.0.
	expected := (50.0*1.5 + 550.0*1.0) / 2.5
	if math.Abs(centroid.X-expected) > 1e-9 {
		t.Errorf("Expected centroid x %f, got %f", expected, centroid.X)
	}
}

func TestAggregatorOrderInvariance(t *testing.T) {
	rankings := []Ranking{
		frameRanking(faceSubject(100, 100, 50, 50, 0.75)),
		frameRanking(personSubject(400, 300, 200, 400, 0.5)),
		frameRanking(faceSubject(700, 200, 80, 80, 0.25)),
	}

	forward := NewAggregator(1920, 1080)
	for _, r := range rankings {
		forward.Add(r)
	}
	backward := NewAggregator(1920, 1080)
	for i := len(rankings) - 1; i >= 0; i-- {
		backward.Add(rankings[i])
	}

	c1, ok1 := forward.Centroid()
	c2, ok2 := backward.Centroid()
	if !ok1 || !ok2 {
		t.Fatal("Expected centroids from both orders")
	}
	if math.Abs(c1.X-c2.X) > 1e-9 || math.Abs(c1.Y-c2.Y) > 1e-9 {
		t.Errorf("Centroid depends on add order: (%f, %f) vs (%f, %f)", c1.X, c1.Y, c2.X, c2.Y)
	}

	u1, _ := forward.UnionBox()
	u2, _ := backward.UnionBox()
	if u1 != u2 {
		t.Errorf("Union box depends on add order: %+v vs %+v", u1, u2)
	}
}

func TestAggregatorDuplicationInvariance(t *testing.T) {
	single := NewAggregator(1920, 1080)
	doubled := NewAggregator(1920, 1080)

	rankings := []Ranking{
		frameRanking(faceSubject(100, 100, 50, 50, 0.9)),
		frameRanking(personSubject(500, 400, 100, 300, 0.6)),
	}
	for _, r := range rankings {
		single.Add(r)
		doubled.Add(r)
		doubled.Add(r)
	}

	c1, _ := single.Centroid()
	c2, _ := doubled.Centroid()
	if math.Abs(c1.X-c2.X) > 1e-9 || math.Abs(c1.Y-c2.Y) > 1e-9 {
		t.Errorf("Centroid changed under duplication: (%f, %f) vs (%f, %f)", c1.X, c1.Y, c2.X, c2.Y)
	}
}

func TestAggregatorUnionBox(t *testing.T) {
	agg := NewAggregator(1920, 1080)
	agg.Add(frameRanking(faceSubject(100, 100, 50, 50, 0.9)))
	agg.Add(frameRanking(faceSubject(500, 400, 100, 100, 0.8)))

	union, ok := agg.UnionBox()
	if !ok {
		t.Fatal("Expected a union box")
	}
	expected := Rect{X: 100, Y: 100, Width: 500, Height: 400}
	if union != expected {
		t.Errorf("Expected union %+v, got %+v", expected, union)
	}
}

func TestAggregatorPaddedBox(t *testing.T) {
	agg := NewAggregator(1000, 1000)
	agg.Add(frameRanking(faceSubject(400, 400, 200, 200, 0.9)))

	padded, ok := agg.PaddedBox()
	if !ok {
		t.Fatal("Expected a padded box")
	}

	// Pad is max(200*0.5, 1000*0.1) = 100 per side.
	expected := Rect{X: 300, Y: 300, Width: 400, Height: 400}
	if padded != expected {
		t.Errorf("Expected padded box %+v, got %+v", expected, padded)
	}
}

func TestAggregatorPaddedBoxClampedToFrame(t *testing.T) {
	agg := NewAggregator(1000, 1000)
	agg.Add(frameRanking(faceSubject(0, 0, 100, 100, 0.9)))

	padded, ok := agg.PaddedBox()
	if !ok {
		t.Fatal("Expected a padded box")
	}
	if padded.X < 0 || padded.Y < 0 {
		t.Errorf("Padded box escapes the frame origin: %+v", padded)
	}
	if padded.X+padded.Width > 1000 || padded.Y+padded.Height > 1000 {
		t.Errorf("Padded box escapes the frame: %+v", padded)
	}
}
