package subject

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/sko/reframe/pkg/types"
)

func TestRankFacePrevailsOverEqualObject(t *testing.T) {
	ranker := NewRanker()
	signals := []types.DetectionSignal{
		{Kind: types.KindObject, Class: "car", Confidence: 0.9, X: 700, Y: 700, Width: 100, Height: 100},
		{Kind: types.KindFace, Confidence: 0.9, X: 100, Y: 100, Width: 100, Height: 100},
	}

	ranking := ranker.Rank(signals, 1000, 1000)
	dominant, ok := ranking.Dominant()
	if !ok {
		t.Fatal("Expected a dominant subject")
	}
	if dominant.Kind != types.KindFace {
		t.Errorf("Expected face to dominate an equal-sized object, got %s", dominant.Kind)
	}
	if dominant.Center.X != 150 || dominant.Center.Y != 150 {
		t.Errorf("Expected center (150, 150), got (%f, %f)", dominant.Center.X, dominant.Center.Y)
	}
}

func TestRankScoreComposition(t *testing.T) {
	ranker := NewRanker()
	signals := []types.DetectionSignal{
		{Kind: types.KindFace, Confidence: 0.5, X: 0, Y: 0, Width: 200, Height: 100},
	}

	ranking := ranker.Rank(signals, 1000, 1000)
	dominant, ok := ranking.Dominant()
	if !ok {
		t.Fatal("Expected a dominant subject")
	}

	// priority 3 * confidence 0.5 * area fraction 0.02
	expected := 3 * 0.5 * (200.0 * 100.0 / 1_000_000.0)
	if diff := dominant.Score - expected; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected score %f, got %f", expected, dominant.Score)
	}
}

func TestRankExcludesHands(t *testing.T) {
	ranker := NewRanker()
	signals := []types.DetectionSignal{
		{Kind: types.KindHand, Confidence: 0.99, X: 0, Y: 0, Width: 500, Height: 500},
	}

	ranking := ranker.Rank(signals, 1000, 1000)
	if !ranking.Empty() {
		t.Errorf("Expected hands to never rank, got %d subjects", len(ranking.Subjects))
	}
}

func TestRankFiltersWeakObjects(t *testing.T) {
	ranker := NewRanker()
	signals := []types.DetectionSignal{
		// Confidence at the threshold is excluded.
		{Kind: types.KindObject, Class: "cup", Confidence: 0.2, X: 0, Y: 0, Width: 300, Height: 300},
		// Area below 1% of the frame is excluded.
		{Kind: types.KindObject, Class: "cup", Confidence: 0.9, X: 0, Y: 0, Width: 50, Height: 50},
		// Both thresholds cleared.
		{Kind: types.KindObject, Class: "cup", Confidence: 0.21, X: 0, Y: 0, Width: 100, Height: 100},
	}

	ranking := ranker.Rank(signals, 1000, 1000)
	if len(ranking.Subjects) != 1 {
		t.Fatalf("Expected 1 subject after filtering, got %d", len(ranking.Subjects))
	}
	if ranking.Subjects[0].Confidence != 0.21 {
		t.Errorf("Wrong object survived filtering: %+v", ranking.Subjects[0])
	}
}

func TestRankFaceBypassesObjectFilters(t *testing.T) {
	ranker := NewRanker()
	signals := []types.DetectionSignal{
		// Tiny and weak, but faces are never filtered.
		{Kind: types.KindFace, Confidence: 0.1, X: 10, Y: 10, Width: 20, Height: 20},
	}

	ranking := ranker.Rank(signals, 1000, 1000)
	if ranking.Empty() {
		t.Error("Expected a weak small face to still rank")
	}
}

func TestRankPermutationInvariance(t *testing.T) {
	ranker := NewRanker()
	signals := []types.DetectionSignal{
		{Kind: types.KindFace, Confidence: 0.9, X: 100, Y: 100, Width: 100, Height: 100},
		{Kind: types.KindFace, Confidence: 0.9, X: 500, Y: 500, Width: 100, Height: 100},
		{Kind: types.KindObject, Class: "person", Confidence: 0.8, X: 200, Y: 200, Width: 300, Height: 300},
		{Kind: types.KindObject, Class: "dog", Confidence: 0.5, X: 600, Y: 100, Width: 150, Height: 150},
	}

	baseline := ranker.Rank(signals, 1000, 1000)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]types.DetectionSignal, len(signals))
		copy(shuffled, signals)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		ranking := ranker.Rank(shuffled, 1000, 1000)
		if !reflect.DeepEqual(ranking.Subjects, baseline.Subjects) {
			t.Fatalf("Ranking depends on input order (iteration %d)", i)
		}
	}
}

func TestRankPoseBoundingBoxFromShoulders(t *testing.T) {
	ranker := NewRanker()
	pose := &types.PoseLandmarks{
		Nose:          types.Point{X: 500, Y: 300},
		LeftShoulder:  types.Point{X: 400, Y: 400},
		RightShoulder: types.Point{X: 600, Y: 400},
	}
	signals := []types.DetectionSignal{
		{Kind: types.KindPose, Confidence: 0.8, X: 400, Y: 300, Width: 200, Height: 100, Pose: pose},
	}

	ranking := ranker.Rank(signals, 1000, 1000)
	dominant, ok := ranking.Dominant()
	if !ok {
		t.Fatal("Expected a dominant subject")
	}

	// Shoulder width 200: box is 400 wide, 600 tall, left edge one half
	// shoulder width outside the leftmost shoulder.
	box := dominant.Box
	if box.X != 300 || box.Width != 400 || box.Height != 600 {
		t.Errorf("Unexpected pose box: %+v", box)
	}
	if box.Y != 100 {
		t.Errorf("Expected box top at nose minus a third of height, got %f", box.Y)
	}
	if dominant.Center.X != 500 || dominant.Center.Y != 400 {
		t.Errorf("Expected center (500, 400), got (%f, %f)", dominant.Center.X, dominant.Center.Y)
	}
}

func TestFocalPointsCapped(t *testing.T) {
	ranker := NewRanker()
	var signals []types.DetectionSignal
	for i := 0; i < 5; i++ {
		signals = append(signals, types.DetectionSignal{
			Kind: types.KindFace, Confidence: 0.5 + float64(i)*0.05,
			X: float64(i * 100), Y: 100, Width: 100, Height: 100,
		})
	}

	ranking := ranker.Rank(signals, 1000, 1000)
	points := ranking.FocalPoints()
	if len(points) != 3 {
		t.Errorf("Expected 3 focal points, got %d", len(points))
	}
}

func TestRankInvalidFrame(t *testing.T) {
	ranker := NewRanker()
	signals := []types.DetectionSignal{
		{Kind: types.KindFace, Confidence: 0.9, X: 10, Y: 10, Width: 50, Height: 50},
	}

	if ranking := ranker.Rank(signals, 0, 1000); !ranking.Empty() {
		t.Error("Expected empty ranking for zero-width frame")
	}
}
