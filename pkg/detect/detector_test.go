package detect

import (
	"context"
	"fmt"
	"image"
	"testing"

	"github.com/sko/reframe/pkg/types"
)

type stubDetector struct {
	name  string
	batch types.SignalBatch
	err   error
}

func (s *stubDetector) Name() string { return s.name }

func (s *stubDetector) DetectRegions(ctx context.Context, img image.Image, frameWidth, frameHeight int) (types.SignalBatch, error) {
	return s.batch, s.err
}

func TestRunAllCollectsSuccessfulBatches(t *testing.T) {
	faces := types.SignalBatch{
		Signals: []types.RawSignal{
			{Kind: types.KindFace, Confidence: 0.9, X: 10, Y: 10, Width: 50, Height: 50},
		},
	}
	objects := types.SignalBatch{
		Normalized: true,
		Signals: []types.RawSignal{
			{Kind: types.KindObject, Class: "dog", Confidence: 0.7, X: 0.5, Y: 0.5, Width: 0.2, Height: 0.2},
		},
	}

	detectors := []Detector{
		&stubDetector{name: "a", batch: faces},
		&stubDetector{name: "b", batch: objects},
	}

	batches := RunAll(context.Background(), detectors, nil, 1000, 1000)
	if len(batches) != 2 {
		t.Fatalf("Expected 2 batches, got %d", len(batches))
	}
	if batches[0].Normalized || !batches[1].Normalized {
		t.Error("Batches lost their coordinate convention flags")
	}
}

func TestRunAllSwallowsBackendErrors(t *testing.T) {
	good := types.SignalBatch{
		Signals: []types.RawSignal{
			{Kind: types.KindFace, Confidence: 0.9, X: 10, Y: 10, Width: 50, Height: 50},
		},
	}

	detectors := []Detector{
		&stubDetector{name: "broken", err: fmt.Errorf("model unreachable")},
		&stubDetector{name: "working", batch: good},
	}

	batches := RunAll(context.Background(), detectors, nil, 1000, 1000)
	if len(batches) != 1 {
		t.Fatalf("Expected 1 batch after a backend failure, got %d", len(batches))
	}
}

func TestRunAllDropsEmptyBatches(t *testing.T) {
	detectors := []Detector{
		&stubDetector{name: "silent"},
	}

	batches := RunAll(context.Background(), detectors, nil, 1000, 1000)
	if len(batches) != 0 {
		t.Errorf("Expected no batches from an empty detector, got %d", len(batches))
	}
}
