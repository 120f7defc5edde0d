// Package detect holds the detector boundary: pluggable backends that look
// at a frame and report interesting regions as signal batches. The crop
// calculator consumes the batches; it never talks to a backend directly and
// treats a failed detector the same as one that found nothing.
package detect

import (
	"context"
	"image"

	"github.com/sko/reframe/pkg/types"
)

// Detector analyzes one frame and returns a batch of raw signals. The batch
// carries its own coordinate convention flag. An empty batch is a valid
// result, not an error.
type Detector interface {
	// Name identifies the backend in logs.
	Name() string
	// DetectRegions runs detection on one frame. frameWidth/frameHeight are
	// the source frame dimensions in pixels.
	DetectRegions(ctx context.Context, img image.Image, frameWidth, frameHeight int) (types.SignalBatch, error)
}

// RunAll invokes every detector on the frame and collects the batches that
// succeeded. Backend errors are swallowed into empty results; the fallback
// chain's contract is that it is always safe to proceed with fewer signals.
func RunAll(ctx context.Context, detectors []Detector, img image.Image, frameWidth, frameHeight int) []types.SignalBatch {
	batches := make([]types.SignalBatch, 0, len(detectors))
	for _, d := range detectors {
		batch, err := d.DetectRegions(ctx, img, frameWidth, frameHeight)
		if err != nil {
			continue
		}
		if len(batch.Signals) > 0 {
			batches = append(batches, batch)
		}
	}
	return batches
}
