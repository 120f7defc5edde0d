// Package signal converts raw detector output into frame-anchored signals.
//
// Detectors disagree about coordinate conventions: some report fractions of
// frame size, some absolute pixels. The normalizer resolves a batch into
// absolute-pixel DetectionSignals clipped to the frame, so every later stage
// works in a single coordinate space.
package signal

import "github.com/sko/reframe/pkg/types"

// Normalize converts one detector batch into absolute-pixel signals clipped
// to the frame. Signals that end up with a non-positive width or height after
// clipping are dropped. Pure function of (batch, frame size); a non-positive
// frame yields no signals.
func Normalize(batch types.SignalBatch, frameWidth, frameHeight int) []types.DetectionSignal {
	if frameWidth <= 0 || frameHeight <= 0 {
		return nil
	}

	fw, fh := float64(frameWidth), float64(frameHeight)
	out := make([]types.DetectionSignal, 0, len(batch.Signals))

	for _, raw := range batch.Signals {
		sig := types.DetectionSignal{
			Kind:       raw.Kind,
			Class:      raw.Class,
			Confidence: clamp(raw.Confidence, 0, 1),
			X:          raw.X,
			Y:          raw.Y,
			Width:      raw.Width,
			Height:     raw.Height,
		}

		if batch.Normalized {
			sig.X *= fw
			sig.Y *= fh
			sig.Width *= fw
			sig.Height *= fh
		}

		if raw.Pose != nil {
			sig.Pose = scalePose(raw.Pose, batch.Normalized, fw, fh)
			// Pose detectors report landmarks, not boxes; synthesize a box so
			// the signal is rectangle-shaped like every other kind. The ranker
			// refines it from the shoulder span.
			if sig.Width <= 0 || sig.Height <= 0 {
				sig.X, sig.Y, sig.Width, sig.Height = poseExtent(sig.Pose)
			}
		}

		clipped, ok := clip(sig, fw, fh)
		if !ok {
			continue
		}
		out = append(out, clipped)
	}

	return out
}

func scalePose(p *types.PoseLandmarks, normalized bool, fw, fh float64) *types.PoseLandmarks {
	scaled := *p
	if normalized {
		scaled.Nose = types.Point{X: p.Nose.X * fw, Y: p.Nose.Y * fh}
		scaled.LeftShoulder = types.Point{X: p.LeftShoulder.X * fw, Y: p.LeftShoulder.Y * fh}
		scaled.RightShoulder = types.Point{X: p.RightShoulder.X * fw, Y: p.RightShoulder.Y * fh}
	}
	return &scaled
}

// poseExtent builds a provisional box spanning the landmarks so that a pose
// signal without an explicit box survives clipping.
func poseExtent(p *types.PoseLandmarks) (x, y, w, h float64) {
	minX := min3(p.Nose.X, p.LeftShoulder.X, p.RightShoulder.X)
	maxX := max3(p.Nose.X, p.LeftShoulder.X, p.RightShoulder.X)
	minY := min3(p.Nose.Y, p.LeftShoulder.Y, p.RightShoulder.Y)
	maxY := max3(p.Nose.Y, p.LeftShoulder.Y, p.RightShoulder.Y)
	return minX, minY, maxX - minX, maxY - minY
}

func clip(sig types.DetectionSignal, fw, fh float64) (types.DetectionSignal, bool) {
	x0 := clamp(sig.X, 0, fw)
	y0 := clamp(sig.Y, 0, fh)
	x1 := clamp(sig.X+sig.Width, 0, fw)
	y1 := clamp(sig.Y+sig.Height, 0, fh)

	sig.X = x0
	sig.Y = y0
	sig.Width = x1 - x0
	sig.Height = y1 - y0

	if sig.Width <= 0 || sig.Height <= 0 {
		return types.DetectionSignal{}, false
	}
	return sig, true
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

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
