package detect

import (
	"context"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/sko/reframe/pkg/types"
)

// FaceDetectorConfig holds cascade scan parameters.
type FaceDetectorConfig struct {
	MinSize     int
	MaxSize     int
	ShiftFactor float64
	ScaleFactor float64
	// QualityThreshold is the minimum pigo cluster quality for a detection
	// to be reported.
	QualityThreshold float32
}

// DefaultFaceDetectorConfig returns the scan parameters used when none are
// supplied.
func DefaultFaceDetectorConfig() FaceDetectorConfig {
	return FaceDetectorConfig{
		MinSize:          20,
		MaxSize:          1000,
		ShiftFactor:      0.1,
		ScaleFactor:      1.1,
		QualityThreshold: 5.0,
	}
}

// FaceDetector finds faces with the pigo cascade classifier and reports them
// as absolute-pixel face signals.
type FaceDetector struct {
	classifier *pigo.Pigo
	config     FaceDetectorConfig
}

// NewFaceDetector loads a pigo cascade from file.
func NewFaceDetector(cascadePath string) (*FaceDetector, error) {
	return NewFaceDetectorWithConfig(cascadePath, DefaultFaceDetectorConfig())
}

// NewFaceDetectorWithConfig loads a pigo cascade from file with custom scan
// parameters.
func NewFaceDetectorWithConfig(cascadePath string, config FaceDetectorConfig) (*FaceDetector, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}
	return &FaceDetector{classifier: classifier, config: config}, nil
}

// Name implements Detector.
func (d *FaceDetector) Name() string { return "pigo-face" }

// DetectRegions implements Detector. Coordinates are absolute pixels.
func (d *FaceDetector) DetectRegions(ctx context.Context, img image.Image, frameWidth, frameHeight int) (types.SignalBatch, error) {
	if err := ctx.Err(); err != nil {
		return types.SignalBatch{}, err
	}
	if img == nil {
		return types.SignalBatch{}, fmt.Errorf("nil frame")
	}

	src := pigo.ImgToNRGBA(img)
	pixels := pigo.RgbToGrayscale(src)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()

	maxSize := d.config.MaxSize
	if m := minInt(cols, rows); maxSize > m {
		maxSize = m
	}

	params := pigo.CascadeParams{
		MinSize:     d.config.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.config.ShiftFactor,
		ScaleFactor: d.config.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, 0.2)

	var signals []types.RawSignal
	for _, det := range dets {
		if det.Q < d.config.QualityThreshold {
			continue
		}
		size := float64(det.Scale)
		signals = append(signals, types.RawSignal{
			Kind:       types.KindFace,
			Confidence: qualityToConfidence(det.Q),
			X:          float64(det.Col) - size/2,
			Y:          float64(det.Row) - size/2,
			Width:      size,
			Height:     size,
		})
	}

	return types.SignalBatch{Signals: signals, Normalized: false}, nil
}

// qualityToConfidence maps pigo's open-ended cluster quality onto [0,1].
// Quality around 10 and above is a confident detection.
func qualityToConfidence(q float32) float64 {
	conf := float64(q) / 10.0
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
