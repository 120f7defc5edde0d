// Package reframe computes subject-aware crop regions for resizing images
// and videos to social media target dimensions.
//
// Detection backends report subjects (faces, poses, objects) as signal
// batches; the library normalizes them into pixel space, ranks them by
// priority, confidence and size, and anchors the largest crop of the target
// aspect ratio on the winner. For video clips, signals from frames sampled
// across the duration are aggregated into one stable crop. When no subject
// is found, the crop falls back through edge-based content analysis,
// rule-of-thirds placement and finally a centered crop.
//
// Basic usage:
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//
//		"github.com/sko/reframe"
//		"github.com/sko/reframe/pkg/types"
//	)
//
//	func main() {
//		rf := reframe.New()
//
//		img, err := rf.LoadImage("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		target := types.TargetSpec{Width: 1080, Height: 1920}
//		box, err := rf.ComputeCropBox(img, target, nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("crop %dx%d at (%d,%d) via %s\n",
//			box.Width, box.Height, box.X, box.Y, box.Method)
//
//		out, err := rf.ApplyCrop(img, box, target)
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := rf.SaveImage(out, "photo_vertical.jpg", "jpg", 90); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these main components:
//
// 1. Signal (pkg/signal): Normalizes detector output into pixel space
// 2. Subject (pkg/subject): Ranks subjects and aggregates them across frames
// 3. Vision (pkg/vision): Edge analysis backing the content-aware fallbacks
// 4. Cropper (pkg/cropper): Solves the crop geometry for a target ratio
// 5. Detect (pkg/detect): Face cascade and vision model backends
// 6. Processing (pkg/processing): Pixel-level crop, resize and encode
package reframe

import (
	"image"

	"github.com/sko/reframe/pkg/cropper"
	"github.com/sko/reframe/pkg/processing"
	"github.com/sko/reframe/pkg/subject"
	"github.com/sko/reframe/pkg/types"
	"github.com/sko/reframe/pkg/vision"
)

// Version of the reframe library
const Version = "1.0.0"

// Reframer provides a high-level interface over the crop calculator and the
// pixel pipeline.
type Reframer struct {
	calculator *cropper.Calculator
	processor  *processing.Processor
}

// New creates a Reframer with default configuration
func New() *Reframer {
	return &Reframer{
		calculator: cropper.New(),
		processor:  processing.NewProcessor(),
	}
}

// NewWithConfig creates a Reframer with custom ranking and edge thresholds
func NewWithConfig(rankerConfig subject.RankerConfig, edgeConfig vision.EdgeConfig) *Reframer {
	return &Reframer{
		calculator: cropper.NewWithConfig(rankerConfig, edgeConfig),
		processor:  processing.NewProcessor(),
	}
}

// LoadImage loads an image from a file path
func (r *Reframer) LoadImage(path string) (image.Image, error) {
	return r.processor.LoadImage(path)
}

// LoadImageSmart loads an image from a file path or an http(s) URL
func (r *Reframer) LoadImageSmart(source string) (image.Image, error) {
	return r.processor.LoadImageSmart(source)
}

// SaveImage encodes an image to a file; format is one of jpg, png, webp
func (r *Reframer) SaveImage(img image.Image, path, format string, quality int) error {
	return r.processor.SaveImage(img, path, format, quality, false)
}

// ComputeCropBox computes the crop rectangle for an image. batches may be
// nil; the fallback chain then chooses the anchor from the pixels alone.
func (r *Reframer) ComputeCropBox(img image.Image, target types.TargetSpec, batches []types.SignalBatch) (types.CropBox, error) {
	bounds := img.Bounds()
	return r.calculator.ComputeCropBox(cropper.Request{
		FrameWidth:  bounds.Dx(),
		FrameHeight: bounds.Dy(),
		Target:      target,
		Batches:     batches,
		Frame:       img,
	})
}

// ComputeVideoCropBox computes one stable crop rectangle for a clip from
// per-frame signal samples. keyFrame optionally supplies pixels for the
// fallback chain when the samples carry no subjects.
func (r *Reframer) ComputeVideoCropBox(frameWidth, frameHeight int, target types.TargetSpec, samples []types.FrameSample, keyFrame image.Image) (types.CropBox, error) {
	return r.calculator.ComputeCropBox(cropper.Request{
		FrameWidth:  frameWidth,
		FrameHeight: frameHeight,
		Target:      target,
		Samples:     samples,
		Frame:       keyFrame,
	})
}

// ApplyCrop extracts the crop box and resizes the result to the target size
func (r *Reframer) ApplyCrop(img image.Image, box types.CropBox, target types.TargetSpec) (image.Image, error) {
	return r.processor.ApplyCrop(img, box, target)
}

// CropImage is a convenience wrapper: compute the crop box and apply it
func (r *Reframer) CropImage(img image.Image, target types.TargetSpec, batches []types.SignalBatch) (image.Image, types.CropBox, error) {
	box, err := r.ComputeCropBox(img, target, batches)
	if err != nil {
		return nil, types.CropBox{}, err
	}
	out, err := r.ApplyCrop(img, box, target)
	if err != nil {
		return nil, types.CropBox{}, err
	}
	return out, box, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
