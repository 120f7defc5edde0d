// Package pipeline orchestrates the full reframe flow: detection, crop
// computation and output rendering for single images and for video clips
// sampled across their duration.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sko/reframe/internal/config"
	"github.com/sko/reframe/internal/ffmpeg"
	"github.com/sko/reframe/internal/utils"
	"github.com/sko/reframe/pkg/cropper"
	"github.com/sko/reframe/pkg/detect"
	"github.com/sko/reframe/pkg/platform"
	"github.com/sko/reframe/pkg/processing"
	"github.com/sko/reframe/pkg/signal"
	"github.com/sko/reframe/pkg/subject"
	"github.com/sko/reframe/pkg/types"
	"github.com/sko/reframe/pkg/vision"
)

// Pipeline wires the detection backends, the crop calculator and the output
// stages together.
type Pipeline struct {
	cfg        *config.Config
	logger     *slog.Logger
	detectors  []detect.Detector
	calculator *cropper.Calculator
	processor  *processing.Processor
	video      *ffmpeg.Processor
}

// New builds a Pipeline from configuration. Detectors may be empty; the crop
// calculator falls back to pixel analysis and finally to a centered crop.
func New(cfg *config.Config, logger *slog.Logger, detectors []detect.Detector, verbose bool) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	calc := cropper.NewWithConfig(
		subject.RankerConfig{
			ObjectMinConfidence: cfg.Ranker.ObjectMinConfidence,
			ObjectMinAreaRatio:  cfg.Ranker.ObjectMinAreaRatio,
		},
		vision.EdgeConfig{
			EdgeThreshold:      cfg.Edge.EdgeThreshold,
			MinRegionAreaRatio: cfg.Edge.MinRegionAreaRatio,
			MinAspect:          cfg.Edge.MinAspect,
			MaxAspect:          cfg.Edge.MaxAspect,
			ThirdsWindow:       cfg.Edge.ThirdsWindow,
		},
	)
	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		detectors:  detectors,
		calculator: calc,
		processor:  processing.NewProcessor(),
		video:      ffmpeg.NewProcessor(verbose),
	}
}

// ImageResult reports the outcome of a single image run.
type ImageResult struct {
	OutputPath string
	Crop       types.CropBox
}

// ImageOptions controls ProcessImage.
type ImageOptions struct {
	Source      string
	OutputPath  string
	Target      types.TargetSpec
	OverlayPath string
}

// ProcessImage loads an image, runs the detectors, computes the crop and
// writes the resized output.
func (p *Pipeline) ProcessImage(ctx context.Context, opts ImageOptions) (*ImageResult, error) {
	img, err := p.processor.LoadImageSmart(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	bounds := img.Bounds()
	fw, fh := bounds.Dx(), bounds.Dy()
	p.logger.Info("loaded image", "source", opts.Source, "width", fw, "height", fh)

	batches := detect.RunAll(ctx, p.detectors, img, fw, fh)
	p.logger.Debug("detection complete", "batches", len(batches))

	box, err := p.calculator.ComputeCropBox(cropper.Request{
		FrameWidth:  fw,
		FrameHeight: fh,
		Target:      opts.Target,
		Batches:     batches,
		Frame:       img,
	})
	if err != nil {
		return nil, err
	}
	p.logger.Info("crop computed",
		"method", string(box.Method),
		"x", box.X, "y", box.Y, "width", box.Width, "height", box.Height)

	out, err := p.processor.ApplyCrop(img, box, opts.Target)
	if err != nil {
		return nil, fmt.Errorf("failed to apply crop: %w", err)
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = utils.GenerateOutputFilename(
			opts.Source, p.cfg.Output.OutputDir, p.cfg.Output.Suffix, p.cfg.Output.DefaultFormat)
	}
	if err := utils.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	format := utils.GetFileExtension(outputPath)
	if err := p.processor.SaveImage(out, outputPath, format, p.cfg.Output.Quality, false); err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	if opts.OverlayPath != "" {
		if err := p.writeOverlay(img, batches, box, opts.OverlayPath); err != nil {
			p.logger.Warn("overlay rendering failed", "error", err)
		}
	}

	return &ImageResult{OutputPath: outputPath, Crop: box}, nil
}

func (p *Pipeline) writeOverlay(img image.Image, batches []types.SignalBatch, box types.CropBox, path string) error {
	bounds := img.Bounds()
	var signals []types.DetectionSignal
	for _, batch := range batches {
		signals = append(signals, signal.Normalize(batch, bounds.Dx(), bounds.Dy())...)
	}
	annotated := p.processor.DrawOverlay(img, processing.Overlay{
		Signals: signals,
		Crop:    box,
		FocalPoints: []types.Point{{
			X: float64(box.X) + float64(box.Width)/2,
			Y: float64(box.Y) + float64(box.Height)/2,
		}},
	})
	return p.processor.SaveImage(annotated, path, utils.GetFileExtension(path), p.cfg.Output.Quality, false)
}

// VideoResult reports the outcome of a clip run.
type VideoResult struct {
	OutputPath   string
	Crop         types.CropBox
	FrameSamples int
	Metadata     *ffmpeg.VideoMetadata
}

// VideoOptions controls ProcessVideo.
type VideoOptions struct {
	InputPath  string
	OutputPath string
	Target     types.TargetSpec
	Platform   platform.Platform
}

// ProcessVideo probes the clip, samples frames evenly across its duration,
// runs the detectors on each sample concurrently, computes one stable crop
// for the whole clip and transcodes.
func (p *Pipeline) ProcessVideo(ctx context.Context, opts VideoOptions) (*VideoResult, error) {
	if !utils.FileExists(opts.InputPath) {
		return nil, fmt.Errorf("input file not found: %s", opts.InputPath)
	}

	meta, err := p.video.GetVideoMetadata(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}
	p.logger.Info("probed video",
		"input", opts.InputPath,
		"duration", meta.Duration,
		"width", meta.Width, "height", meta.Height,
		"codec", meta.Codec)

	target := opts.Target
	if !target.Valid() && opts.Platform != nil {
		target = opts.Platform.GetTargetSpec()
	}
	if opts.Platform != nil {
		if maxDur := opts.Platform.GetMaxDuration(); maxDur > 0 && meta.Duration > float64(maxDur) {
			p.logger.Warn("clip exceeds platform duration limit",
				"platform", opts.Platform.GetName(),
				"duration", meta.Duration,
				"limit", maxDur)
		}
	}

	samples := p.sampleClip(ctx, opts.InputPath, meta)
	p.logger.Info("frame sampling complete", "samples", len(samples))

	box, err := p.calculator.ComputeCropBox(cropper.Request{
		FrameWidth:  meta.Width,
		FrameHeight: meta.Height,
		Target:      target,
		Samples:     samples,
		Frame:       p.middleFrame(opts.InputPath, meta),
	})
	if err != nil {
		return nil, err
	}
	p.logger.Info("crop computed",
		"method", string(box.Method),
		"x", box.X, "y", box.Y, "width", box.Width, "height", box.Height)

	outputPath := opts.OutputPath
	if outputPath == "" {
		format := "mp4"
		if opts.Platform != nil {
			format = opts.Platform.GetOutputFormat()
		}
		outputPath = utils.GenerateOutputFilename(
			opts.InputPath, p.cfg.Output.OutputDir, p.cfg.Output.Suffix, format)
	}
	if err := utils.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	err = p.video.Transcode(opts.InputPath, outputPath, box, target, ffmpeg.TranscodeOptions{
		CRF:      p.cfg.Transcode.CRF,
		Preset:   p.cfg.Transcode.Preset,
		Platform: opts.Platform,
	})
	if err != nil {
		return nil, err
	}

	return &VideoResult{
		OutputPath:   outputPath,
		Crop:         box,
		FrameSamples: len(samples),
		Metadata:     meta,
	}, nil
}

// sampleClip extracts evenly spaced frames and runs the detectors on each,
// fanning the work out over a bounded worker pool. Samples that fail to
// decode are skipped; the aggregate crop tolerates gaps.
func (p *Pipeline) sampleClip(ctx context.Context, inputPath string, meta *ffmpeg.VideoMetadata) []types.FrameSample {
	timestamps := ffmpeg.SampleTimestamps(meta.Duration, p.cfg.Sampling.FrameCount)
	if len(timestamps) == 0 {
		return nil
	}

	workers := p.cfg.Sampling.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(timestamps) {
		workers = len(timestamps)
	}

	type job struct {
		index     int
		timestamp float64
	}

	jobs := make(chan job)
	results := make(chan types.FrameSample, len(timestamps))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Drain the channel even after cancellation so the feeder
			// below never blocks.
			for j := range jobs {
				if ctx.Err() != nil {
					continue
				}
				frame, err := p.video.ExtractFrame(inputPath, j.timestamp)
				if err != nil {
					p.logger.Warn("frame extraction failed",
						"index", j.index, "timestamp", j.timestamp, "error", err)
					continue
				}
				batches := detect.RunAll(ctx, p.detectors, frame, meta.Width, meta.Height)
				results <- types.FrameSample{FrameIndex: j.index, Batches: batches}
			}
		}()
	}

	for i, ts := range timestamps {
		jobs <- job{index: i, timestamp: ts}
	}
	close(jobs)
	wg.Wait()
	close(results)

	samples := make([]types.FrameSample, 0, len(timestamps))
	for sample := range results {
		samples = append(samples, sample)
	}
	// Worker completion order is nondeterministic; restore frame order so the
	// run is reproducible.
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].FrameIndex < samples[j].FrameIndex
	})
	return samples
}

// middleFrame decodes one representative frame for the pixel-analysis
// fallbacks. A decode failure returns nil, which degrades to a centered crop.
func (p *Pipeline) middleFrame(inputPath string, meta *ffmpeg.VideoMetadata) image.Image {
	frame, err := p.video.ExtractFrame(inputPath, meta.Duration/2)
	if err != nil {
		p.logger.Debug("middle frame extraction failed", "error", err)
		return nil
	}
	return frame
}
