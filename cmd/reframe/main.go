package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/sko/reframe/internal/config"
	"github.com/sko/reframe/internal/pipeline"
	"github.com/sko/reframe/pkg/detect"
	"github.com/sko/reframe/pkg/platform"
	"github.com/sko/reframe/pkg/types"
)

var (
	rootCmd = &cobra.Command{
		Use:   "reframe",
		Short: "Subject-aware cropping for social media formats",
		Long: `reframe computes subject-aware crop regions and renders images and
videos at social media target dimensions. Detection backends (face cascade,
vision model) locate subjects; when nothing is found the crop falls back to
edge analysis, rule-of-thirds placement and finally a centered crop.

Examples:
  # Crop an image to 9:16
  reframe image -i photo.jpg -o photo_vertical.jpg --width 1080 --height 1920

  # Reframe a clip for TikTok
  reframe video -i clip.mp4 -o clip_tiktok.mp4 -t tiktok`,
	}

	imageCmd = &cobra.Command{
		Use:   "image",
		Short: "Crop a single image to a target aspect ratio",
		RunE:  runImage,
	}

	videoCmd = &cobra.Command{
		Use:   "video",
		Short: "Reframe a video clip to a target aspect ratio",
		Long: fmt.Sprintf(`Reframe a video clip with one stable crop computed from frames
sampled across its duration.

Supported platforms:
%s`, formatSupportedPlatforms()),
		RunE: runVideo,
	}
)

func formatSupportedPlatforms() string {
	var sb strings.Builder
	for _, name := range platform.Supported() {
		sb.WriteString(fmt.Sprintf("- %s\n", name))
	}
	return sb.String()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file path (JSON)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("cascade", "", "Path to a face cascade file (enables local face detection)")
	rootCmd.PersistentFlags().String("ollama-host", "", "Ollama server URL (enables vision model detection)")
	rootCmd.PersistentFlags().String("ollama-model", "", "Vision model name")

	imageCmd.Flags().StringP("input", "i", "", "Input image path or URL")
	imageCmd.Flags().StringP("output", "o", "", "Output image path")
	imageCmd.Flags().Int("width", 0, "Target width in pixels")
	imageCmd.Flags().Int("height", 0, "Target height in pixels")
	imageCmd.Flags().StringP("target-platform", "t", "", "Target platform preset")
	imageCmd.Flags().String("overlay", "", "Write a debug overlay image to this path")
	imageCmd.MarkFlagRequired("input")

	videoCmd.Flags().StringP("input", "i", "", "Input video path")
	videoCmd.Flags().StringP("output", "o", "", "Output video path")
	videoCmd.Flags().Int("width", 0, "Target width in pixels")
	videoCmd.Flags().Int("height", 0, "Target height in pixels")
	videoCmd.Flags().StringP("target-platform", "t", "",
		fmt.Sprintf("Target platform preset (%s)", strings.Join(platform.Supported(), ", ")))
	videoCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(imageCmd)
	rootCmd.AddCommand(videoCmd)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		if def := config.GetConfigPath(); fileReadable(def) {
			path = def
		}
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cascade, _ := cmd.Flags().GetString("cascade"); cascade != "" {
		cfg.Detect.CascadePath = cascade
	}
	if host, _ := cmd.Flags().GetString("ollama-host"); host != "" {
		cfg.Detect.OllamaHost = host
	}
	if model, _ := cmd.Flags().GetString("ollama-model"); model != "" {
		cfg.Detect.OllamaModel = model
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func fileReadable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// buildDetectors constructs the enabled detection backends. A backend that
// fails to initialize is skipped with a warning; the crop calculator works
// with whatever signals remain.
func buildDetectors(cfg *config.Config, logger *slog.Logger) []detect.Detector {
	var detectors []detect.Detector

	if cfg.Detect.CascadePath != "" {
		face, err := detect.NewFaceDetector(cfg.Detect.CascadePath)
		if err != nil {
			logger.Warn("face detector unavailable", "error", err)
		} else {
			detectors = append(detectors, face)
		}
	}

	if cfg.Detect.OllamaHost != "" {
		visionCfg := detect.DefaultVisionDetectorConfig()
		if cfg.Detect.OllamaModel != "" {
			visionCfg.Model = cfg.Detect.OllamaModel
		}
		if cfg.Detect.TimeoutSecs > 0 {
			visionCfg.Timeout = time.Duration(cfg.Detect.TimeoutSecs) * time.Second
		}
		vision, err := detect.NewVisionDetector(cfg.Detect.OllamaHost, visionCfg)
		if err != nil {
			logger.Warn("vision detector unavailable", "error", err)
		} else {
			detectors = append(detectors, vision)
		}
	}

	return detectors
}

func resolveTarget(cmd *cobra.Command) (types.TargetSpec, platform.Platform, error) {
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	platformName, _ := cmd.Flags().GetString("target-platform")

	var plat platform.Platform
	if platformName != "" {
		p, err := platform.Get(platformName)
		if err != nil {
			return types.TargetSpec{}, nil, err
		}
		plat = p
	}

	target := types.TargetSpec{Width: width, Height: height}
	if !target.Valid() {
		if plat == nil {
			return types.TargetSpec{}, nil, fmt.Errorf("either --width/--height or --target-platform is required")
		}
		target = plat.GetTargetSpec()
	}
	return target, plat, nil
}

func runImage(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(verbose)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	target, _, err := resolveTarget(cmd)
	if err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	overlay, _ := cmd.Flags().GetString("overlay")

	p := pipeline.New(cfg, logger, buildDetectors(cfg, logger), verbose)
	result, err := p.ProcessImage(context.Background(), pipeline.ImageOptions{
		Source:      input,
		OutputPath:  output,
		Target:      target,
		OverlayPath: overlay,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s (crop %dx%d at %d,%d, method %s)\n",
		result.OutputPath,
		result.Crop.Width, result.Crop.Height,
		result.Crop.X, result.Crop.Y,
		result.Crop.Method)
	return nil
}

func runVideo(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(verbose)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	target, plat, err := resolveTarget(cmd)
	if err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")

	p := pipeline.New(cfg, logger, buildDetectors(cfg, logger), verbose)
	result, err := p.ProcessVideo(context.Background(), pipeline.VideoOptions{
		InputPath:  input,
		OutputPath: output,
		Target:     target,
		Platform:   plat,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s (crop %dx%d at %d,%d, method %s, %d frames sampled)\n",
		result.OutputPath,
		result.Crop.Width, result.Crop.Height,
		result.Crop.X, result.Crop.Y,
		result.Crop.Method,
		result.FrameSamples)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
