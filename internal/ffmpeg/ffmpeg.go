// Package ffmpeg wraps the external transcoder: probing clip metadata,
// decoding evenly spaced sample frames for analysis, and rendering the final
// cropped and scaled output.
package ffmpeg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/sko/reframe/pkg/platform"
	"github.com/sko/reframe/pkg/types"
)

// VideoMetadata contains the probe results for a clip.
type VideoMetadata struct {
	Duration    float64
	Width       int
	Height      int
	Codec       string
	TotalFrames int
}

// Processor wraps FFmpeg invocations.
type Processor struct {
	verbose bool
}

// NewProcessor creates a new FFmpeg processor.
func NewProcessor(verbose bool) *Processor {
	return &Processor{verbose: verbose}
}

// GetVideoMetadata probes a video file.
func (p *Processor) GetVideoMetadata(inputPath string) (*VideoMetadata, error) {
	probe, err := ffmpeg.Probe(inputPath)
	if err != nil {
		return nil, fmt.Errorf("error probing video: %w", err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(probe), &data); err != nil {
		return nil, errors.WithStack(err)
	}

	streams, ok := data["streams"].([]interface{})
	if !ok || len(streams) == 0 {
		return nil, fmt.Errorf("no streams found in video")
	}

	var videoStream map[string]interface{}
	for _, stream := range streams {
		s, ok := stream.(map[string]interface{})
		if !ok {
			continue
		}
		if codecType, _ := s["codec_type"].(string); codecType == "video" {
			videoStream = s
			break
		}
	}
	if videoStream == nil {
		return nil, fmt.Errorf("no video stream found")
	}

	meta := &VideoMetadata{}

	if durationStr, ok := videoStream["duration"].(string); ok {
		if d, err := strconv.ParseFloat(strings.TrimSpace(durationStr), 64); err == nil {
			meta.Duration = d
		}
	}
	if meta.Duration == 0 {
		if format, ok := data["format"].(map[string]interface{}); ok {
			if durationStr, ok := format["duration"].(string); ok {
				if d, err := strconv.ParseFloat(strings.TrimSpace(durationStr), 64); err == nil {
					meta.Duration = d
				}
			}
		}
	}
	if meta.Duration == 0 {
		return nil, fmt.Errorf("could not determine video duration")
	}

	width, _ := videoStream["width"].(float64)
	height, _ := videoStream["height"].(float64)
	meta.Width = int(width)
	meta.Height = int(height)
	meta.Codec, _ = videoStream["codec_name"].(string)

	if nbFrames, ok := videoStream["nb_frames"].(string); ok {
		if frames, err := strconv.Atoi(nbFrames); err == nil {
			meta.TotalFrames = frames
		}
	}
	if meta.TotalFrames == 0 {
		if frameRate := parseFrameRate(videoStream); frameRate > 0 {
			meta.TotalFrames = int(meta.Duration * frameRate)
		}
	}

	return meta, nil
}

func parseFrameRate(videoStream map[string]interface{}) float64 {
	rFrameRate, ok := videoStream["r_frame_rate"].(string)
	if !ok {
		return 0
	}
	nums := strings.Split(rFrameRate, "/")
	if len(nums) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(nums[0], 64)
	den, err2 := strconv.ParseFloat(nums[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// SampleTimestamps returns n evenly spaced timestamps covering the clip.
// Even spacing guarantees temporal coverage independent of clip length.
func SampleTimestamps(duration float64, n int) []float64 {
	if n <= 0 || duration <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{duration / 2}
	}
	// Nudge in from both ends so the first and last samples decode reliably.
	step := duration / float64(n+1)
	ts := make([]float64, 0, n)
	for i := 1; i <= n; i++ {
		ts = append(ts, step*float64(i))
	}
	return ts
}

// ExtractFrame decodes the frame nearest the given timestamp.
func (p *Processor) ExtractFrame(inputPath string, timestamp float64) (image.Image, error) {
	buf := bytes.NewBuffer(nil)
	stream := ffmpeg.Input(inputPath, ffmpeg.KwArgs{"ss": fmt.Sprintf("%.3f", timestamp)}).
		Output("pipe:", ffmpeg.KwArgs{
			"vframes": 1,
			"format":  "image2",
			"vcodec":  "mjpeg",
		}).
		WithOutput(buf)
	if p.verbose {
		stream = stream.ErrorToStdOut()
	}
	if err := stream.Run(); err != nil {
		return nil, errors.Wrapf(err, "extracting frame at %.3fs", timestamp)
	}

	img, _, err := image.Decode(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding frame at %.3fs", timestamp)
	}
	return img, nil
}

// TranscodeOptions controls the final render.
type TranscodeOptions struct {
	CRF      int
	Preset   string
	Platform platform.Platform
}

// Transcode crops and scales the clip in a single pass. The crop box already
// matches the target ratio, so the scale step never distorts.
func (p *Processor) Transcode(inputPath, outputPath string, box types.CropBox, target types.TargetSpec, opts TranscodeOptions) error {
	if opts.CRF == 0 {
		opts.CRF = 23
	}
	if opts.Preset == "" {
		opts.Preset = "medium"
	}

	vf := fmt.Sprintf("crop=%d:%d:%d:%d,scale=%d:%d",
		box.Width, box.Height, box.X, box.Y, target.Width, target.Height)

	kwargs := ffmpeg.KwArgs{
		"vf":       vf,
		"c:v":      "libx264",
		"crf":      opts.CRF,
		"preset":   opts.Preset,
		"c:a":      "aac",
		"b:a":      "128k",
		"movflags": "+faststart",
	}
	if opts.Platform != nil {
		kwargs["b:v"] = opts.Platform.GetVideoBitrate()
	}

	stream := ffmpeg.Input(inputPath).
		Output(outputPath, kwargs).
		OverWriteOutput()
	if p.verbose {
		stream = stream.ErrorToStdOut()
	}
	if err := stream.Run(); err != nil {
		return errors.Wrap(err, "ffmpeg transcode failed")
	}
	return nil
}
