package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/api"

	"github.com/sko/reframe/pkg/types"
)

// regionPrompt asks the vision model for every salient region. Coordinates
// are requested normalized so the batch can be flagged as such.
const regionPrompt = `You are an image region locator.

Return JSON only:
{
  "regions": [
    {"kind": "face|person|object", "class": "string", "confidence": 0.0,
     "x": 0.0, "y": 0.0, "width": 0.0, "height": 0.0}
  ]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels), measured from the
  top-left corner.
- Report every visually important subject: people, faces, animals, vehicles,
  then other salient objects. Tight boxes.
- "kind" is "face" for faces, "person" for whole people, "object" otherwise;
  "class" is a short lowercase noun.
- If nothing stands out, return {"regions": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// VisionDetectorConfig configures the ollama-backed detector.
type VisionDetectorConfig struct {
	Model string
	// MaxSendDim bounds the long side of the image sent to the model, in
	// pixels; 0 sends the original.
	MaxSendDim int
	// SendQuality is the JPEG quality of the image sent to the model.
	SendQuality int
	// Timeout bounds one model round-trip when the caller's context has no
	// deadline of its own.
	Timeout time.Duration
}

// DefaultVisionDetectorConfig returns settings tuned for CPU-hosted models.
func DefaultVisionDetectorConfig() VisionDetectorConfig {
	return VisionDetectorConfig{
		Model:       "openbmb/minicpm-v4.5",
		MaxSendDim:  1536,
		SendQuality: 85,
		Timeout:     300 * time.Second,
	}
}

// VisionDetector asks an Ollama-hosted vision model to locate regions of
// interest and reports them as normalized object/face signals.
type VisionDetector struct {
	client *api.Client
	config VisionDetectorConfig
}

// NewVisionDetector creates a detector talking to the Ollama server at
// serverURL.
func NewVisionDetector(serverURL string, config VisionDetectorConfig) (*VisionDetector, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &VisionDetector{
		client: api.NewClient(base, http.DefaultClient),
		config: config,
	}, nil
}

// Name implements Detector.
func (d *VisionDetector) Name() string { return "ollama-vision" }

// DetectRegions implements Detector. Coordinates are normalized fractions.
func (d *VisionDetector) DetectRegions(ctx context.Context, img image.Image, frameWidth, frameHeight int) (types.SignalBatch, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	payload, err := d.encodeForModel(img)
	if err != nil {
		return types.SignalBatch{}, fmt.Errorf("failed to encode frame: %w", err)
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: d.config.Model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: regionPrompt,
				Images:  []api.ImageData{api.ImageData(payload)},
			},
		},
		Stream: &streamFalse,
	}

	var responseContent string
	err = d.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent = resp.Message.Content
		return nil
	})
	if err != nil {
		return types.SignalBatch{}, fmt.Errorf("ollama chat error: %w", err)
	}

	return parseRegionResponse(responseContent), nil
}

// encodeForModel shrinks the frame to the configured send size and encodes
// it as JPEG.
func (d *VisionDetector) encodeForModel(img image.Image) ([]byte, error) {
	if d.config.MaxSendDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > d.config.MaxSendDim || h > d.config.MaxSendDim {
			if w >= h {
				img = imaging.Resize(img, d.config.MaxSendDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, d.config.MaxSendDim, imaging.Lanczos)
			}
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: d.config.SendQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type regionResponse struct {
	Regions []struct {
		Kind       string  `json:"kind"`
		Class      string  `json:"class"`
		Confidence float64 `json:"confidence"`
		X          float64 `json:"x"`
		Y          float64 `json:"y"`
		Width      float64 `json:"width"`
		Height     float64 `json:"height"`
	} `json:"regions"`
}

// parseRegionResponse turns model output into a normalized signal batch. A
// response that cannot be parsed yields an empty batch; the calculator's
// fallback chain covers that case, so parse failures are never fatal.
func parseRegionResponse(raw string) types.SignalBatch {
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return types.SignalBatch{Normalized: true}
	}

	var resp regionResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return types.SignalBatch{Normalized: true}
	}

	signals := make([]types.RawSignal, 0, len(resp.Regions))
	for _, r := range resp.Regions {
		sig := types.RawSignal{
			Confidence: r.Confidence,
			X:          r.X,
			Y:          r.Y,
			Width:      r.Width,
			Height:     r.Height,
		}
		switch strings.ToLower(strings.TrimSpace(r.Kind)) {
		case "face":
			sig.Kind = types.KindFace
		case "person":
			sig.Kind = types.KindObject
			sig.Class = "person"
		default:
			sig.Kind = types.KindObject
			sig.Class = strings.ToLower(strings.TrimSpace(r.Class))
		}
		signals = append(signals, sig)
	}
	return types.SignalBatch{Signals: signals, Normalized: true}
}

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON strips code fences, comments and trailing commas that
// vision models habitually wrap around their JSON.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}.
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
