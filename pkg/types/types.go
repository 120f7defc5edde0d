package types

// SignalKind identifies the detector family that produced a signal.
type SignalKind string

const (
	KindFace   SignalKind = "face"
	KindPose   SignalKind = "pose"
	KindHand   SignalKind = "hand"
	KindObject SignalKind = "object"
)

// Point is a 2D coordinate in the frame's pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PoseLandmarks carries the landmark points a pose detector reports instead
// of a bounding box. Coordinates follow the batch's coordinate convention.
type PoseLandmarks struct {
	Nose          Point `json:"nose"`
	LeftShoulder  Point `json:"left_shoulder"`
	RightShoulder Point `json:"right_shoulder"`
}

// RawSignal is one detector result as handed to the normalizer. Coordinates
// may be absolute pixels or fractions of frame size; the batch flag decides.
type RawSignal struct {
	Kind       SignalKind     `json:"kind"`
	Class      string         `json:"class,omitempty"`
	Confidence float64        `json:"confidence"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Width      float64        `json:"width"`
	Height     float64        `json:"height"`
	Pose       *PoseLandmarks `json:"pose,omitempty"`
}

// SignalBatch is the unit a detector returns for one frame. Normalized marks
// whether coordinates are fractions of frame size ([0,1]) rather than pixels.
type SignalBatch struct {
	Signals    []RawSignal `json:"signals"`
	Normalized bool        `json:"normalized"`
}

// DetectionSignal is a normalized signal: absolute pixels, clipped to the
// frame. Immutable once produced by the normalizer.
type DetectionSignal struct {
	Kind       SignalKind
	Class      string
	Confidence float64
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Pose       *PoseLandmarks
}

// Center returns the center point of the signal's bounding box.
func (s DetectionSignal) Center() Point {
	return Point{X: s.X + s.Width/2, Y: s.Y + s.Height/2}
}

// Area returns the bounding box area in square pixels.
func (s DetectionSignal) Area() float64 {
	return s.Width * s.Height
}

// FrameSample is the detector output for one sampled video frame. Each
// detector contributes its own batch with its own coordinate convention.
type FrameSample struct {
	FrameIndex int           `json:"frame_index"`
	Batches    []SignalBatch `json:"batches"`
}

// TargetSpec is the caller-requested output size.
type TargetSpec struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Ratio returns width/height of the target.
func (t TargetSpec) Ratio() float64 {
	return float64(t.Width) / float64(t.Height)
}

// Valid reports whether both dimensions are positive.
func (t TargetSpec) Valid() bool {
	return t.Width > 0 && t.Height > 0
}

// CropMethod records which strategy produced a crop box.
type CropMethod string

const (
	MethodAIDetected     CropMethod = "ai_detected"
	MethodContentAware   CropMethod = "content_aware"
	MethodRuleOfThirds   CropMethod = "rule_of_thirds"
	MethodCenterFallback CropMethod = "center_fallback"
)

// CropBox is the final rectangle to extract from the source frame, in
// absolute pixels. It always lies inside the frame and matches the requested
// aspect ratio within 0.01.
type CropBox struct {
	X      int        `json:"x"`
	Y      int        `json:"y"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Method CropMethod `json:"method"`
}

// Ratio returns width/height of the crop box.
func (b CropBox) Ratio() float64 {
	return float64(b.Width) / float64(b.Height)
}
