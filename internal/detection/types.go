// Package detection defines the detection event model and the pluggable
// detector boundary. The core makes no assumption about how detections are
// produced; real and simulated detectors satisfy the same interface.
package detection

import (
	"context"
	"math"
	"time"
)

// Type represents a detected object type
type Type string

const (
	TypePerson  Type = "person"
	TypeVehicle Type = "vehicle"
	TypeWeapon  Type = "weapon"
	TypePlate   Type = "license_plate"
	TypeAnimal  Type = "animal"
	TypeUnknown Type = "unknown"
)

// Attribute keys carried in Event.Attributes.
const (
	AttrPlateNumber     = "plate_number"
	AttrPlateConfidence = "plate_confidence"
	AttrVehicleColor    = "vehicle_color"
	AttrPose            = "pose"
)

// BoundingBox is an axis-aligned box in pixel units
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Centroid returns the center point of the box
func (b BoundingBox) Centroid() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Area returns the area of the box
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// CentroidDistance returns the Euclidean distance between box centers
func (b BoundingBox) CentroidDistance(other BoundingBox) float64 {
	ax, ay := b.Centroid()
	bx, by := other.Centroid()
	return math.Hypot(ax-bx, ay-by)
}

// Event is a single detection extracted from one frame. Immutable once
// created; owned by the pipeline run that produced it.
type Event struct {
	CameraID     string                 `json:"camera_id"`
	Timestamp    time.Time              `json:"timestamp"`
	Type         Type                   `json:"type"`
	Confidence   float64                `json:"confidence"`
	BoundingBox  BoundingBox            `json:"bounding_box"`
	Attributes   map[string]interface{} `json:"attributes,omitempty"`
	FrameHash    string                 `json:"frame_hash"`
	ModelVersion string                 `json:"model_version"`
}

// Plate returns the plate reading carried by the event, if any.
func (e Event) Plate() (text string, confidence float64, ok bool) {
	if e.Attributes == nil {
		return "", 0, false
	}
	t, ok := e.Attributes[AttrPlateNumber].(string)
	if !ok || t == "" {
		return "", 0, false
	}
	if c, ok := e.Attributes[AttrPlateConfidence].(float64); ok {
		confidence = c
	}
	return t, confidence, true
}

// Frame is the unit handed to a detector. The core never inspects pixel
// data; it only forwards frames and hashes.
type Frame struct {
	CameraID  string
	Timestamp time.Time
	Data      []byte
}

// Detector is the pluggable detection backend boundary.
type Detector interface {
	// Detect extracts detection events from a frame.
	Detect(ctx context.Context, frame *Frame) ([]Event, error)

	// ModelVersion identifies the model producing events.
	ModelVersion() string

	// Close releases detector resources.
	Close() error
}

// FrameSource supplies frames for one camera. Next blocks until a frame is
// available or the context is cancelled.
type FrameSource interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}
