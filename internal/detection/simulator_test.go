package detection

import (
	"context"
	"testing"
	"time"
)

func TestSimulatedDetectorProducesEvents(t *testing.T) {
	d := NewSimulatedDetector(42)
	defer d.Close()

	frame := &Frame{CameraID: "cam_1", Timestamp: time.Now()}
	events, err := d.Detect(context.Background(), frame)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("no events produced")
	}

	for _, ev := range events {
		if ev.CameraID != "cam_1" {
			t.Errorf("camera id = %q", ev.CameraID)
		}
		if ev.Confidence < 0 || ev.Confidence > 1 {
			t.Errorf("confidence out of range: %v", ev.Confidence)
		}
		if ev.FrameHash == "" {
			t.Error("frame hash missing")
		}
		if ev.ModelVersion != d.ModelVersion() {
			t.Errorf("model version = %q", ev.ModelVersion)
		}
		if ev.Type == TypeVehicle {
			if _, _, ok := ev.Plate(); !ok {
				t.Error("vehicle event missing plate attributes")
			}
		}
	}
}

func TestSimulatedDetectorCoherentMotion(t *testing.T) {
	d := NewSimulatedDetector(7)
	frame := &Frame{CameraID: "cam_1", Timestamp: time.Now()}

	first, _ := d.Detect(context.Background(), frame)
	second, _ := d.Detect(context.Background(), frame)
	if len(first) != len(second) {
		t.Fatalf("walker count changed between frames: %d vs %d", len(first), len(second))
	}

	// Objects drift, they do not teleport.
	for i := range first {
		if dist := first[i].BoundingBox.CentroidDistance(second[i].BoundingBox); dist > 50 {
			t.Errorf("walker %d moved %v units in one frame", i, dist)
		}
	}
}

func TestEventPlate(t *testing.T) {
	ev := Event{Attributes: map[string]interface{}{
		AttrPlateNumber:     "KDD 001A",
		AttrPlateConfidence: 0.91,
	}}
	text, conf, ok := ev.Plate()
	if !ok || text != "KDD 001A" || conf != 0.91 {
		t.Errorf("Plate() = %q %v %v", text, conf, ok)
	}

	if _, _, ok := (Event{}).Plate(); ok {
		t.Error("Plate() on bare event should report absent")
	}
}

func TestTickingFrameSource(t *testing.T) {
	src := NewTickingFrameSource("cam_2", 10*time.Millisecond)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frame, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if frame.CameraID != "cam_2" {
		t.Errorf("camera id = %q", frame.CameraID)
	}

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if _, err := src.Next(cancelled); err == nil {
		t.Error("Next with cancelled context should fail")
	}
}

func TestBoundingBoxGeometry(t *testing.T) {
	b := BoundingBox{X: 10, Y: 20, Width: 40, Height: 60}
	if cx, cy := b.Centroid(); cx != 30 || cy != 50 {
		t.Errorf("centroid = (%v,%v), want (30,50)", cx, cy)
	}
	if a := b.Area(); a != 2400 {
		t.Errorf("area = %v, want 2400", a)
	}

	other := BoundingBox{X: 40, Y: 60, Width: 40, Height: 60}
	if d := b.CentroidDistance(other); d != 50 {
		t.Errorf("distance = %v, want 50", d)
	}
}
