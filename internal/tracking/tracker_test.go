package tracking

import (
	"testing"
	"time"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/detection"
)

func det(x, y float64) detection.Event {
	return detection.Event{
		CameraID:    "cam_1",
		Timestamp:   time.Now(),
		Type:        detection.TypePerson,
		Confidence:  0.9,
		BoundingBox: detection.BoundingBox{X: x - 20, Y: y - 40, Width: 40, Height: 80},
	}
}

func platedDet(x, y float64, plate string, conf float64) detection.Event {
	d := det(x, y)
	d.Type = detection.TypeVehicle
	d.Attributes = map[string]interface{}{
		detection.AttrPlateNumber:     plate,
		detection.AttrPlateConfidence: conf,
	}
	return d
}

func TestActiveRequiresMinHits(t *testing.T) {
	tr := New("cam_1", DefaultConfig())

	if got := tr.Update([]detection.Event{det(100, 100)}); len(got) != 0 {
		t.Errorf("active after 1 frame = %d, want 0", len(got))
	}
	if got := tr.Update([]detection.Event{det(105, 102)}); len(got) != 0 {
		t.Errorf("active after 2 frames = %d, want 0", len(got))
	}
	got := tr.Update([]detection.Event{det(110, 104)})
	if len(got) != 1 {
		t.Fatalf("active after 3 frames = %d, want 1", len(got))
	}
	if got[0].Hits < 3 {
		t.Errorf("active track hits = %d, want >= 3", got[0].Hits)
	}
}

func TestUniqueIDsAmongActiveTracks(t *testing.T) {
	tr := New("cam_1", DefaultConfig())

	frame := []detection.Event{det(100, 100), det(600, 600), det(1200, 300)}
	for i := 0; i < 4; i++ {
		tr.Update(frame)
	}

	active := tr.ActiveTracks()
	if len(active) != 3 {
		t.Fatalf("active tracks = %d, want 3", len(active))
	}
	seen := make(map[int]bool)
	for _, track := range active {
		if seen[track.ID] {
			t.Errorf("duplicate track id %d", track.ID)
		}
		seen[track.ID] = true
	}
}

func TestAgeResetAndIncrement(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAge = 3
	tr := New("cam_1", cfg)

	tr.Update([]detection.Event{det(100, 100)})
	tr.Update([]detection.Event{det(102, 101)})

	var track *Track
	for _, tk := range tr.tracks {
		track = tk
	}
	if track.Age != 0 {
		t.Errorf("age after match = %d, want 0", track.Age)
	}

	// Unmatched frames strictly increment age.
	for i := 1; i <= 3; i++ {
		tr.Update(nil)
		if track.Age != i {
			t.Errorf("age after %d empty frames = %d", i, track.Age)
		}
	}

	// One more pushes age past MaxAge and evicts.
	tr.Update(nil)
	if tr.TrackCount() != 0 {
		t.Errorf("track count after eviction = %d, want 0", tr.TrackCount())
	}
}

func TestMatchWithinGateOnly(t *testing.T) {
	tr := New("cam_1", DefaultConfig())

	tr.Update([]detection.Event{det(100, 100)})
	// 200 units away: beyond the 150-unit gate, spawns a second track.
	tr.Update([]detection.Event{det(300, 100)})

	if tr.TrackCount() != 2 {
		t.Errorf("track count = %d, want 2 (distant detection spawns)", tr.TrackCount())
	}
}

func TestFreedIDReuse(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAge = 1
	tr := New("cam_1", cfg)

	tr.Update([]detection.Event{det(100, 100)})
	// Age out the only track.
	tr.Update(nil)
	tr.Update(nil)
	if tr.TrackCount() != 0 {
		t.Fatalf("track not evicted")
	}

	tr.Update([]detection.Event{det(900, 500)})
	for id := range tr.tracks {
		if id != 1 {
			t.Errorf("new track id = %d, want reused id 1", id)
		}
	}
}

func TestGreedyFirstComeMatching(t *testing.T) {
	tr := New("cam_1", DefaultConfig())

	// Two tracks established apart.
	for i := 0; i < 3; i++ {
		tr.Update([]detection.Event{det(100, 100), det(220, 100)})
	}

	// One detection between them, nearer track 1. Track 1 iterates first and
	// claims it; track 2 goes unmatched.
	tr.Update([]detection.Event{det(150, 100)})

	ids := tr.sortedIDs()
	if len(ids) != 2 {
		t.Fatalf("track count = %d, want 2", len(ids))
	}
	first, second := tr.tracks[ids[0]], tr.tracks[ids[1]]
	if first.Age != 0 {
		t.Errorf("first track should have claimed the detection, age = %d", first.Age)
	}
	if second.Age != 1 {
		t.Errorf("second track should have aged, age = %d", second.Age)
	}
}

func TestPlateVerificationOneWay(t *testing.T) {
	tr := New("cam_1", DefaultConfig())

	tr.Update([]detection.Event{platedDet(100, 100, "KAB 123C", 0.6)})
	for _, track := range tr.tracks {
		if track.Verified {
			t.Error("verified at confidence 0.6")
		}
	}

	tr.Update([]detection.Event{platedDet(104, 100, "KAB 123C", 0.9)})
	for _, track := range tr.tracks {
		if !track.Verified {
			t.Error("not verified at confidence 0.9")
		}
	}

	// Lower confidence later never unsets the flag.
	tr.Update([]detection.Event{platedDet(108, 100, "KAB 123C", 0.4)})
	for _, track := range tr.tracks {
		if !track.Verified {
			t.Error("verified flag was unset by low-confidence reading")
		}
		if track.PlateConfidence != 0.4 {
			t.Errorf("plate confidence = %v, want latest reading 0.4", track.PlateConfidence)
		}
	}
}

func TestHistoryBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistoryLen = 5
	tr := New("cam_1", cfg)

	for i := 0; i < 10; i++ {
		tr.Update([]detection.Event{det(100+float64(i), 100)})
	}
	for _, track := range tr.tracks {
		if len(track.History) != 5 {
			t.Errorf("history length = %d, want 5", len(track.History))
		}
		// Oldest evicted: first remaining entry is from frame 6.
		if track.History[0].X != 105 {
			t.Errorf("history[0].X = %v, want 105", track.History[0].X)
		}
	}
}

func TestEmptyInputAgesAllTracks(t *testing.T) {
	tr := New("cam_1", DefaultConfig())
	tr.Update([]detection.Event{det(100, 100), det(600, 600)})

	tr.Update(nil)
	for _, track := range tr.tracks {
		if track.Age != 1 {
			t.Errorf("age = %d after empty frame, want 1", track.Age)
		}
	}
}

func TestEndToEndVerifiedTrack(t *testing.T) {
	tr := New("cam_1", DefaultConfig())

	tr.Update([]detection.Event{platedDet(100, 100, "KCA 456B", 0.5)})
	tr.Update([]detection.Event{platedDet(100, 100, "KCA 456B", 0.5)})
	active := tr.Update([]detection.Event{platedDet(100, 100, "KCA 456B", 0.9)})

	if len(active) != 1 {
		t.Fatalf("active tracks after 3 frames = %d, want 1", len(active))
	}
	track := active[0]
	if !track.Verified {
		t.Error("track not verified at plate confidence 0.9")
	}
	if track.PlateConfidence != 0.9 {
		t.Errorf("plate confidence = %v, want 0.9", track.PlateConfidence)
	}
	if cx, cy := track.BoundingBox.Centroid(); cx != 100 || cy != 100 {
		t.Errorf("centroid = (%v,%v), want (100,100)", cx, cy)
	}
}
