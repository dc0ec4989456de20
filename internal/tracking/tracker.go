// Package tracking maintains per-camera object identity across detection
// frames using greedy nearest-centroid association.
package tracking

import (
	"log/slog"
	"sort"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/detection"
)

// Point is a centroid position in pixel units
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Track is a persistent identity assigned to a detected object across
// consecutive frames from one camera. Mutated only by its owning Tracker.
type Track struct {
	ID              int                   `json:"track_id"`
	CameraID        string                `json:"camera_id"`
	Type            detection.Type        `json:"type"`
	BoundingBox     detection.BoundingBox `json:"bounding_box"`
	Plate           string                `json:"plate,omitempty"`
	PlateConfidence float64               `json:"plate_confidence,omitempty"`
	Verified        bool                  `json:"verified"`
	Hits            int                   `json:"hits"`
	Age             int                   `json:"age"`
	History         []Point               `json:"history,omitempty"`
}

// Config holds tracker thresholds.
type Config struct {
	// MaxDistance is the association gate in pixel-equivalent units.
	MaxDistance float64
	// MinHits is the confirmation threshold before a track is reported.
	MinHits int
	// MaxAge is the number of consecutive unmatched frames before removal.
	MaxAge int
	// HistoryLen bounds the centroid history; oldest entries are evicted.
	HistoryLen int
	// PlateVerifyThreshold flips the verified flag once exceeded.
	PlateVerifyThreshold float64
}

// DefaultConfig returns the standard tracker thresholds.
func DefaultConfig() Config {
	return Config{
		MaxDistance:          150,
		MinHits:              3,
		MaxAge:               30,
		HistoryLen:           30,
		PlateVerifyThreshold: 0.85,
	}
}

// Tracker associates a stream of per-frame detections into persistent
// tracks for a single camera. Update calls must be sequential; the caller
// owns frame ordering.
type Tracker struct {
	cameraID string
	cfg      Config
	logger   *slog.Logger

	tracks  map[int]*Track
	freeIDs []int
	nextID  int
}

// New creates a tracker for one camera.
func New(cameraID string, cfg Config) *Tracker {
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = 150
	}
	if cfg.MinHits <= 0 {
		cfg.MinHits = 3
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30
	}
	if cfg.HistoryLen <= 0 {
		cfg.HistoryLen = 30
	}
	if cfg.PlateVerifyThreshold <= 0 {
		cfg.PlateVerifyThreshold = 0.85
	}
	return &Tracker{
		cameraID: cameraID,
		cfg:      cfg,
		logger:   slog.Default().With("component", "tracker", "camera", cameraID),
		tracks:   make(map[int]*Track),
		nextID:   1,
	}
}

// CameraID returns the owning camera id.
func (t *Tracker) CameraID() string { return t.cameraID }

// Update consumes one frame's detections and returns the active tracks.
// Empty or nil input is "no detections this frame": all tracks age, none
// match. A track is active once its hit count reaches MinHits.
func (t *Tracker) Update(detections []detection.Event) []*Track {
	matched := make(map[int]bool, len(t.tracks))
	claimed := make(map[int]bool, len(detections))

	// Greedy nearest-centroid association, iterating tracks by ascending id
	// so association order is stable. First-come tracks consume candidates;
	// this is not a minimum-cost assignment.
	for _, id := range t.sortedIDs() {
		track := t.tracks[id]
		best := -1
		bestDist := t.cfg.MaxDistance
		for i, det := range detections {
			if claimed[i] {
				continue
			}
			if dist := track.BoundingBox.CentroidDistance(det.BoundingBox); dist < bestDist {
				best = i
				bestDist = dist
			}
		}
		if best < 0 {
			continue
		}
		claimed[best] = true
		matched[id] = true
		t.applyMatch(track, detections[best])
	}

	// Unmatched detections spawn new tracks.
	for i, det := range detections {
		if claimed[i] {
			continue
		}
		matched[t.spawn(det)] = true
	}

	// Age unmatched tracks and evict the stale ones.
	for id, track := range t.tracks {
		if matched[id] {
			continue
		}
		track.Age++
		if track.Age > t.cfg.MaxAge {
			delete(t.tracks, id)
			t.freeIDs = append(t.freeIDs, id)
			t.logger.Debug("Track removed", "track_id", id, "age", track.Age)
		}
	}

	return t.ActiveTracks()
}

// ActiveTracks returns tracks that have met the confirmation threshold,
// ordered by id.
func (t *Tracker) ActiveTracks() []*Track {
	active := make([]*Track, 0, len(t.tracks))
	for _, id := range t.sortedIDs() {
		if track := t.tracks[id]; track.Hits >= t.cfg.MinHits {
			active = append(active, track)
		}
	}
	return active
}

// TrackCount returns the number of tracks, confirmed or not.
func (t *Tracker) TrackCount() int { return len(t.tracks) }

func (t *Tracker) applyMatch(track *Track, det detection.Event) {
	track.BoundingBox = det.BoundingBox
	track.Age = 0
	track.Hits++
	if det.Type != "" && det.Type != detection.TypeUnknown {
		track.Type = det.Type
	}

	cx, cy := det.BoundingBox.Centroid()
	track.History = append(track.History, Point{X: cx, Y: cy})
	if len(track.History) > t.cfg.HistoryLen {
		track.History = track.History[len(track.History)-t.cfg.HistoryLen:]
	}

	if plate, conf, ok := det.Plate(); ok {
		track.Plate = plate
		track.PlateConfidence = conf
		// Verified is a one-way flip.
		if conf > t.cfg.PlateVerifyThreshold {
			track.Verified = true
		}
	}
}

func (t *Tracker) spawn(det detection.Event) int {
	id := t.nextID
	if n := len(t.freeIDs); n > 0 {
		// Reuse the smallest freed slot.
		sort.Ints(t.freeIDs)
		id = t.freeIDs[0]
		t.freeIDs = t.freeIDs[1:]
	} else {
		t.nextID++
	}

	cx, cy := det.BoundingBox.Centroid()
	track := &Track{
		ID:          id,
		CameraID:    t.cameraID,
		Type:        det.Type,
		BoundingBox: det.BoundingBox,
		Hits:        1,
		History:     []Point{{X: cx, Y: cy}},
	}
	if plate, conf, ok := det.Plate(); ok {
		track.Plate = plate
		track.PlateConfidence = conf
		if conf > t.cfg.PlateVerifyThreshold {
			track.Verified = true
		}
	}
	t.tracks[id] = track
	t.logger.Debug("Track created", "track_id", id, "type", det.Type)
	return id
}

func (t *Tracker) sortedIDs() []int {
	ids := make([]int, 0, len(t.tracks))
	for id := range t.tracks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
