package detection

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// SimulatedDetector produces synthetic detections for demo and test
// deployments where no real detection backend is attached. It satisfies the
// same Detector interface as a real backend so nothing downstream depends on
// which one is wired.
type SimulatedDetector struct {
	mu    sync.Mutex
	rng   *rand.Rand
	frame int64

	// walk state per camera so objects move coherently between frames
	walkers map[string][]simWalker
}

type simWalker struct {
	typ   Type
	box   BoundingBox
	vx    float64
	vy    float64
	plate string
}

// NewSimulatedDetector creates a detector with a deterministic seed.
func NewSimulatedDetector(seed int64) *SimulatedDetector {
	return &SimulatedDetector{
		rng:     rand.New(rand.NewSource(seed)),
		walkers: make(map[string][]simWalker),
	}
}

// ModelVersion identifies the simulated model.
func (d *SimulatedDetector) ModelVersion() string { return "sim-1.2.0" }

// Close releases nothing; the simulator holds no external resources.
func (d *SimulatedDetector) Close() error { return nil }

// Detect returns the current frame's synthetic detections.
func (d *SimulatedDetector) Detect(ctx context.Context, frame *Frame) ([]Event, error) {
	if frame == nil {
		return nil, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame++

	walkers := d.walkers[frame.CameraID]
	if len(walkers) == 0 {
		walkers = d.spawnWalkers()
	}

	events := make([]Event, 0, len(walkers))
	for i := range walkers {
		w := &walkers[i]
		w.box.X += w.vx
		w.box.Y += w.vy
		// Bounce off a notional 1920x1080 frame edge.
		if w.box.X < 0 || w.box.X+w.box.Width > 1920 {
			w.vx = -w.vx
		}
		if w.box.Y < 0 || w.box.Y+w.box.Height > 1080 {
			w.vy = -w.vy
		}

		ev := Event{
			CameraID:     frame.CameraID,
			Timestamp:    frame.Timestamp,
			Type:         w.typ,
			Confidence:   0.6 + d.rng.Float64()*0.35,
			BoundingBox:  w.box,
			FrameHash:    hashFrame(frame),
			ModelVersion: d.ModelVersion(),
		}
		if w.typ == TypeVehicle && w.plate != "" {
			ev.Attributes = map[string]interface{}{
				AttrPlateNumber:     w.plate,
				AttrPlateConfidence: 0.7 + d.rng.Float64()*0.25,
				AttrVehicleColor:    "white",
			}
		}
		events = append(events, ev)
	}

	d.walkers[frame.CameraID] = walkers
	return events, nil
}

func (d *SimulatedDetector) spawnWalkers() []simWalker {
	n := 1 + d.rng.Intn(3)
	walkers := make([]simWalker, 0, n)
	for i := 0; i < n; i++ {
		typ := TypePerson
		plate := ""
		if d.rng.Float64() < 0.5 {
			typ = TypeVehicle
			plate = fmt.Sprintf("K%c%c %03dA",
				'A'+rune(d.rng.Intn(26)), 'A'+rune(d.rng.Intn(26)), d.rng.Intn(1000))
		}
		walkers = append(walkers, simWalker{
			typ: typ,
			box: BoundingBox{
				X:      d.rng.Float64() * 1700,
				Y:      d.rng.Float64() * 900,
				Width:  50 + d.rng.Float64()*80,
				Height: 60 + d.rng.Float64()*100,
			},
			vx:    (d.rng.Float64() - 0.5) * 20,
			vy:    (d.rng.Float64() - 0.5) * 12,
			plate: plate,
		})
	}
	return walkers
}

func hashFrame(frame *Frame) string {
	h := sha256.New()
	h.Write([]byte(frame.CameraID))
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(frame.Timestamp.UnixNano()))
	h.Write(ts[:])
	h.Write(frame.Data)
	return hex.EncodeToString(h.Sum(nil))
}

// TickingFrameSource emits an empty synthetic frame at a fixed interval.
// It stands in for camera capture, which is outside this core.
type TickingFrameSource struct {
	cameraID string
	interval time.Duration

	once   sync.Once
	ticker *time.Ticker
}

// NewTickingFrameSource creates a frame source for one camera.
func NewTickingFrameSource(cameraID string, interval time.Duration) *TickingFrameSource {
	if interval <= 0 {
		interval = time.Second
	}
	return &TickingFrameSource{cameraID: cameraID, interval: interval}
}

// Next blocks until the next frame tick or context cancellation.
func (s *TickingFrameSource) Next(ctx context.Context) (*Frame, error) {
	s.once.Do(func() { s.ticker = time.NewTicker(s.interval) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case t := <-s.ticker.C:
		return &Frame{CameraID: s.cameraID, Timestamp: t}, nil
	}
}

// Close stops the tick loop.
func (s *TickingFrameSource) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	return nil
}
