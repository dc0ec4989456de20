package incident

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/detection"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/risk"
)

// Scene carries the fixed situational context for one camera.
type Scene struct {
	Location     string
	Weather      string
	Traffic      string
	CrowdDensity risk.CrowdDensity
}

// Worker drives one camera's processing loop: pull a frame, detect, process.
// One worker per camera keeps tracker updates strictly sequential.
type Worker struct {
	cameraID     string
	scene        Scene
	source       detection.FrameSource
	detector     detection.Detector
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewWorker creates a worker for one camera.
func NewWorker(cameraID string, scene Scene, source detection.FrameSource, detector detection.Detector, o *Orchestrator) *Worker {
	return &Worker{
		cameraID:     cameraID,
		scene:        scene,
		source:       source,
		detector:     detector,
		orchestrator: o,
		logger:       slog.Default().With("component", "worker", "camera", cameraID),
	}
}

// Run processes frames until the context is cancelled. Detection errors are
// logged and the frame treated as empty; the loop never stops on noise.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("Camera worker started")
	defer w.logger.Info("Camera worker stopped")

	for {
		frame, err := w.source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.logger.Warn("Frame source error", "error", err)
			// Back off so a persistently failing source cannot spin the loop.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		events, err := w.detector.Detect(ctx, frame)
		if err != nil {
			w.logger.Warn("Detection failed", "error", err)
			events = nil
		}

		rctx := risk.Context{
			Location:     w.scene.Location,
			Timestamp:    frame.Timestamp,
			Weather:      w.scene.Weather,
			Traffic:      w.scene.Traffic,
			CrowdDensity: w.scene.CrowdDensity,
		}
		if _, err := w.orchestrator.ProcessFrame(w.cameraID, events, rctx); err != nil {
			w.logger.Error("Processing cycle failed", "error", err)
		}
	}
}
