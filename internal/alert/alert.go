// Package alert defines the structured alert messages the orchestrator
// emits and the sink boundary they leave through. Delivery and retry beyond
// the sink are out of scope.
package alert

import (
	"log/slog"
	"time"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/bus"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/detection"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/risk"
)

// Alert is one real-time risk notification.
type Alert struct {
	CameraID   string            `json:"camera_id"`
	Timestamp  time.Time         `json:"timestamp"`
	IncidentID string            `json:"incident_id,omitempty"`
	Assessment risk.Assessment   `json:"risk_assessment"`
	Events     []detection.Event `json:"events"`
	Message    string            `json:"message"`
}

// Sink receives alerts from the orchestrator.
type Sink interface {
	Send(a Alert) error
}

// BusSink publishes alerts on the event bus.
type BusSink struct {
	bus    *bus.EventBus
	logger *slog.Logger
}

// NewBusSink creates a sink publishing to the alerts.risk subject.
func NewBusSink(b *bus.EventBus) *BusSink {
	return &BusSink{
		bus:    b,
		logger: slog.Default().With("component", "alerts"),
	}
}

// Send publishes the alert.
func (s *BusSink) Send(a Alert) error {
	if err := s.bus.Publish(bus.SubjectRiskAlert, a); err != nil {
		return err
	}
	s.logger.Info("Alert published",
		"camera", a.CameraID, "level", a.Assessment.Level, "incident_id", a.IncidentID)
	return nil
}

// ChanSink delivers alerts to a channel, dropping when the receiver lags.
// Used in tests and as an in-process fanout.
type ChanSink struct {
	C chan Alert
}

// NewChanSink creates a buffered channel sink.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{C: make(chan Alert, buffer)}
}

// Send delivers without blocking; a full buffer drops the alert.
func (s *ChanSink) Send(a Alert) error {
	select {
	case s.C <- a:
	default:
	}
	return nil
}
