// Package incident coordinates the detection pipeline: tracker output feeds
// the risk engine, risk gates incident creation and evidence packaging, and
// high risk raises alerts. The orchestrator composes the other services and
// holds no scoring or tracking logic of its own.
package incident

import (
	"fmt"
	"time"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/detection"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/risk"
)

// Type classifies what kind of incident the detections indicate.
type Type string

const (
	TypeSecurityThreat    Type = "security_threat"
	TypeTrafficViolation  Type = "traffic_violation"
	TypePublicSafety      Type = "public_safety"
	TypeSurveillanceAlert Type = "surveillance_alert"
)

// Severity mirrors the risk level of the assessment that opened the
// incident.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Status is an incident lifecycle state
type Status string

const (
	StatusActive      Status = "active"
	StatusResponding  Status = "responding"
	StatusResolved    Status = "resolved"
	StatusMonitoring  Status = "monitoring"
	StatusUnderReview Status = "under_review"
)

// appealWindow is how long after creation a non-low-severity incident stays
// appealable.
const appealWindow = 30 * 24 * time.Hour

// Incident is one opened case. EvidenceIDs reference packages owned by the
// evidence manager.
type Incident struct {
	ID                  string          `json:"id"`
	CameraID            string          `json:"camera_id"`
	Type                Type            `json:"type"`
	Severity            Severity        `json:"severity"`
	Status              Status          `json:"status"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	Assessment          risk.Assessment `json:"risk_assessment"`
	EvidenceIDs         []string        `json:"evidence_ids"`
	RequiresHumanReview bool            `json:"requires_human_review"`
	AppealDeadline      *time.Time      `json:"appeal_deadline,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// open reports whether the incident can still absorb new detections.
func (i *Incident) open() bool {
	return i.Status != StatusResolved
}

func (i *Incident) clone() *Incident {
	cp := *i
	cp.EvidenceIDs = append([]string(nil), i.EvidenceIDs...)
	return &cp
}

// classify maps a detection batch to an incident type. Weapons dominate;
// plated vehicles indicate traffic enforcement; people default to public
// safety.
func classify(events []detection.Event) Type {
	var sawVehicleWithPlate, sawPerson bool
	for _, ev := range events {
		switch ev.Type {
		case detection.TypeWeapon:
			return TypeSecurityThreat
		case detection.TypeVehicle:
			if _, _, ok := ev.Plate(); ok {
				sawVehicleWithPlate = true
			}
		case detection.TypePerson:
			sawPerson = true
		}
	}
	if sawVehicleWithPlate {
		return TypeTrafficViolation
	}
	if sawPerson {
		return TypePublicSafety
	}
	return TypeSurveillanceAlert
}

// severityFor maps a risk level to incident severity.
func severityFor(level risk.Level) Severity {
	switch level {
	case risk.LevelCritical:
		return SeverityCritical
	case risk.LevelHigh:
		return SeverityHigh
	case risk.LevelMedium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func title(typ Type, cameraID string) string {
	switch typ {
	case TypeSecurityThreat:
		return fmt.Sprintf("Security threat detected on %s", cameraID)
	case TypeTrafficViolation:
		return fmt.Sprintf("Traffic violation on %s", cameraID)
	case TypePublicSafety:
		return fmt.Sprintf("Public safety concern on %s", cameraID)
	default:
		return fmt.Sprintf("Surveillance alert on %s", cameraID)
	}
}

func describe(typ Type, assessment risk.Assessment, eventCount int) string {
	return fmt.Sprintf("%d detection(s) assessed at risk %.2f (%s); recommended: %s",
		eventCount, assessment.Score, assessment.Level, assessment.RecommendedAction)
}
