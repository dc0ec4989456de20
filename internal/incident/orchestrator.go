package incident

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/alert"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/bus"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/detection"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/evidence"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/risk"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/tracking"
)

// Assessor scores a detection batch. *risk.Engine is the production
// implementation.
type Assessor interface {
	AssessRisk(events []detection.Event, ctx risk.Context) risk.Assessment
}

// EvidenceCreator packages events behind an incident. *evidence.Manager is
// the production implementation.
type EvidenceCreator interface {
	CreatePackage(incidentID string, events []detection.Event, assessment risk.Assessment) (*evidence.Package, error)
}

// Publisher carries incident lifecycle notifications. *bus.EventBus is the
// production implementation.
type Publisher interface {
	Publish(subject string, data interface{}) error
}

// ReviewOpener opens a review task for incidents flagged for human review.
// *milestone.Manager is the production implementation.
type ReviewOpener interface {
	OpenIncidentReview(incidentID, evidenceID, title, openedBy string) string
}

// Config holds orchestrator thresholds.
type Config struct {
	// RiskThreshold gates incident creation; scores at or below it are
	// logged and dropped.
	RiskThreshold float64
	// Tracker is applied to every per-camera tracker the orchestrator
	// creates.
	Tracker tracking.Config
}

// DefaultConfig returns the standard orchestrator thresholds.
func DefaultConfig() Config {
	return Config{
		RiskThreshold: 0.3,
		Tracker:       tracking.DefaultConfig(),
	}
}

// Outcome reports what one processing cycle produced.
type Outcome struct {
	ActiveTracks []*tracking.Track
	Assessment   risk.Assessment
	Incident     *Incident
	EvidenceID   string
	Alerted      bool
}

// Orchestrator sequences tracking, scoring, incident bookkeeping, evidence
// creation, and alerting. Each camera gets its own tracker; ProcessFrame
// calls for one camera must be sequential, which the per-camera worker
// guarantees.
type Orchestrator struct {
	cfg      Config
	assessor Assessor
	evidence EvidenceCreator
	sink     alert.Sink
	pub      Publisher
	store    *Store
	reviews  ReviewOpener
	logger   *slog.Logger
	now      func() time.Time

	trackerMu sync.Mutex
	trackers  map[string]*tracking.Tracker

	mu        sync.RWMutex
	incidents map[string]*Incident
}

// NewOrchestrator creates an orchestrator. sink, pub, and store may be nil.
func NewOrchestrator(cfg Config, assessor Assessor, ev EvidenceCreator, sink alert.Sink, pub Publisher, store *Store) *Orchestrator {
	if cfg.RiskThreshold == 0 {
		cfg.RiskThreshold = 0.3
	}
	return &Orchestrator{
		cfg:       cfg,
		assessor:  assessor,
		evidence:  ev,
		sink:      sink,
		pub:       pub,
		store:     store,
		logger:    slog.Default().With("component", "orchestrator"),
		now:       func() time.Time { return time.Now().UTC() },
		trackers:  make(map[string]*tracking.Tracker),
		incidents: make(map[string]*Incident),
	}
}

// SetReviewOpener attaches the task manager that receives review milestones
// for incidents requiring human review. Optional.
func (o *Orchestrator) SetReviewOpener(r ReviewOpener) {
	o.reviews = r
}

// Tracker returns the camera's tracker, creating it on first use.
func (o *Orchestrator) Tracker(cameraID string) *tracking.Tracker {
	o.trackerMu.Lock()
	defer o.trackerMu.Unlock()

	tr, ok := o.trackers[cameraID]
	if !ok {
		tr = tracking.New(cameraID, o.cfg.Tracker)
		o.trackers[cameraID] = tr
	}
	return tr
}

// ProcessFrame runs one cycle for a camera: update the tracker, assess risk,
// and when the score clears the threshold, open or update an incident with
// fresh evidence. High and critical assessments also raise an alert.
func (o *Orchestrator) ProcessFrame(cameraID string, events []detection.Event, rctx risk.Context) (*Outcome, error) {
	active := o.Tracker(cameraID).Update(events)
	assessment := o.assessor.AssessRisk(events, rctx)

	out := &Outcome{ActiveTracks: active, Assessment: assessment}
	if assessment.Score <= o.cfg.RiskThreshold {
		return out, nil
	}

	inc, created := o.openOrUpdate(cameraID, events, assessment)
	out.Incident = inc

	if o.evidence != nil {
		pkg, err := o.evidence.CreatePackage(inc.ID, events, assessment)
		if err != nil {
			o.logger.Error("Failed to create evidence package",
				"incident_id", inc.ID, "error", err)
		} else {
			o.attachEvidence(inc.ID, pkg.ID)
			out.EvidenceID = pkg.ID
			out.Incident.EvidenceIDs = append(out.Incident.EvidenceIDs, pkg.ID)
		}
	}

	if created && inc.RequiresHumanReview && o.reviews != nil {
		msID := o.reviews.OpenIncidentReview(inc.ID, out.EvidenceID,
			"Review evidence: "+inc.Title, "system")
		o.logger.Info("Review task opened", "incident_id", inc.ID, "milestone_id", msID)
	}

	o.publishLifecycle(inc, created)

	if assessment.Level == risk.LevelHigh || assessment.Level == risk.LevelCritical {
		out.Alerted = o.raiseAlert(cameraID, inc.ID, events, assessment)
	}

	return out, nil
}

// Incident returns a copy of one incident, or nil.
func (o *Orchestrator) Incident(id string) *Incident {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if inc, ok := o.incidents[id]; ok {
		return inc.clone()
	}
	return nil
}

// Incidents returns copies of all incidents.
func (o *Orchestrator) Incidents() []*Incident {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]*Incident, 0, len(o.incidents))
	for _, inc := range o.incidents {
		out = append(out, inc.clone())
	}
	return out
}

// Resolve closes an incident. Returns false for unknown ids.
func (o *Orchestrator) Resolve(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	inc, ok := o.incidents[id]
	if !ok {
		return false
	}
	inc.Status = StatusResolved
	inc.UpdatedAt = o.now()
	o.persist(inc)
	return true
}

// openOrUpdate finds an open incident for the camera and classified type, or
// creates one. Returns the incident copy and whether it was newly created.
func (o *Orchestrator) openOrUpdate(cameraID string, events []detection.Event, assessment risk.Assessment) (*Incident, bool) {
	typ := classify(events)
	now := o.now()

	o.mu.Lock()
	defer o.mu.Unlock()

	for _, inc := range o.incidents {
		if inc.CameraID != cameraID || inc.Type != typ || !inc.open() {
			continue
		}
		inc.Assessment = assessment
		if sev := severityFor(assessment.Level); severityRank(sev) > severityRank(inc.Severity) {
			inc.Severity = sev
		}
		inc.UpdatedAt = now
		o.persist(inc)
		return inc.clone(), false
	}

	severity := severityFor(assessment.Level)
	inc := &Incident{
		ID:                  uuid.New().String(),
		CameraID:            cameraID,
		Type:                typ,
		Severity:            severity,
		Status:              StatusUnderReview,
		Title:               title(typ, cameraID),
		Description:         describe(typ, assessment, len(events)),
		Assessment:          assessment,
		EvidenceIDs:         []string{},
		RequiresHumanReview: assessment.Level != risk.LevelLow,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if severity != SeverityLow {
		deadline := now.Add(appealWindow)
		inc.AppealDeadline = &deadline
	}

	o.incidents[inc.ID] = inc
	o.persist(inc)
	o.logger.Info("Incident opened",
		"incident_id", inc.ID, "camera", cameraID, "type", typ, "severity", severity)
	return inc.clone(), true
}

func (o *Orchestrator) attachEvidence(incidentID, packageID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if inc, ok := o.incidents[incidentID]; ok {
		inc.EvidenceIDs = append(inc.EvidenceIDs, packageID)
		o.persist(inc)
	}
}

func (o *Orchestrator) publishLifecycle(inc *Incident, created bool) {
	if o.pub == nil {
		return
	}
	subject := bus.SubjectIncidentUpdated
	if created {
		subject = bus.SubjectIncidentCreated
	}
	if err := o.pub.Publish(subject, inc); err != nil {
		o.logger.Warn("Failed to publish incident event", "incident_id", inc.ID, "error", err)
	}
}

func (o *Orchestrator) raiseAlert(cameraID, incidentID string, events []detection.Event, assessment risk.Assessment) bool {
	if o.sink == nil {
		return false
	}
	a := alert.Alert{
		CameraID:   cameraID,
		Timestamp:  assessment.Timestamp,
		IncidentID: incidentID,
		Assessment: assessment,
		Events:     events,
		Message:    assessment.RecommendedAction,
	}
	if err := o.sink.Send(a); err != nil {
		o.logger.Warn("Failed to send alert", "incident_id", incidentID, "error", err)
		return false
	}
	return true
}

// persist writes through to the store best-effort. Callers hold the write
// lock.
func (o *Orchestrator) persist(inc *Incident) {
	if o.store == nil {
		return
	}
	if err := o.store.Save(inc); err != nil {
		o.logger.Warn("Failed to persist incident", "incident_id", inc.ID, "error", err)
	}
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}
