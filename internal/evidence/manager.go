package evidence

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/audit"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/detection"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/risk"
)

// Manager owns the evidence package collection. The in-memory map is
// authoritative; the store, when attached, is persisted best-effort. All
// mutation is serialized under one mutex so concurrent reviews of the same
// package cannot both succeed.
type Manager struct {
	mu       sync.RWMutex
	packages map[string]*Package

	store  *Store
	audit  *audit.Log
	logger *slog.Logger
	now    func() time.Time

	// calibrations is camera-calibration metadata stamped into every
	// package at creation.
	calibrations map[string]interface{}
}

// NewManager creates an evidence manager. store may be nil. Packages are
// stamped with the default camera calibrations until SetCalibrations
// overrides them.
func NewManager(store *Store, auditLog *audit.Log) *Manager {
	return &Manager{
		packages: make(map[string]*Package),
		store:    store,
		audit:    auditLog,
		logger:   slog.Default().With("component", "evidence"),
		now:      func() time.Time { return time.Now().UTC() },
		calibrations: map[string]interface{}{
			"lens_distortion": "calibrated",
			"gps_accuracy":    "±2m",
			"timestamp_sync":  "NTP synced",
		},
	}
}

// SetCalibrations registers camera-calibration metadata recorded into
// packages created afterwards.
func (m *Manager) SetCalibrations(cal map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calibrations = cal
}

// CreatePackage bundles detection events and a risk assessment into a new
// tamper-evident package. Retention is 365 days when the assessed risk level
// is high or critical, 72 hours otherwise.
func (m *Manager) CreatePackage(incidentID string, events []detection.Event, assessment risk.Assessment) (*Package, error) {
	now := m.now()

	retention := RetentionNonOffence
	if assessment.Level == risk.LevelHigh || assessment.Level == risk.LevelCritical {
		retention = RetentionOffence
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pkg := &Package{
		ID:             uuid.New().String(),
		IncidentID:     incidentID,
		CreatedAt:      now,
		Events:         append([]detection.Event(nil), events...),
		Assessment:     assessment,
		ChainOfCustody: []CustodyEntry{},
		Status:         StatusCreated,
		RetentionUntil: now.Add(retention),
	}
	if m.calibrations != nil {
		pkg.Metadata = map[string]interface{}{"camera_calibrations": m.calibrations}
	}

	hash, err := ComputeHash(pkg)
	if err != nil {
		return nil, err
	}
	pkg.Hash = hash

	m.packages[pkg.ID] = pkg
	m.persist(pkg)
	m.record("system", "evidence_created", pkg.ID, map[string]interface{}{
		"incident_id": incidentID,
		"risk_level":  string(assessment.Level),
		"event_count": len(events),
	})
	m.logger.Info("Evidence package created",
		"package_id", pkg.ID, "incident_id", incidentID, "risk_level", assessment.Level)

	return pkg.clone(), nil
}

// Review records a reviewer verdict. It returns false when the package id is
// unknown or the package has already reached a reviewed or archived state;
// the second of two concurrent reviews fails this precondition.
func (m *Manager) Review(packageID, reviewerID string, decision Decision, notes string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	pkg, ok := m.packages[packageID]
	if !ok {
		return false
	}
	switch pkg.Status {
	case StatusApproved, StatusRejected, StatusArchived:
		return false
	}

	if decision == DecisionApprove {
		pkg.Status = StatusApproved
	} else {
		pkg.Status = StatusRejected
	}
	pkg.ReviewerID = reviewerID
	pkg.ReviewNotes = notes
	pkg.ChainOfCustody = append(pkg.ChainOfCustody, CustodyEntry{
		Timestamp: m.now(),
		Actor:     reviewerID,
		Action:    "review",
		Detail:    string(decision),
	})

	if !m.rehash(pkg) {
		return false
	}
	m.persist(pkg)
	m.record(reviewerID, "evidence_reviewed", pkg.ID, map[string]interface{}{
		"decision": string(decision),
		"notes":    notes,
	})
	return true
}

// SubmitAppeal marks the package appealed and extends retention to seven
// years from now. Retention only ever extends; an appeal never shortens it.
func (m *Manager) SubmitAppeal(packageID, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	pkg, ok := m.packages[packageID]
	if !ok {
		return false
	}

	now := m.now()
	pkg.Status = StatusAppealed
	pkg.AppealReason = reason
	pkg.AppealedAt = &now
	if until := now.Add(RetentionAppeal); until.After(pkg.RetentionUntil) {
		pkg.RetentionUntil = until
	}
	pkg.ChainOfCustody = append(pkg.ChainOfCustody, CustodyEntry{
		Timestamp: now,
		Actor:     "appellant",
		Action:    "appeal",
		Detail:    reason,
	})

	if !m.rehash(pkg) {
		return false
	}
	m.persist(pkg)
	m.record("appellant", "evidence_appealed", pkg.ID, map[string]interface{}{
		"reason": reason,
	})
	return true
}

// Verify recomputes the stored package's hash. ErrNotFound for unknown ids,
// ErrTamperSuspected on mismatch.
func (m *Manager) Verify(packageID string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pkg, ok := m.packages[packageID]
	if !ok {
		return ErrNotFound
	}
	return VerifyPackage(pkg)
}

// Get returns a copy of the package, or ErrNotFound.
func (m *Manager) Get(packageID string) (*Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pkg, ok := m.packages[packageID]
	if !ok {
		return nil, ErrNotFound
	}
	return pkg.clone(), nil
}

// List returns copies of all packages.
func (m *Manager) List() []*Package {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Package, 0, len(m.packages))
	for _, pkg := range m.packages {
		out = append(out, pkg.clone())
	}
	return out
}

// ArchiveExpired archives every non-archived package whose retention period
// has elapsed, returning the number archived. Called by the retention
// sweeper.
func (m *Manager) ArchiveExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	archived := 0
	for _, pkg := range m.packages {
		if pkg.Status == StatusArchived || pkg.RetentionUntil.After(now) {
			continue
		}
		pkg.Status = StatusArchived
		pkg.ChainOfCustody = append(pkg.ChainOfCustody, CustodyEntry{
			Timestamp: now,
			Actor:     "system",
			Action:    "archive",
			Detail:    "retention elapsed",
		})
		if !m.rehash(pkg) {
			continue
		}
		m.persist(pkg)
		m.record("system", "evidence_archived", pkg.ID, nil)
		archived++
	}
	if archived > 0 {
		m.logger.Info("Archived expired evidence", "count", archived)
	}
	return archived
}

// rehash recomputes and stores the hash after a mutation. Callers hold the
// write lock.
func (m *Manager) rehash(pkg *Package) bool {
	hash, err := ComputeHash(pkg)
	if err != nil {
		m.logger.Error("Failed to rehash package", "package_id", pkg.ID, "error", err)
		return false
	}
	pkg.Hash = hash
	return true
}

func (m *Manager) persist(pkg *Package) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(pkg); err != nil {
		m.logger.Warn("Failed to persist evidence package", "package_id", pkg.ID, "error", err)
	}
}

func (m *Manager) record(actor, eventType, subjectID string, data map[string]interface{}) {
	if m.audit == nil {
		return
	}
	m.audit.Record(actor, eventType, subjectID, data)
}
