// Package milestone implements the approval workflow for operational tasks.
// Milestones move through a draft to approval state machine; illegal
// transitions return failure results, never errors or panics.
package milestone

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/audit"
)

// Status is a milestone lifecycle state
type Status string

const (
	StatusDraft           Status = "draft"
	StatusInProgress      Status = "in_progress"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusCancelled       Status = "cancelled"
)

// terminal reports whether a status admits no further transitions.
func (s Status) terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Type classifies what a milestone tracks.
type Type string

const (
	TypeDevelopment    Type = "development"
	TypeIncidentCase   Type = "incident_case"
	TypeEvidenceReview Type = "evidence_review"
)

// Priority orders milestones for operators.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Milestone is a trackable operational task. IncidentID and EvidenceID are
// weak references by id only.
type Milestone struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Type        Type     `json:"type"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	CreatedBy   string   `json:"created_by"`
	AssignedTo  string   `json:"assigned_to,omitempty"`
	ApprovedBy  string   `json:"approved_by,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	IncidentID     string `json:"incident_id,omitempty"`
	EvidenceID     string `json:"evidence_id,omitempty"`
	ApprovalNotes  string `json:"approval_notes,omitempty"`
	RejectionNotes string `json:"rejection_notes,omitempty"`
}

// Update carries optional field edits; nil members are left unchanged.
type Update struct {
	Title       *string
	Description *string
	Priority    *Priority
	AssignedTo  *string
	DueAt       *time.Time
	Status      *Status
}

// Filter selects milestones in List. Zero values match everything.
type Filter struct {
	Status     Status
	Type       Type
	AssignedTo string
}

func (m *Milestone) clone() *Milestone {
	cp := *m
	return &cp
}

// Manager owns the milestone collection. Mutations are serialized under one
// mutex; of two concurrent approvals of the same milestone, the loser
// observes pending_approval already consumed and fails.
type Manager struct {
	mu         sync.RWMutex
	milestones map[string]*Milestone

	store  *Store
	audit  *audit.Log
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a milestone manager. store may be nil.
func NewManager(store *Store, auditLog *audit.Log) *Manager {
	return &Manager{
		milestones: make(map[string]*Milestone),
		store:      store,
		audit:      auditLog,
		logger:     slog.Default().With("component", "milestone"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a new milestone in draft status.
func (m *Manager) Create(title, description string, typ Type, priority Priority, createdBy string) *Milestone {
	now := m.now()
	ms := &Milestone{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Type:        typ,
		Status:      StatusDraft,
		Priority:    priority,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Persist and copy under the lock: once the milestone is in the map a
	// concurrent update can reach it.
	m.mu.Lock()
	m.milestones[ms.ID] = ms
	m.persist(ms)
	out := ms.clone()
	m.mu.Unlock()

	m.record(createdBy, "milestone_created", out.ID, map[string]interface{}{
		"title": title,
		"type":  string(typ),
	})
	m.logger.Info("Milestone created", "milestone_id", out.ID, "type", typ)
	return out
}

// OpenIncidentReview creates an evidence review milestone linked to the
// incident and its evidence package, returning the milestone id. Used by the
// pipeline when an incident is flagged for human review.
func (m *Manager) OpenIncidentReview(incidentID, evidenceID, title, openedBy string) string {
	now := m.now()
	ms := &Milestone{
		ID:         uuid.New().String(),
		Title:      title,
		Type:       TypeEvidenceReview,
		Status:     StatusDraft,
		Priority:   PriorityHigh,
		CreatedBy:  openedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
		IncidentID: incidentID,
		EvidenceID: evidenceID,
	}

	id := ms.ID

	m.mu.Lock()
	m.milestones[id] = ms
	m.persist(ms)
	m.mu.Unlock()

	m.record(openedBy, "milestone_created", id, map[string]interface{}{
		"title":       title,
		"type":        string(TypeEvidenceReview),
		"incident_id": incidentID,
	})
	m.logger.Info("Review milestone opened", "milestone_id", id, "incident_id", incidentID)
	return id
}

// Get returns a copy of the milestone, or nil if unknown.
func (m *Manager) Get(id string) *Milestone {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ms, ok := m.milestones[id]; ok {
		return ms.clone()
	}
	return nil
}

// List returns copies of milestones matching the filter.
func (m *Manager) List(f Filter) []*Milestone {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Milestone
	for _, ms := range m.milestones {
		if f.Status != "" && ms.Status != f.Status {
			continue
		}
		if f.Type != "" && ms.Type != f.Type {
			continue
		}
		if f.AssignedTo != "" && ms.AssignedTo != f.AssignedTo {
			continue
		}
		out = append(out, ms.clone())
	}
	return out
}

// ApplyUpdate edits milestone fields. Allowed in any non-terminal status;
// returns the updated copy or nil on failure.
func (m *Manager) ApplyUpdate(id, actorID string, upd Update) *Milestone {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.milestones[id]
	if !ok || ms.Status.terminal() {
		return nil
	}

	if upd.Title != nil {
		ms.Title = *upd.Title
	}
	if upd.Description != nil {
		ms.Description = *upd.Description
	}
	if upd.Priority != nil {
		ms.Priority = *upd.Priority
	}
	if upd.AssignedTo != nil {
		ms.AssignedTo = *upd.AssignedTo
	}
	if upd.DueAt != nil {
		ms.DueAt = upd.DueAt
	}
	if upd.Status != nil {
		// Only the draft/in_progress working states may be set directly;
		// approval transitions go through their dedicated operations.
		switch *upd.Status {
		case StatusDraft, StatusInProgress:
			ms.Status = *upd.Status
		default:
			return nil
		}
	}
	ms.UpdatedAt = m.now()

	m.persist(ms)
	m.record(actorID, "milestone_updated", ms.ID, nil)
	return ms.clone()
}

// SubmitForApproval moves a draft or in-progress milestone to
// pending_approval, recording the submission time. Returns nil from any
// other status.
func (m *Manager) SubmitForApproval(id, actorID string) *Milestone {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.milestones[id]
	if !ok {
		return nil
	}
	if ms.Status != StatusDraft && ms.Status != StatusInProgress {
		return nil
	}

	now := m.now()
	ms.Status = StatusPendingApproval
	ms.SubmittedAt = &now
	ms.UpdatedAt = now

	m.persist(ms)
	m.record(actorID, "milestone_submitted", ms.ID, nil)
	return ms.clone()
}

// Approve completes a pending milestone. Legal only from pending_approval.
func (m *Manager) Approve(id, approverID, notes string) *Milestone {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.milestones[id]
	if !ok || ms.Status != StatusPendingApproval {
		return nil
	}

	now := m.now()
	ms.Status = StatusApproved
	ms.ApprovedBy = approverID
	ms.ApprovalNotes = notes
	ms.CompletedAt = &now
	ms.UpdatedAt = now

	m.persist(ms)
	m.record(approverID, "milestone_approved", ms.ID, map[string]interface{}{
		"notes": notes,
	})
	m.logger.Info("Milestone approved", "milestone_id", ms.ID, "approver", approverID)
	return ms.clone()
}

// Reject returns a pending milestone with a mandatory reason. Legal only
// from pending_approval; an empty reason fails.
func (m *Manager) Reject(id, approverID, reason string) *Milestone {
	if reason == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.milestones[id]
	if !ok || ms.Status != StatusPendingApproval {
		return nil
	}

	ms.Status = StatusRejected
	ms.ApprovedBy = approverID
	ms.RejectionNotes = reason
	ms.UpdatedAt = m.now()

	m.persist(ms)
	m.record(approverID, "milestone_rejected", ms.ID, map[string]interface{}{
		"reason": reason,
	})
	return ms.clone()
}

// Cancel marks any non-terminal milestone cancelled.
func (m *Manager) Cancel(id, actorID string) *Milestone {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.milestones[id]
	if !ok || ms.Status.terminal() {
		return nil
	}

	ms.Status = StatusCancelled
	ms.UpdatedAt = m.now()

	m.persist(ms)
	m.record(actorID, "milestone_cancelled", ms.ID, nil)
	return ms.clone()
}

// Delete removes a milestone. Legal only while the status is draft.
func (m *Manager) Delete(id, actorID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.milestones[id]
	if !ok || ms.Status != StatusDraft {
		return false
	}

	delete(m.milestones, id)
	if m.store != nil {
		if err := m.store.Delete(id); err != nil {
			m.logger.Warn("Failed to delete persisted milestone", "milestone_id", id, "error", err)
		}
	}
	m.record(actorID, "milestone_deleted", id, nil)
	return true
}

func (m *Manager) persist(ms *Milestone) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ms); err != nil {
		m.logger.Warn("Failed to persist milestone", "milestone_id", ms.ID, "error", err)
	}
}

func (m *Manager) record(actorID, eventType, subjectID string, data map[string]interface{}) {
	if m.audit == nil {
		return
	}
	m.audit.Record(actorID, eventType, subjectID, data)
}
