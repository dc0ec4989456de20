// Package evidence produces and evolves tamper-evident evidence records.
// Packages carry a SHA-256 integrity hash over a canonical serialization of
// their fields; the hash is recomputed on every mutation so it always
// authenticates the current state.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/detection"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/risk"
)

var (
	// ErrNotFound reports an unknown package id.
	ErrNotFound = errors.New("evidence package not found")

	// ErrTamperSuspected reports a stored hash that no longer matches the
	// recomputed hash of the package contents.
	ErrTamperSuspected = errors.New("evidence tamper suspected")
)

// Status is an evidence package lifecycle state
type Status string

const (
	StatusCreated     Status = "created"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusAppealed    Status = "appealed"
	StatusArchived    Status = "archived"
)

// Decision is a reviewer verdict.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Retention periods, fixed by policy.
const (
	RetentionNonOffence = 72 * time.Hour
	RetentionOffence    = 365 * 24 * time.Hour
	RetentionAppeal     = 2555 * 24 * time.Hour
	RetentionAudit      = 1825 * 24 * time.Hour
)

// CustodyEntry is one action in a package's append-only chain of custody.
type CustodyEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
}

// Package is an integrity-protected bundle of detection events and the risk
// assessment that justified its creation. All mutation goes through the
// Manager; the stored Hash covers every field below except Hash itself.
type Package struct {
	ID             string                 `json:"id"`
	IncidentID     string                 `json:"incident_id"`
	CreatedAt      time.Time              `json:"created_at"`
	Events         []detection.Event      `json:"events"`
	Assessment     risk.Assessment        `json:"risk_assessment"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	ChainOfCustody []CustodyEntry         `json:"chain_of_custody"`
	Status         Status                 `json:"status"`
	ReviewerID     string                 `json:"reviewer_id,omitempty"`
	ReviewNotes    string                 `json:"review_notes,omitempty"`
	AppealReason   string                 `json:"appeal_reason,omitempty"`
	AppealedAt     *time.Time             `json:"appealed_at,omitempty"`
	RetentionUntil time.Time              `json:"retention_until"`
	Hash           string                 `json:"hash"`
}

// ComputeHash returns the SHA-256 of the package's canonical serialization.
// The hash field itself is excluded so any holder of the package can verify
// it: recompute over the remaining fields and compare with the stored value.
func ComputeHash(p *Package) (string, error) {
	// A map literal gives deterministic output: encoding/json sorts map keys.
	canonical := map[string]interface{}{
		"id":               p.ID,
		"incident_id":      p.IncidentID,
		"created_at":       p.CreatedAt,
		"events":           p.Events,
		"risk_assessment":  p.Assessment,
		"metadata":         p.Metadata,
		"chain_of_custody": p.ChainOfCustody,
		"status":           p.Status,
		"reviewer_id":      p.ReviewerID,
		"review_notes":     p.ReviewNotes,
		"appeal_reason":    p.AppealReason,
		"appealed_at":      p.AppealedAt,
		"retention_until":  p.RetentionUntil,
	}

	data, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("failed to serialize package for hashing: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyPackage recomputes the package hash and compares it with the stored
// value. A mismatch is the tamper signal; it proves unmodified-since-last-
// write state, not authorship.
func VerifyPackage(p *Package) error {
	computed, err := ComputeHash(p)
	if err != nil {
		return err
	}
	if computed != p.Hash {
		return ErrTamperSuspected
	}
	return nil
}

// clone returns a deep-enough copy for handing outside the manager lock.
// Nil and empty slices are preserved as-is: they serialize differently
// (null vs []), so collapsing one into the other would change the hash.
func (p *Package) clone() *Package {
	cp := *p
	if p.Events != nil {
		cp.Events = make([]detection.Event, len(p.Events))
		copy(cp.Events, p.Events)
	}
	if p.ChainOfCustody != nil {
		cp.ChainOfCustody = make([]CustodyEntry, len(p.ChainOfCustody))
		copy(cp.ChainOfCustody, p.ChainOfCustody)
	}
	if p.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
