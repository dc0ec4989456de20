// Package audit provides the append-only audit trail shared by the evidence
// and milestone managers. Entries are immutable once recorded.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/database"
)

// Entry is one audit record
type Entry struct {
	ID         string                 `json:"id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Actor      string                 `json:"actor"`
	EventType  string                 `json:"event_type"`
	SubjectID  string                 `json:"subject_id,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Log records audit entries in memory and persists them best-effort to the
// database when one is attached. The in-memory list is authoritative for the
// lifetime of the process.
type Log struct {
	mu      sync.RWMutex
	entries []Entry

	db     *database.DB
	logger *slog.Logger
}

// NewLog creates an audit log. db may be nil for in-memory-only operation.
func NewLog(db *database.DB) *Log {
	return &Log{
		db:     db,
		logger: slog.Default().With("component", "audit"),
	}
}

// Record appends an entry and returns it with id and timestamp filled in.
func (l *Log) Record(actor, eventType, subjectID string, data map[string]interface{}) Entry {
	entry := Entry{
		ID:         uuid.New().String(),
		OccurredAt: time.Now().UTC(),
		Actor:      actor,
		EventType:  eventType,
		SubjectID:  subjectID,
		Data:       data,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	if l.db != nil {
		if err := l.persist(entry); err != nil {
			l.logger.Warn("Failed to persist audit entry", "entry_id", entry.ID, "error", err)
		}
	}

	return entry
}

// Entries returns a snapshot of all recorded entries in order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// EntriesFor returns the entries recorded against one subject, in order.
func (l *Log) EntriesFor(subjectID string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for _, e := range l.entries {
		if e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	return out
}

func (l *Log) persist(entry Entry) error {
	var data []byte
	if entry.Data != nil {
		var err error
		if data, err = json.Marshal(entry.Data); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, occurred_at, actor, event_type, subject_id, data)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OccurredAt.Unix(), entry.Actor, entry.EventType,
		entry.SubjectID, string(data),
	)
	return err
}
