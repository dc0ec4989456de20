package milestone

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/database"
)

// Store persists milestones to SQLite. Best-effort; the manager's in-memory
// map remains authoritative.
type Store struct {
	db *database.DB
}

// NewStore creates a milestone store over an opened database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Save upserts one milestone.
func (s *Store) Save(ms *Milestone) error {
	payload, err := json.Marshal(ms)
	if err != nil {
		return fmt.Errorf("failed to serialize milestone: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO milestones
			(id, milestone_type, status, assigned_to, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			assigned_to = excluded.assigned_to,
			updated_at = excluded.updated_at,
			payload = excluded.payload`,
		ms.ID, string(ms.Type), string(ms.Status), ms.AssignedTo,
		ms.CreatedAt.Unix(), ms.UpdatedAt.Unix(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save milestone: %w", err)
	}
	return nil
}

// Delete removes one milestone row.
func (s *Store) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM milestones WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete milestone: %w", err)
	}
	return nil
}

// LoadAll returns every stored milestone.
func (s *Store) LoadAll(ctx context.Context) ([]*Milestone, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM milestones ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query milestones: %w", err)
	}
	defer rows.Close()

	var milestones []*Milestone
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ms Milestone
		if err := json.Unmarshal([]byte(payload), &ms); err != nil {
			return nil, fmt.Errorf("failed to decode milestone: %w", err)
		}
		milestones = append(milestones, &ms)
	}
	return milestones, rows.Err()
}
