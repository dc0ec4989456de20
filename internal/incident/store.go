package incident

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/database"
)

// Store persists incidents to SQLite best-effort; the orchestrator's
// in-memory map stays authoritative.
type Store struct {
	db *database.DB
}

// NewStore creates an incident store over an opened database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Save upserts one incident.
func (s *Store) Save(inc *Incident) error {
	payload, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("failed to serialize incident: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO incidents
			(id, camera_id, incident_type, severity, status, risk_score,
			 created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			severity = excluded.severity,
			status = excluded.status,
			risk_score = excluded.risk_score,
			updated_at = excluded.updated_at,
			payload = excluded.payload`,
		inc.ID, inc.CameraID, string(inc.Type), string(inc.Severity),
		string(inc.Status), inc.Assessment.Score,
		inc.CreatedAt.Unix(), inc.UpdatedAt.Unix(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save incident: %w", err)
	}
	return nil
}

// LoadAll returns every stored incident.
func (s *Store) LoadAll(ctx context.Context) ([]*Incident, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM incidents ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*Incident
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var inc Incident
		if err := json.Unmarshal([]byte(payload), &inc); err != nil {
			return nil, fmt.Errorf("failed to decode incident: %w", err)
		}
		incidents = append(incidents, &inc)
	}
	return incidents, rows.Err()
}
