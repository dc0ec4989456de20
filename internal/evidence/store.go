package evidence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/database"
)

// Store persists evidence packages to SQLite. The manager's in-memory map
// stays authoritative; the store exists so packages survive restarts and are
// queryable outside the process.
type Store struct {
	db *database.DB
}

// NewStore creates an evidence store over an opened database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Save upserts one package. The full package travels as a JSON payload;
// indexed columns are duplicated for querying.
func (s *Store) Save(pkg *Package) error {
	payload, err := json.Marshal(pkg)
	if err != nil {
		return fmt.Errorf("failed to serialize package: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	archived := 0
	if pkg.Status == StatusArchived {
		archived = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evidence_packages
			(id, incident_id, status, classification, integrity_hash,
			 retention_until, created_at, updated_at, archived, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			integrity_hash = excluded.integrity_hash,
			retention_until = excluded.retention_until,
			updated_at = excluded.updated_at,
			archived = excluded.archived,
			payload = excluded.payload`,
		pkg.ID, pkg.IncidentID, string(pkg.Status), string(pkg.Assessment.Level),
		pkg.Hash, pkg.RetentionUntil.Unix(), pkg.CreatedAt.Unix(),
		time.Now().Unix(), archived, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save evidence package: %w", err)
	}
	return nil
}

// Load retrieves one package by id.
func (s *Store) Load(ctx context.Context, id string) (*Package, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM evidence_packages WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load evidence package: %w", err)
	}

	var pkg Package
	if err := json.Unmarshal([]byte(payload), &pkg); err != nil {
		return nil, fmt.Errorf("failed to decode evidence package: %w", err)
	}
	return &pkg, nil
}

// LoadAll returns every stored package, used to warm the manager at startup.
func (s *Store) LoadAll(ctx context.Context) ([]*Package, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM evidence_packages ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence packages: %w", err)
	}
	defer rows.Close()

	var packages []*Package
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var pkg Package
		if err := json.Unmarshal([]byte(payload), &pkg); err != nil {
			return nil, fmt.Errorf("failed to decode evidence package: %w", err)
		}
		packages = append(packages, &pkg)
	}
	return packages, rows.Err()
}
