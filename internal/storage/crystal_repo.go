package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CrystalStore defines the interface for structured-document storage.
type CrystalStore interface {
	// Get returns the crystal of a mind. Returns ErrNotFound when the mind has
	// no crystal yet (no feed has been successfully reconciled).
	Get(ctx context.Context, mindID string) (*CrystalRecord, error)
	// Put inserts or replaces the crystal of a mind.
	Put(ctx context.Context, mindID string, data []byte) error
}

// CrystalRepo provides methods for crystal operations.
// It implements the CrystalStore interface.
type CrystalRepo struct {
	db *sql.DB
}

// NewCrystalRepo creates a new CrystalRepo.
func NewCrystalRepo(db *sql.DB) *CrystalRepo {
	return &CrystalRepo{db: db}
}

// Get returns the crystal of a mind. Returns ErrNotFound if missing.
func (r *CrystalRepo) Get(ctx context.Context, mindID string) (*CrystalRecord, error) {
	var rec CrystalRecord
	var data string
	var updatedAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT mind_id, data, updated_at FROM crystals WHERE mind_id = ?`, mindID,
	).Scan(&rec.MindID, &data, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query crystal: %w", err)
	}

	rec.Data = []byte(data)
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Put inserts or replaces the crystal of a mind.
func (r *CrystalRepo) Put(ctx context.Context, mindID string, data []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO crystals (mind_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (mind_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		mindID, string(data), time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to put crystal: %w", err)
	}
	return nil
}
