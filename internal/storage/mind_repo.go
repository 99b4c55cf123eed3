package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_mind_store.go -package=mocks mindlink/internal/storage MindStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// timeFormat is the canonical timestamp encoding for all tables.
const timeFormat = time.RFC3339Nano

// MindStore defines the interface for mind storage operations.
type MindStore interface {
	// Create inserts a new mind with a generated id.
	Create(ctx context.Context, title string) (*MindRecord, error)
	// Get returns a mind by id. Returns ErrNotFound if missing.
	Get(ctx context.Context, id string) (*MindRecord, error)
	// List returns all minds ordered by most recently updated first.
	List(ctx context.Context) ([]*MindRecord, error)
	// UpdateMeta updates summary, narrative and tags in one statement.
	UpdateMeta(ctx context.Context, id, summary, narrative string, tags []string) error
	// Touch advances updated_at to now.
	Touch(ctx context.Context, id string) error
	// Delete removes the mind and all dependent rows in a single transaction.
	Delete(ctx context.Context, id string) error
}

// MindRepo provides methods for mind operations.
// It implements the MindStore interface.
type MindRepo struct {
	db *sql.DB
}

// NewMindRepo creates a new MindRepo.
func NewMindRepo(db *sql.DB) *MindRepo {
	return &MindRepo{db: db}
}

// Create inserts a new mind with a generated id.
func (r *MindRepo) Create(ctx context.Context, title string) (*MindRecord, error) {
	now := time.Now().UTC()
	rec := &MindRecord{
		ID:        uuid.New().String(),
		Title:     title,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO minds (id, title, summary, narrative, tags_json, created_at, updated_at)
		 VALUES (?, ?, '', '', '[]', ?, ?)`,
		rec.ID, rec.Title, now.Format(timeFormat), now.Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert mind: %w", err)
	}

	return rec, nil
}

// Get returns a mind by id. Returns ErrNotFound if missing.
func (r *MindRepo) Get(ctx context.Context, id string) (*MindRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, summary, narrative, tags_json, created_at, updated_at
		 FROM minds WHERE id = ?`, id)
	return scanMind(row)
}

// List returns all minds ordered by most recently updated first.
func (r *MindRepo) List(ctx context.Context) ([]*MindRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, summary, narrative, tags_json, created_at, updated_at
		 FROM minds ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query minds: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var minds []*MindRecord
	for rows.Next() {
		rec, err := scanMind(rows)
		if err != nil {
			return nil, err
		}
		minds = append(minds, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate minds: %w", err)
	}
	return minds, nil
}

// UpdateMeta updates summary, narrative and tags in one statement.
// Also advances updated_at.
func (r *MindRepo) UpdateMeta(ctx context.Context, id, summary, narrative string, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE minds SET summary = ?, narrative = ?, tags_json = ?, updated_at = ? WHERE id = ?`,
		summary, narrative, string(tagsJSON), time.Now().UTC().Format(timeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update mind meta: %w", err)
	}
	return requireRow(res)
}

// Touch advances updated_at to now.
func (r *MindRepo) Touch(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE minds SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(timeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("failed to touch mind: %w", err)
	}
	return requireRow(res)
}

// Delete removes the mind and all dependent rows in a single transaction.
// The explicit deletes make the cascade independent of the foreign_keys pragma.
func (r *MindRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range []string{
		`DELETE FROM feeds WHERE mind_id = ?`,
		`DELETE FROM crystals WHERE mind_id = ?`,
		`DELETE FROM chat_messages WHERE mind_id = ?`,
		`DELETE FROM mindmap_cache WHERE mind_id = ?`,
		`DELETE FROM outputs WHERE mind_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to cascade delete: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM minds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mind: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cascade delete: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanMind.
type scanner interface {
	Scan(dest ...any) error
}

func scanMind(s scanner) (*MindRecord, error) {
	var rec MindRecord
	var tagsJSON, createdAt, updatedAt string

	err := s.Scan(&rec.ID, &rec.Title, &rec.Summary, &rec.Narrative, &tagsJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan mind: %w", err)
	}

	if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
		return nil, fmt.Errorf("failed to parse tags: %w", err)
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeFormat, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", raw, err)
	}
	return t, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
