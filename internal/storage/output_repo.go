package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutputStore defines the interface for expression-output records.
type OutputStore interface {
	// Add records one generated output.
	Add(ctx context.Context, mindID, instruction, result string) (*OutputRecord, error)
	// ListByMind returns a mind's outputs, newest first.
	ListByMind(ctx context.Context, mindID string) ([]*OutputRecord, error)
}

// OutputRepo provides methods for output operations.
// It implements the OutputStore interface.
type OutputRepo struct {
	db *sql.DB
}

// NewOutputRepo creates a new OutputRepo.
func NewOutputRepo(db *sql.DB) *OutputRepo {
	return &OutputRepo{db: db}
}

// Add records one generated output.
func (r *OutputRepo) Add(ctx context.Context, mindID, instruction, result string) (*OutputRecord, error) {
	rec := &OutputRecord{
		ID:          uuid.New().String(),
		MindID:      mindID,
		Instruction: instruction,
		Result:      result,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO outputs (id, mind_id, instruction, result, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.MindID, rec.Instruction, rec.Result, rec.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert output: %w", err)
	}
	return rec, nil
}

// ListByMind returns a mind's outputs, newest first.
func (r *OutputRepo) ListByMind(ctx context.Context, mindID string) ([]*OutputRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, mind_id, instruction, result, created_at
		 FROM outputs WHERE mind_id = ? ORDER BY created_at DESC, rowid DESC`, mindID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outputs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var outputs []*OutputRecord
	for rows.Next() {
		var rec OutputRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.MindID, &rec.Instruction, &rec.Result, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan output: %w", err)
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		outputs = append(outputs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outputs: %w", err)
	}
	return outputs, nil
}
