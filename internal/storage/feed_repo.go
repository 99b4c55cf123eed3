package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_feed_store.go -package=mocks mindlink/internal/storage FeedStore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FeedStore defines the interface for feed (fragment) storage operations.
type FeedStore interface {
	// Append durably records a new feed for a mind.
	Append(ctx context.Context, mindID, content string) (*FeedRecord, error)
	// Get returns a single feed by id. Returns ErrNotFound if missing.
	Get(ctx context.Context, id string) (*FeedRecord, error)
	// ListByMind returns all feeds of a mind in timeline order (oldest first).
	ListByMind(ctx context.Context, mindID string) ([]*FeedRecord, error)
	// CountByMind returns the number of feeds of a mind.
	CountByMind(ctx context.Context, mindID string) (int, error)
	// UpdateContent replaces the raw content of a feed.
	UpdateContent(ctx context.Context, id, content string) error
	// SetCleaned stores the de-noised rendition produced by reconciliation.
	SetCleaned(ctx context.Context, id, cleaned string) error
	// Delete removes a single feed.
	Delete(ctx context.Context, id string) error
}

// FeedRepo provides methods for feed operations.
// It implements the FeedStore interface.
type FeedRepo struct {
	db *sql.DB
}

// NewFeedRepo creates a new FeedRepo.
func NewFeedRepo(db *sql.DB) *FeedRepo {
	return &FeedRepo{db: db}
}

// Append durably records a new feed for a mind.
// Returns ErrNotFound when the mind does not exist.
func (r *FeedRepo) Append(ctx context.Context, mindID, content string) (*FeedRecord, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM minds WHERE id = ?`, mindID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check mind: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	rec := &FeedRecord{
		ID:        uuid.New().String(),
		MindID:    mindID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO feeds (id, mind_id, content, cleaned_content, created_at) VALUES (?, ?, ?, '', ?)`,
		rec.ID, rec.MindID, rec.Content, rec.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert feed: %w", err)
	}
	return rec, nil
}

// Get returns a single feed by id. Returns ErrNotFound if missing.
func (r *FeedRepo) Get(ctx context.Context, id string) (*FeedRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, mind_id, content, cleaned_content, created_at FROM feeds WHERE id = ?`, id)
	return scanFeed(row)
}

// ListByMind returns all feeds of a mind in timeline order (oldest first).
// The rowid tiebreak keeps ordering stable for same-timestamp inserts.
func (r *FeedRepo) ListByMind(ctx context.Context, mindID string) ([]*FeedRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, mind_id, content, cleaned_content, created_at
		 FROM feeds WHERE mind_id = ? ORDER BY created_at ASC, rowid ASC`, mindID)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var feeds []*FeedRecord
	for rows.Next() {
		rec, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feeds: %w", err)
	}
	return feeds, nil
}

// CountByMind returns the number of feeds of a mind.
func (r *FeedRepo) CountByMind(ctx context.Context, mindID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM feeds WHERE mind_id = ?`, mindID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count feeds: %w", err)
	}
	return count, nil
}

// UpdateContent replaces the raw content of a feed.
// The de-noised rendition is reset; it belongs to the previous content.
func (r *FeedRepo) UpdateContent(ctx context.Context, id, content string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET content = ?, cleaned_content = '' WHERE id = ?`, content, id)
	if err != nil {
		return fmt.Errorf("failed to update feed: %w", err)
	}
	return requireRow(res)
}

// SetCleaned stores the de-noised rendition produced by reconciliation.
func (r *FeedRepo) SetCleaned(ctx context.Context, id, cleaned string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET cleaned_content = ? WHERE id = ?`, cleaned, id)
	if err != nil {
		return fmt.Errorf("failed to set cleaned content: %w", err)
	}
	return requireRow(res)
}

// Delete removes a single feed.
func (r *FeedRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	return requireRow(res)
}

func scanFeed(s scanner) (*FeedRecord, error) {
	var rec FeedRecord
	var createdAt string

	err := s.Scan(&rec.ID, &rec.MindID, &rec.Content, &rec.CleanedContent, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan feed: %w", err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
