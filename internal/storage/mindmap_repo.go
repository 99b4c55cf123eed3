package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MindmapStore defines the interface for mind-map cache records.
type MindmapStore interface {
	// Get returns the cached tree for a mind. Returns ErrNotFound if absent.
	Get(ctx context.Context, mindID string) (*MindmapRecord, error)
	// Put inserts or replaces the cached tree for a mind.
	Put(ctx context.Context, mindID string, treeJSON []byte, feedCount int) error
}

// MindmapRepo provides methods for mind-map cache operations.
// It implements the MindmapStore interface.
type MindmapRepo struct {
	db *sql.DB
}

// NewMindmapRepo creates a new MindmapRepo.
func NewMindmapRepo(db *sql.DB) *MindmapRepo {
	return &MindmapRepo{db: db}
}

// Get returns the cached tree for a mind. Returns ErrNotFound if absent.
func (r *MindmapRepo) Get(ctx context.Context, mindID string) (*MindmapRecord, error) {
	var rec MindmapRecord
	var treeJSON, generatedAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT mind_id, tree_json, feed_count, generated_at FROM mindmap_cache WHERE mind_id = ?`,
		mindID,
	).Scan(&rec.MindID, &treeJSON, &rec.FeedCount, &generatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query mindmap cache: %w", err)
	}

	rec.TreeJSON = []byte(treeJSON)
	if rec.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Put inserts or replaces the cached tree for a mind.
func (r *MindmapRepo) Put(ctx context.Context, mindID string, treeJSON []byte, feedCount int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mindmap_cache (mind_id, tree_json, feed_count, generated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (mind_id) DO UPDATE SET
		 tree_json = excluded.tree_json, feed_count = excluded.feed_count, generated_at = excluded.generated_at`,
		mindID, string(treeJSON), feedCount, time.Now().UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to put mindmap cache: %w", err)
	}
	return nil
}
