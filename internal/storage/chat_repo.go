package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ChatStore defines the interface for per-mind conversation history.
type ChatStore interface {
	// Append records one message at the end of the mind's history.
	Append(ctx context.Context, mindID, role, content string) (*ChatMessageRecord, error)
	// ListByMind returns the history oldest first.
	ListByMind(ctx context.Context, mindID string) ([]*ChatMessageRecord, error)
	// Recent returns the last n messages, oldest first.
	Recent(ctx context.Context, mindID string, n int) ([]*ChatMessageRecord, error)
	// Clear removes the mind's entire history.
	Clear(ctx context.Context, mindID string) error
}

// ChatRepo provides methods for chat history operations.
// It implements the ChatStore interface.
type ChatRepo struct {
	db *sql.DB
}

// NewChatRepo creates a new ChatRepo.
func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// Append records one message at the end of the mind's history.
func (r *ChatRepo) Append(ctx context.Context, mindID, role, content string) (*ChatMessageRecord, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_messages (mind_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		mindID, role, content, now.Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get chat message id: %w", err)
	}
	return &ChatMessageRecord{
		ID:        id,
		MindID:    mindID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}, nil
}

// ListByMind returns the history oldest first.
func (r *ChatRepo) ListByMind(ctx context.Context, mindID string) ([]*ChatMessageRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, mind_id, role, content, created_at
		 FROM chat_messages WHERE mind_id = ? ORDER BY id ASC`, mindID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	return collectChatMessages(rows)
}

// Recent returns the last n messages, oldest first.
func (r *ChatRepo) Recent(ctx context.Context, mindID string, n int) ([]*ChatMessageRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, mind_id, role, content, created_at FROM (
			SELECT id, mind_id, role, content, created_at
			FROM chat_messages WHERE mind_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`, mindID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent chat messages: %w", err)
	}
	return collectChatMessages(rows)
}

// Clear removes the mind's entire history.
func (r *ChatRepo) Clear(ctx context.Context, mindID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE mind_id = ?`, mindID); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}

func collectChatMessages(rows *sql.Rows) ([]*ChatMessageRecord, error) {
	defer func() {
		_ = rows.Close()
	}()

	var messages []*ChatMessageRecord
	for rows.Next() {
		var rec ChatMessageRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.MindID, &rec.Role, &rec.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		rec.CreatedAt = t
		messages = append(messages, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat messages: %w", err)
	}
	return messages, nil
}
