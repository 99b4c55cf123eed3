package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"mindlink/internal/contextutil"
	"mindlink/internal/crystal"
	"mindlink/internal/storage"
)

// maxTitleLength bounds topic titles.
const maxTitleLength = 120

// MindService manages the topic registry.
type MindService struct {
	minds    storage.MindStore
	crystals storage.CrystalStore
	dedup    *crystal.DedupIndex // nil when the semantic index is disabled
}

// NewMindService creates a MindService.
// dedup may be nil; topic deletion then has no vector index to purge.
func NewMindService(minds storage.MindStore, crystals storage.CrystalStore, dedup *crystal.DedupIndex) *MindService {
	return &MindService{
		minds:    minds,
		crystals: crystals,
		dedup:    dedup,
	}
}

// Create registers a new topic.
func (s *MindService) Create(ctx context.Context, title string) (*storage.MindRecord, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &ValidationError{Field: "title", Message: "title is required"}
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, &ValidationError{Field: "title", Message: "title is too long"}
	}

	mind, err := s.minds.Create(ctx, title)
	if err != nil {
		return nil, WrapError(err, "failed to create mind")
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "mind created", "mind_id", mind.ID, "title", title)
	return mind, nil
}

// List returns all topics, most recently updated first.
func (s *MindService) List(ctx context.Context) ([]*storage.MindRecord, error) {
	minds, err := s.minds.List(ctx)
	if err != nil {
		return nil, WrapError(err, "failed to list minds")
	}
	return minds, nil
}

// Get returns one topic by id.
func (s *MindService) Get(ctx context.Context, id string) (*storage.MindRecord, error) {
	mind, err := s.minds.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, WrapError(err, "failed to get mind")
	}
	return mind, nil
}

// Delete removes a topic and everything derived from it. After it returns
// successfully no trace of the topic remains, and re-creating a topic with
// the same title starts from scratch.
func (s *MindService) Delete(ctx context.Context, id string) error {
	logger := contextutil.LoggerFromContext(ctx)

	err := s.minds.Delete(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return WrapError(err, "failed to delete mind")
	}

	// The vector index lives outside the sqlite transaction. Purge it best
	// effort; leftover points are filtered by mind_id and never resurface.
	if s.dedup != nil {
		if err := s.dedup.Purge(ctx, id); err != nil {
			logger.WarnContext(ctx, "failed to purge bullet index", "mind_id", id, "error", err)
		}
	}

	logger.InfoContext(ctx, "mind deleted", "mind_id", id)
	return nil
}

// Document is a topic's structured overview at a point in time.
type Document struct {
	MindID    string
	Title     string
	Crystal   *crystal.Crystal
	UpdatedAt time.Time
}

// GetDocument returns the topic's structured document. A topic with no
// successfully reconciled fragment yet gets an empty document rather than an
// error.
func (s *MindService) GetDocument(ctx context.Context, id string) (*Document, error) {
	mind, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		MindID:    mind.ID,
		Title:     mind.Title,
		Crystal:   crystal.New(),
		UpdatedAt: mind.UpdatedAt,
	}

	rec, err := s.crystals.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return doc, nil
	}
	if err != nil {
		return nil, WrapError(err, "failed to load crystal")
	}

	c, err := crystal.Parse(rec.Data)
	if err != nil {
		return nil, WrapError(err, "stored crystal is corrupt")
	}
	doc.Crystal = c
	doc.UpdatedAt = rec.UpdatedAt
	return doc, nil
}
