package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_reconciler.go -package=mocks mindlink/internal/service Reconciler

import (
	"context"
	"errors"
	"sort"
	"strings"

	"mindlink/internal/contextutil"
	"mindlink/internal/crystal"
	"mindlink/internal/storage"
)

// Reconciler merges one fragment into a topic's structured document.
// This interface is defined from the service layer's perspective; it is
// satisfied by *crystal.Engine.
type Reconciler interface {
	Reconcile(ctx context.Context, req crystal.ReconcileRequest) (*crystal.ReconcileResult, error)
}

// SubmitResult reports the outcome of one fragment submission. The fragment
// itself is always durable by the time a SubmitResult exists; only the
// reconciliation outcome varies.
type SubmitResult struct {
	Feed          *storage.FeedRecord
	Effect        crystal.Effect
	Changed       bool
	ChangeSummary string
	// CleanedContent mirrors what was stored on the feed record, so callers
	// see the de-noised rendition without a re-read.
	CleanedContent string
	// ReconcileErr is non-nil when the fragment was stored but the document
	// could not be updated. The submission may be retried by re-submitting
	// identical content; the duplicate collapses as noise once the first
	// retry succeeds.
	ReconcileErr error
}

// FeedService manages fragments and drives reconciliation.
type FeedService struct {
	minds    storage.MindStore
	feeds    storage.FeedStore
	crystals storage.CrystalStore
	engine   Reconciler
	locks    *keyedLocks
}

// NewFeedService creates a FeedService.
func NewFeedService(minds storage.MindStore, feeds storage.FeedStore, crystals storage.CrystalStore, engine Reconciler) *FeedService {
	return &FeedService{
		minds:    minds,
		feeds:    feeds,
		crystals: crystals,
		engine:   engine,
		locks:    newKeyedLocks(),
	}
}

// Submit stores a fragment and synchronously reconciles it into the topic's
// document. The fragment is durable before reconciliation starts; a
// reconciliation failure is reported in the result, never by dropping the
// fragment. Returns ErrBusy when ctx expires before the topic's queue is
// entered; nothing is stored in that case.
func (s *FeedService) Submit(ctx context.Context, mindID, content string) (*SubmitResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &ValidationError{Field: "content", Message: "content is required"}
	}

	mind, err := s.minds.Get(ctx, mindID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, WrapError(err, "failed to get mind")
	}

	// The lock is taken before the append so fragments reconcile in append
	// order. A queue timeout stores nothing and the whole request retries.
	if err := s.locks.Lock(ctx, mindID); err != nil {
		return nil, err
	}
	defer s.locks.Unlock(mindID)

	feed, err := s.feeds.Append(ctx, mindID, content)
	if err != nil {
		return nil, WrapError(err, "failed to store fragment")
	}
	// updated_at advances on every append, not only when the document changes.
	if err := s.minds.Touch(ctx, mindID); err != nil {
		logger.WarnContext(ctx, "failed to touch mind", "mind_id", mindID, "error", err)
	}

	res := &SubmitResult{Feed: feed}

	existing, err := s.loadCrystal(ctx, mindID)
	if err != nil {
		res.ReconcileErr = err
		return res, nil
	}

	outcome, err := s.engine.Reconcile(ctx, crystal.ReconcileRequest{
		MindID:   mindID,
		Title:    mind.Title,
		Existing: existing,
		Fragment: content,
	})
	if err != nil {
		logger.WarnContext(ctx, "reconciliation failed, fragment kept",
			"mind_id", mindID, "feed_id", feed.ID, "error", err)
		res.ReconcileErr = err
		return res, nil
	}

	res.Effect = outcome.Effect
	res.Changed = outcome.Changed
	res.ChangeSummary = outcome.ChangeSummary
	res.CleanedContent = outcome.CleanedContent

	// The completion already happened; commit its result even if the caller
	// has gone away.
	commitCtx := context.WithoutCancel(ctx)

	if outcome.CleanedContent != "" {
		if err := s.feeds.SetCleaned(commitCtx, feed.ID, outcome.CleanedContent); err != nil {
			logger.WarnContext(ctx, "failed to store cleaned content", "feed_id", feed.ID, "error", err)
		}
	}

	if outcome.Changed {
		data, err := outcome.Crystal.Marshal()
		if err != nil {
			res.ReconcileErr = WrapError(err, "failed to encode crystal")
			return res, nil
		}
		if err := s.crystals.Put(commitCtx, mindID, data); err != nil {
			res.ReconcileErr = WrapError(err, "failed to store crystal")
			return res, nil
		}
		if err := s.minds.Touch(commitCtx, mindID); err != nil {
			logger.WarnContext(ctx, "failed to touch mind", "mind_id", mindID, "error", err)
		}
	}

	return res, nil
}

// List returns a topic's fragments in timeline order, oldest first.
func (s *FeedService) List(ctx context.Context, mindID string) ([]*storage.FeedRecord, error) {
	if _, err := s.minds.Get(ctx, mindID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, WrapError(err, "failed to get mind")
	}
	feeds, err := s.feeds.ListByMind(ctx, mindID)
	if err != nil {
		return nil, WrapError(err, "failed to list fragments")
	}
	return feeds, nil
}

// Update replaces a fragment's raw content. The stored document is not
// re-derived; the edit only affects future narrative and chat grounding.
func (s *FeedService) Update(ctx context.Context, feedID, content string) (*storage.FeedRecord, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &ValidationError{Field: "content", Message: "content is required"}
	}

	if err := s.feeds.UpdateContent(ctx, feedID, content); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, WrapError(err, "failed to update fragment")
	}

	feed, err := s.feeds.Get(ctx, feedID)
	if err != nil {
		return nil, WrapError(err, "failed to reload fragment")
	}
	return feed, nil
}

// Delete removes a single fragment. Knowledge already merged into the
// document stays; deletion only edits the timeline.
func (s *FeedService) Delete(ctx context.Context, feedID string) error {
	err := s.feeds.Delete(ctx, feedID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return WrapError(err, "failed to delete fragment")
	}
	return nil
}

// TimelineDay groups a calendar day's fragments, newest first.
type TimelineDay struct {
	Date  string // YYYY-MM-DD, UTC
	Feeds []*storage.FeedRecord
}

// Timeline returns a topic's fragments grouped by calendar day, newest day
// first and newest fragment first within each day.
func (s *FeedService) Timeline(ctx context.Context, mindID string) ([]*TimelineDay, error) {
	feeds, err := s.List(ctx, mindID)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string][]*storage.FeedRecord)
	for _, f := range feeds {
		day := f.CreatedAt.UTC().Format("2006-01-02")
		byDay[day] = append(byDay[day], f)
	}

	days := make([]*TimelineDay, 0, len(byDay))
	for date, items := range byDay {
		sort.Slice(items, func(i, j int) bool {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		})
		days = append(days, &TimelineDay{Date: date, Feeds: items})
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date > days[j].Date
	})
	return days, nil
}

// loadCrystal returns the topic's current document, or nil when no fragment
// has been reconciled yet.
func (s *FeedService) loadCrystal(ctx context.Context, mindID string) (*crystal.Crystal, error) {
	rec, err := s.crystals.Get(ctx, mindID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapError(err, "failed to load crystal")
	}
	c, err := crystal.Parse(rec.Data)
	if err != nil {
		return nil, WrapError(err, "stored crystal is corrupt")
	}
	return c, nil
}
