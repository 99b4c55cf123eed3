package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"mindlink/internal/contextutil"
	"mindlink/internal/crystal"
	"mindlink/internal/llm"
	"mindlink/internal/storage"
)

const mindmapMaxTokens = 4096

// Node is one node of a topic's mind-map tree.
type Node struct {
	Label    string  `json:"label"`
	Pending  bool    `json:"pending,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// MindmapView is a cached or freshly generated mind map.
type MindmapView struct {
	Tree        *Node
	FeedCount   int // number of fragments the tree was generated from
	GeneratedAt time.Time
	// Stale reports that fragments were added since generation. A stale tree
	// is still served; regeneration only happens on explicit request.
	Stale bool
}

// MindmapService extracts and caches a mind-map tree per topic.
type MindmapService struct {
	minds     storage.MindStore
	feeds     storage.FeedStore
	crystals  storage.CrystalStore
	mindmaps  storage.MindmapStore
	completer Completer
	group     singleflight.Group
}

// NewMindmapService creates a MindmapService.
func NewMindmapService(minds storage.MindStore, feeds storage.FeedStore, crystals storage.CrystalStore, mindmaps storage.MindmapStore, completer Completer) *MindmapService {
	return &MindmapService{
		minds:     minds,
		feeds:     feeds,
		crystals:  crystals,
		mindmaps:  mindmaps,
		completer: completer,
	}
}

// Get returns the cached tree without ever generating one. ErrNotFound means
// no tree has been generated for the topic yet.
func (s *MindmapService) Get(ctx context.Context, mindID string) (*MindmapView, error) {
	if _, err := s.minds.Get(ctx, mindID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, WrapError(err, "failed to get mind")
	}

	rec, err := s.mindmaps.Get(ctx, mindID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, WrapError(err, "failed to load mindmap cache")
	}

	count, err := s.feeds.CountByMind(ctx, mindID)
	if err != nil {
		return nil, WrapError(err, "failed to count fragments")
	}

	var tree Node
	if err := json.Unmarshal(rec.TreeJSON, &tree); err != nil {
		return nil, WrapError(err, "cached mindmap is corrupt")
	}

	return &MindmapView{
		Tree:        &tree,
		FeedCount:   rec.FeedCount,
		GeneratedAt: rec.GeneratedAt,
		Stale:       count != rec.FeedCount,
	}, nil
}

// Regenerate builds a fresh tree and replaces the cache. Concurrent requests
// for the same topic collapse into one generation; every caller gets the
// same result.
func (s *MindmapService) Regenerate(ctx context.Context, mindID string) (*MindmapView, error) {
	// The collapsed generation outlives whichever caller started it; it must
	// not die with that caller's context, and a started run commits its cache.
	genCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(mindID, func() (any, error) {
		return s.regenerate(genCtx, mindID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*MindmapView), nil
}

func (s *MindmapService) regenerate(ctx context.Context, mindID string) (*MindmapView, error) {
	logger := contextutil.LoggerFromContext(ctx)

	mind, err := s.minds.Get(ctx, mindID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, WrapError(err, "failed to get mind")
	}

	feeds, err := s.feeds.ListByMind(ctx, mindID)
	if err != nil {
		return nil, WrapError(err, "failed to list fragments")
	}
	if len(feeds) == 0 {
		return nil, &ValidationError{Field: "topic", Message: "topic has no notes to map yet"}
	}
	// Counted before generation; fragments arriving while the model runs
	// make the fresh tree immediately stale, which is the honest answer.
	feedCount := len(feeds)

	c, err := s.loadCrystal(ctx, mindID)
	if err != nil {
		return nil, err
	}

	user, err := buildMindmapUser(mind.Title, c, feeds)
	if err != nil {
		return nil, err
	}

	raw, err := s.completer.Complete(ctx, []llm.Message{
		{Role: "system", Content: mindmapSystemPrompt},
		{Role: "user", Content: user},
	}, llm.CompleteOptions{Effort: llm.EffortMedium, MaxOutputTokens: mindmapMaxTokens})
	if err != nil {
		return nil, &GenerationError{Op: "mindmap", Err: err}
	}

	data, err := crystal.ExtractJSON(raw)
	if err != nil {
		return nil, &GenerationError{Op: "mindmap", Err: err}
	}
	var tree Node
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, &GenerationError{Op: "mindmap", Err: WrapError(err, "malformed mindmap reply")}
	}
	if tree.Label == "" && len(tree.Children) == 0 {
		return nil, &GenerationError{Op: "mindmap", Err: errors.New("model returned an empty tree")}
	}
	// The root is always the topic itself, whatever the model called it.
	tree.Label = mind.Title

	treeJSON, err := json.Marshal(&tree)
	if err != nil {
		return nil, WrapError(err, "failed to encode mindmap")
	}

	if err := s.mindmaps.Put(ctx, mindID, treeJSON, feedCount); err != nil {
		return nil, WrapError(err, "failed to cache mindmap")
	}

	now := time.Now().UTC()
	logger.InfoContext(ctx, "mindmap regenerated", "mind_id", mindID, "feed_count", feedCount)
	return &MindmapView{
		Tree:        &tree,
		FeedCount:   feedCount,
		GeneratedAt: now,
		Stale:       false,
	}, nil
}

func (s *MindmapService) loadCrystal(ctx context.Context, mindID string) (*crystal.Crystal, error) {
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
