package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"mindlink/internal/contextutil"
	"mindlink/internal/crystal"
	"mindlink/internal/llm"
	"mindlink/internal/storage"
)

const (
	// maxSummaryLength bounds the one-line topic status.
	maxSummaryLength = 30
	// maxNarrativeTags bounds the tag set.
	maxNarrativeTags = 5

	narrativeMaxTokens = 4096
)

// NarrativeResult is one narrative pass over a topic.
type NarrativeResult struct {
	Narrative string
	Summary   string
	Tags      []string
	// SummaryChanged and TagsChanged are computed locally by comparing the
	// new values with the previously stored ones, never taken from the model.
	SummaryChanged bool
	TagsChanged    bool
}

// NarrativeService turns a topic's fragments into a flowing narrative with a
// short status line and tags.
type NarrativeService struct {
	minds     storage.MindStore
	feeds     storage.FeedStore
	crystals  storage.CrystalStore
	completer Completer
}

// NewNarrativeService creates a NarrativeService.
func NewNarrativeService(minds storage.MindStore, feeds storage.FeedStore, crystals storage.CrystalStore, completer Completer) *NarrativeService {
	return &NarrativeService{
		minds:     minds,
		feeds:     feeds,
		crystals:  crystals,
		completer: completer,
	}
}

// Generate runs one narrative pass. Summary and tags are persisted on the
// mind only after the whole pass succeeds; a failed pass leaves the stored
// metadata untouched.
func (s *NarrativeService) Generate(ctx context.Context, mindID string) (*NarrativeResult, error) {
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
		// Nothing to narrate; no completion call, no metadata update.
		return &NarrativeResult{
			Narrative: "This topic has no notes yet.",
			Summary:   mind.Summary,
			Tags:      mind.Tags,
		}, nil
	}

	c, err := s.loadCrystal(ctx, mindID)
	if err != nil {
		return nil, err
	}

	user, err := buildNarrativeUser(mind.Title, c, feeds)
	if err != nil {
		return nil, err
	}

	raw, err := s.completer.Complete(ctx, []llm.Message{
		{Role: "system", Content: narrativeSystemPrompt},
		{Role: "user", Content: user},
	}, llm.CompleteOptions{Effort: llm.EffortMedium, MaxOutputTokens: narrativeMaxTokens})
	if err != nil {
		return nil, &GenerationError{Op: "narrative", Err: err}
	}

	data, err := crystal.ExtractJSON(raw)
	if err != nil {
		return nil, &GenerationError{Op: "narrative", Err: err}
	}
	var reply narrativeReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, &GenerationError{Op: "narrative", Err: WrapError(err, "malformed narrative reply")}
	}
	if strings.TrimSpace(reply.Narrative) == "" {
		return nil, &GenerationError{Op: "narrative", Err: errors.New("model returned an empty narrative")}
	}

	summary := clampSummary(reply.Summary)
	tags := clampTags(reply.Tags)

	result := &NarrativeResult{
		Narrative:      strings.TrimSpace(reply.Narrative),
		Summary:        summary,
		Tags:           tags,
		SummaryChanged: !sameText(summary, mind.Summary),
		TagsChanged:    !sameTags(tags, mind.Tags),
	}

	if err := s.minds.UpdateMeta(ctx, mindID, summary, result.Narrative, tags); err != nil {
		return nil, WrapError(err, "failed to store narrative")
	}

	logger.InfoContext(ctx, "narrative generated", "mind_id", mindID,
		"summary_changed", result.SummaryChanged, "tags_changed", result.TagsChanged)
	return result, nil
}

func (s *NarrativeService) loadCrystal(ctx context.Context, mindID string) (*crystal.Crystal, error) {
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

// clampSummary trims the status line to its length bound, cutting on rune
// boundaries.
func clampSummary(summary string) string {
	summary = strings.TrimSpace(summary)
	if utf8.RuneCountInString(summary) <= maxSummaryLength {
		return summary
	}
	runes := []rune(summary)
	return strings.TrimSpace(string(runes[:maxSummaryLength]))
}

// clampTags lowercases, trims and bounds the tag set, preserving order.
func clampTags(tags []string) []string {
	out := make([]string, 0, maxNarrativeTags)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		duplicate := false
		for _, seen := range out {
			if seen == t {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		out = append(out, t)
		if len(out) == maxNarrativeTags {
			break
		}
	}
	return out
}

func sameText(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func sameTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameText(a[i], b[i]) {
			return false
		}
	}
	return true
}
