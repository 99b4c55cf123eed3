package service

import (
	"context"
	"errors"
	"strings"

	"mindlink/internal/contextutil"
	"mindlink/internal/crystal"
	"mindlink/internal/llm"
	"mindlink/internal/storage"
)

const expressionMaxTokens = 4096

// ExpressionService produces shareable text from a topic's material on an
// explicit instruction. Each call is stateless with respect to the topic's
// document; only an Output record is written.
type ExpressionService struct {
	minds     storage.MindStore
	feeds     storage.FeedStore
	crystals  storage.CrystalStore
	outputs   storage.OutputStore
	completer Completer
}

// NewExpressionService creates an ExpressionService.
func NewExpressionService(minds storage.MindStore, feeds storage.FeedStore, crystals storage.CrystalStore, outputs storage.OutputStore, completer Completer) *ExpressionService {
	return &ExpressionService{
		minds:     minds,
		feeds:     feeds,
		crystals:  crystals,
		outputs:   outputs,
		completer: completer,
	}
}

// Generate produces one expression for the instruction and records it.
// An empty instruction fails validation before anything external is called.
func (s *ExpressionService) Generate(ctx context.Context, mindID, instruction string) (*storage.OutputRecord, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, &ValidationError{Field: "instruction", Message: "instruction is required"}
	}

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
		return nil, &ValidationError{Field: "topic", Message: "topic has no notes to express yet"}
	}

	c, err := s.loadCrystal(ctx, mindID)
	if err != nil {
		return nil, err
	}

	user, err := buildExpressionUser(mind.Title, instruction, c, feeds)
	if err != nil {
		return nil, err
	}

	raw, err := s.completer.Complete(ctx, []llm.Message{
		{Role: "system", Content: expressionSystemPrompt},
		{Role: "user", Content: user},
	}, llm.CompleteOptions{Effort: llm.EffortMedium, MaxOutputTokens: expressionMaxTokens})
	if err != nil {
		return nil, &GenerationError{Op: "expression", Err: err}
	}
	result := strings.TrimSpace(raw)
	if result == "" {
		return nil, &GenerationError{Op: "expression", Err: errors.New("model returned an empty expression")}
	}

	rec, err := s.outputs.Add(ctx, mindID, instruction, result)
	if err != nil {
		return nil, WrapError(err, "failed to record output")
	}

	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "expression generated",
		"mind_id", mindID, "output_id", rec.ID)
	return rec, nil
}

// ListOutputs returns a topic's recorded expressions, newest first.
func (s *ExpressionService) ListOutputs(ctx context.Context, mindID string) ([]*storage.OutputRecord, error) {
	if _, err := s.minds.Get(ctx, mindID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, WrapError(err, "failed to get mind")
	}
	outputs, err := s.outputs.ListByMind(ctx, mindID)
	if err != nil {
		return nil, WrapError(err, "failed to list outputs")
	}
	return outputs, nil
}

func (s *ExpressionService) loadCrystal(ctx context.Context, mindID string) (*crystal.Crystal, error) {
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
