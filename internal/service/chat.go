package service

import (
	"context"
	"errors"
	"strings"

	"mindlink/internal/config"
	"mindlink/internal/contextutil"
	"mindlink/internal/crystal"
	"mindlink/internal/llm"
	"mindlink/internal/storage"
)

const (
	// chatHistoryWindow bounds how many stored messages ground a reply.
	chatHistoryWindow = 20
	// chatFeedWindow bounds how many recent fragments ground a reply.
	chatFeedWindow = 100

	chatMaxTokens = 4096

	roleUser      = "user"
	roleAssistant = "assistant"
)

// ChatReply is one assistant answer with the model and style that produced it.
type ChatReply struct {
	Message *storage.ChatMessageRecord
	Model   config.ModelInfo
	Style   config.StyleInfo
}

// ChatService runs per-topic conversations grounded in the topic's material.
type ChatService struct {
	minds     storage.MindStore
	feeds     storage.FeedStore
	crystals  storage.CrystalStore
	chats     storage.ChatStore
	completer Completer
	locks     *keyedLocks
}

// NewChatService creates a ChatService.
func NewChatService(minds storage.MindStore, feeds storage.FeedStore, crystals storage.CrystalStore, chats storage.ChatStore, completer Completer) *ChatService {
	return &ChatService{
		minds:     minds,
		feeds:     feeds,
		crystals:  crystals,
		chats:     chats,
		completer: completer,
		locks:     newKeyedLocks(),
	}
}

// Send appends the user message, asks the model and appends its answer.
// Unknown model or style ids fall back to the defaults. On a model failure
// the user message stays in the history so a retry carries the full thread.
func (s *ChatService) Send(ctx context.Context, mindID, message, modelID, styleID string) (*ChatReply, error) {
	logger := contextutil.LoggerFromContext(ctx)

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &ValidationError{Field: "message", Message: "message is required"}
	}

	mind, err := s.minds.Get(ctx, mindID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, WrapError(err, "failed to get mind")
	}

	model := config.ModelByID(modelID)
	style := config.StyleByID(styleID)

	// One reply in flight per topic so interleaved sends cannot cross-ground.
	if err := s.locks.Lock(ctx, mindID); err != nil {
		return nil, err
	}
	defer s.locks.Unlock(mindID)

	if _, err := s.chats.Append(ctx, mindID, roleUser, message); err != nil {
		return nil, WrapError(err, "failed to store message")
	}

	messages, err := s.buildConversation(ctx, mind, style.ID)
	if err != nil {
		return nil, err
	}

	raw, err := s.completer.Complete(ctx, messages, llm.CompleteOptions{
		Model:           model.ID,
		Effort:          model.ThinkingLevel,
		MaxOutputTokens: chatMaxTokens,
	})
	if err != nil {
		logger.WarnContext(ctx, "chat completion failed, user message kept",
			"mind_id", mindID, "model", model.ID, "error", err)
		return nil, &GenerationError{Op: "chat", Err: err}
	}
	answer := strings.TrimSpace(raw)
	if answer == "" {
		return nil, &GenerationError{Op: "chat", Err: errors.New("model returned an empty answer")}
	}

	rec, err := s.chats.Append(context.WithoutCancel(ctx), mindID, roleAssistant, answer)
	if err != nil {
		return nil, WrapError(err, "failed to store answer")
	}

	logger.InfoContext(ctx, "chat reply generated", "mind_id", mindID, "model", model.ID, "style", style.ID)
	return &ChatReply{Message: rec, Model: model, Style: style}, nil
}

// History returns the topic's full conversation, oldest first.
func (s *ChatService) History(ctx context.Context, mindID string) ([]*storage.ChatMessageRecord, error) {
	if _, err := s.minds.Get(ctx, mindID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, WrapError(err, "failed to get mind")
	}
	history, err := s.chats.ListByMind(ctx, mindID)
	if err != nil {
		return nil, WrapError(err, "failed to list history")
	}
	return history, nil
}

// Clear removes the topic's conversation. The topic's notes and document are
// untouched.
func (s *ChatService) Clear(ctx context.Context, mindID string) error {
	if _, err := s.minds.Get(ctx, mindID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return WrapError(err, "failed to get mind")
	}
	if err := s.chats.Clear(ctx, mindID); err != nil {
		return WrapError(err, "failed to clear history")
	}
	return nil
}

// buildConversation assembles the grounded system prompt and the recent
// history, which already ends with the just-stored user message.
func (s *ChatService) buildConversation(ctx context.Context, mind *storage.MindRecord, styleID string) ([]llm.Message, error) {
	c := crystal.New()
	rec, err := s.crystals.Get(ctx, mind.ID)
	if err == nil {
		parsed, perr := crystal.Parse(rec.Data)
		if perr != nil {
			return nil, WrapError(perr, "stored crystal is corrupt")
		}
		c = parsed
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, WrapError(err, "failed to load crystal")
	}

	feeds, err := s.feeds.ListByMind(ctx, mind.ID)
	if err != nil {
		return nil, WrapError(err, "failed to list fragments")
	}
	if len(feeds) > chatFeedWindow {
		feeds = feeds[len(feeds)-chatFeedWindow:]
	}

	history, err := s.chats.Recent(ctx, mind.ID, chatHistoryWindow)
	if err != nil {
		return nil, WrapError(err, "failed to load history")
	}

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: buildChatSystem(styleID, mind.Title, c, feeds),
	})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	return messages, nil
}
