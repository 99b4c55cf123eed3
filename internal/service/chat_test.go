package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"mindlink/internal/llm"
	"mindlink/internal/service/mocks"
)

func TestChatService_SendGroundsAndAppends(t *testing.T) {
	h := newTestRepos(t)
	ctrl := gomock.NewController(t)
	completer := mocks.NewMockCompleter(ctrl)
	svc := NewChatService(h.Minds, h.Feeds, h.Crystals, h.Chats, completer)

	mind := h.createMind(t, "Learning Go")
	ctx := context.Background()

	feed, err := h.Feeds.Append(ctx, mind.ID, "raw note with filler")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := h.Feeds.SetCleaned(ctx, feed.ID, "interfaces are implicit"); err != nil {
		t.Fatalf("SetCleaned() error = %v", err)
	}

	completer.EXPECT().
		Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llm.Message, opts llm.CompleteOptions) (string, error) {
			if messages[0].Role != "system" {
				t.Errorf("first message role = %q, want system", messages[0].Role)
			}
			// Grounding prefers the cleaned rendition of the fragment.
			if !strings.Contains(messages[0].Content, "interfaces are implicit") {
				t.Errorf("system prompt missing cleaned note:\n%s", messages[0].Content)
			}
			last := messages[len(messages)-1]
			if last.Role != "user" || last.Content != "what did I learn?" {
				t.Errorf("last message = %+v, want the user question", last)
			}
			if opts.Model != "google_gemini_3_pro" {
				t.Errorf("model = %q, want google_gemini_3_pro", opts.Model)
			}
			if opts.Effort != llm.EffortHigh {
				t.Errorf("effort = %q, want high", opts.Effort)
			}
			return "You noted that interfaces are implicit.", nil
		})

	reply, err := svc.Send(ctx, mind.ID, "what did I learn?", "google_gemini_3_pro", "socratic")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reply.Message.Role != "assistant" {
		t.Errorf("reply role = %q", reply.Message.Role)
	}
	if reply.Style.ID != "socratic" {
		t.Errorf("style = %q", reply.Style.ID)
	}

	history, err := svc.History(ctx, mind.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d messages, want 2", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "assistant" {
		t.Errorf("history roles = [%s %s]", history[0].Role, history[1].Role)
	}
}

func TestChatService_SendFailureKeepsUserMessage(t *testing.T) {
	h := newTestRepos(t)
	ctrl := gomock.NewController(t)
	completer := mocks.NewMockCompleter(ctrl)
	svc := NewChatService(h.Minds, h.Feeds, h.Crystals, h.Chats, completer)

	mind := h.createMind(t, "Topic")
	ctx := context.Background()

	completer.EXPECT().
		Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", errors.New("service down"))

	_, err := svc.Send(ctx, mind.ID, "hello?", "", "")
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Send() error = %v, want *GenerationError", err)
	}

	history, err := svc.History(ctx, mind.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history = %d messages, want the user message only", len(history))
	}
	if history[0].Role != "user" || history[0].Content != "hello?" {
		t.Errorf("history[0] = %+v", history[0])
	}
}

func TestChatService_SendUnknownModelFallsBack(t *testing.T) {
	h := newTestRepos(t)
	ctrl := gomock.NewController(t)
	completer := mocks.NewMockCompleter(ctrl)
	svc := NewChatService(h.Minds, h.Feeds, h.Crystals, h.Chats, completer)

	mind := h.createMind(t, "Topic")

	completer.EXPECT().
		Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ []llm.Message, opts llm.CompleteOptions) (string, error) {
			if opts.Model != "google_gemini_3_flash" {
				t.Errorf("model = %q, want the default", opts.Model)
			}
			return "ok", nil
		})

	reply, err := svc.Send(context.Background(), mind.ID, "hi", "no-such-model", "no-such-style")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reply.Model.ID != "google_gemini_3_flash" {
		t.Errorf("reply model = %q", reply.Model.ID)
	}
	if reply.Style.ID != "default" {
		t.Errorf("reply style = %q", reply.Style.ID)
	}
}

func TestChatService_SendValidation(t *testing.T) {
	h := newTestRepos(t)
	ctrl := gomock.NewController(t)
	svc := NewChatService(h.Minds, h.Feeds, h.Crystals, h.Chats, mocks.NewMockCompleter(ctrl))

	mind := h.createMind(t, "Topic")

	_, err := svc.Send(context.Background(), mind.ID, "   ", "", "")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("Send() error = %v, want *ValidationError", err)
	}

	if _, err := svc.Send(context.Background(), "no-such-id", "hi", "", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Send() to missing topic error = %v, want ErrNotFound", err)
	}
}

func TestChatService_Clear(t *testing.T) {
	h := newTestRepos(t)
	ctrl := gomock.NewController(t)
	completer := mocks.NewMockCompleter(ctrl)
	svc := NewChatService(h.Minds, h.Feeds, h.Crystals, h.Chats, completer)

	mind := h.createMind(t, "Topic")
	ctx := context.Background()

	completer.EXPECT().
		Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("hello!", nil)

	if _, err := svc.Send(ctx, mind.ID, "hi", "", ""); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if err := svc.Clear(ctx, mind.ID); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	history, err := svc.History(ctx, mind.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history after Clear() = %d messages, want 0", len(history))
	}
}
