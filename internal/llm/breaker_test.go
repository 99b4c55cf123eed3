package llm

import (
	"context"
	"errors"
	"testing"
)

type stubCompleter struct {
	reply string
	err   error
	calls int
}

func (s *stubCompleter) Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error) {
	s.calls++
	return s.reply, s.err
}

func TestBreaker_PassesThroughSuccess(t *testing.T) {
	stub := &stubCompleter{reply: "ok"}
	b := NewBreaker(stub)

	got, err := b.Complete(context.Background(), nil, CompleteOptions{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("Complete() = %q, want ok", got)
	}
	if stub.calls != 1 {
		t.Errorf("inner calls = %d, want 1", stub.calls)
	}
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	stub := &stubCompleter{err: errors.New("down")}
	b := NewBreaker(stub)

	// Trip threshold: at least 5 requests with >= 80% failures.
	for i := 0; i < 5; i++ {
		if _, err := b.Complete(context.Background(), nil, CompleteOptions{}); err == nil {
			t.Fatal("Complete() error = nil, want failure")
		}
	}

	callsBefore := stub.calls
	if _, err := b.Complete(context.Background(), nil, CompleteOptions{}); err == nil {
		t.Fatal("Complete() error = nil with open breaker")
	}
	if stub.calls != callsBefore {
		t.Errorf("open breaker reached the inner client (%d -> %d calls)", callsBefore, stub.calls)
	}
}
