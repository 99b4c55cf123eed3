package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// completer is the call the breaker guards.
type completer interface {
	Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error)
}

// Breaker wraps a completion client with a circuit breaker so a flapping
// upstream fails fast instead of tying up request handlers for the full
// timeout on every call.
type Breaker struct {
	inner completer
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker wraps the given client with a circuit breaker.
func NewBreaker(inner completer) *Breaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ai-hub",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &Breaker{inner: inner, cb: cb}
}

// Complete forwards to the wrapped client through the breaker.
// ErrOpenState and ErrTooManyRequests surface as plain errors; callers treat
// them like any other upstream failure.
func (b *Breaker) Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.inner.Complete(ctx, messages, opts)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
