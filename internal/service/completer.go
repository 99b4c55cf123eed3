package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_completer.go -package=mocks mindlink/internal/service Completer

import (
	"context"

	"mindlink/internal/llm"
)

// Completer is the slice of the completion client the services need.
// This interface is defined from the service layer's perspective
// (consumer-first); it is satisfied by *llm.Client and *llm.Breaker.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, opts llm.CompleteOptions) (string, error)
}
