package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested topic or fragment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBusy is returned when a per-topic operation could not start because
	// another one is still in flight and the caller stopped waiting.
	// Safe to retry.
	ErrBusy = errors.New("operation already in flight for this topic")
)

// ValidationError represents a validation error with a field name.
// Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// GenerationError wraps a failure of the external completion service.
// Recoverable; already-durable data is never lost.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
