package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a job or notification ID is unknown.
var ErrNotFound = errors.New("not found")

// ErrValidation is the base error for caller mistakes. Use
// NewValidationError to attach a human-readable reason.
var ErrValidation = errors.New("validation failed")

// ValidationError carries the first violated constraint as a reason
// suitable for surfacing to the caller.
type ValidationError struct {
	Reason string
}

// NewValidationError creates a ValidationError with the given reason.
func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Unwrap makes errors.Is(err, ErrValidation) work.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError wraps ErrNotFound with the missing resource identity.
func NotFoundError(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
