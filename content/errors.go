package content

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching. The concrete error types below carry the
// details and report Is() true for their sentinel.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate")
	ErrNetwork    = errors.New("backend unavailable")
)

// ValidationError reports a missing or malformed field, an unknown enum
// value or an unresolved parent reference.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an id that does not resolve to a row.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateError reports a uniqueness conflict.
type DuplicateError struct {
	Kind  string
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s already exists", e.Kind)
	}
	return fmt.Sprintf("%s with %s %q already exists", e.Kind, e.Field, e.Value)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// NetworkError wraps a failed or timed-out backend call.
type NetworkError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("%s: backend timed out, please retry", e.Op)
	}
	return fmt.Sprintf("%s: backend call failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// isDomainError reports whether err already belongs to the taxonomy above.
func isDomainError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicate) || errors.Is(err, ErrNetwork)
}
