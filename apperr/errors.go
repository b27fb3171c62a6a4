package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an experiment, toggle or admin does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a uniqueness violation. It is resolved inside the
	// assignment resolver and never written to an HTTP response.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized is returned for bad admin credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError describes malformed or inconsistent input. Index is set
// for batch operations and is -1 otherwise.
type ValidationError struct {
	Field  string
	Reason string
	Index  int
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("event %d: %s: %s", e.Index, e.Field, e.Reason)
	}
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError that is not tied to a batch position.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Index: -1}
}

// AtIndex returns a copy of e pinned to position i of a batch.
func (e *ValidationError) AtIndex(i int) *ValidationError {
	return &ValidationError{Field: e.Field, Reason: e.Reason, Index: i}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
