// Package errors defines the error kinds surfaced by the settlement service.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConfigUnavailable is returned when pricing configuration could not be
	// loaded and the service runs with a fail-closed policy.
	ErrConfigUnavailable = errors.New("pricing configuration unavailable")
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field   string            `json:"field"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Details: map[string]string{field: message},
	}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ConfigUnavailable wraps cause so that errors.Is(err, ErrConfigUnavailable) holds.
func ConfigUnavailable(cause error) error {
	if cause == nil {
		return ErrConfigUnavailable
	}
	return fmt.Errorf("%w: %v", ErrConfigUnavailable, cause)
}
