package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the service layer. Handlers translate these to
// HTTP status codes. An access-policy denial on a fetch is reported as
// ErrNotFound so that existence is not confirmed to non-members.
var (
	ErrNotFound           = errors.New("capsule not found")
	ErrForbidden          = errors.New("operation not permitted")
	ErrUnauthenticated    = errors.New("user not authenticated")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ValidationError reports a request field that failed validation before any
// I/O was performed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError builds a *ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
