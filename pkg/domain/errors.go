package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidUpdate is returned for updates without an id.
	ErrInvalidUpdate = errors.New("invalid update: <id> required")
	// ErrMissingField is returned when a merged issue lacks a required field.
	ErrMissingField = errors.New("missing field")
	// ErrMalformedSnapshot is returned when a snapshot cannot be decoded.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	// ErrNotFound is returned when an addressed issue does not exist.
	ErrNotFound = errors.New("not found")
)

// FieldError names the required field an issue was missing.
type FieldError struct {
	IssueID string
	Field   string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("issue %s: <%s> required", e.IssueID, e.Field)
}

// Unwrap lets errors.Is match ErrMissingField.
func (e FieldError) Unwrap() error {
	return ErrMissingField
}
