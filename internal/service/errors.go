// Package service holds the reservation lifecycle and the rollup facade
// used by the HTTP handlers.
package service

import (
	"errors"
	"fmt"
)

// ErrInvalidDraft is matched by every validation failure.
var ErrInvalidDraft = errors.New("invalid reservation draft")

// ValidationError names the offending field.  errors.Is(err,
// ErrInvalidDraft) holds for every ValidationError.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidDraft }

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }
