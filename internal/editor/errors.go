package editor

import (
	"errors"
	"strings"

	"cv-backend/internal/sections"
)

var (
	ErrInvalidTransition = errors.New("action not allowed in the current editor state")
	ErrBusy              = errors.New("a save is already in progress")
	ErrItemNotFound      = errors.New("item not found in section")
)

// ValidationError carries field-level failures found before any network call.
type ValidationError struct {
	Fields sections.FieldErrors
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields.Fields(), ", ")
}
