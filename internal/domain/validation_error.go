package domain

import (
	"time"

	"github.com/google/uuid"
)

// Violation categories carried in ValidationError.Note.
const (
	NoteMissingRequired = "missing-required"
	NoteInvalidType     = "invalid-type"
	NoteOutOfRange      = "out-of-range"
	NoteDuplicate       = "duplicate"
	NoteFutureDate      = "future-date"
)

// ValidationError records one rule violated by one field of a staged row.
type ValidationError struct {
	ID        uuid.UUID `json:"id"`
	RowID     uuid.UUID `json:"row_id"`
	Hash      string    `json:"hash"`
	FieldName string    `json:"field_name"`
	CellValue string    `json:"cell_value"`
	Message   string    `json:"message"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidationErrorFilter narrows a validation error listing.
type ValidationErrorFilter struct {
	RowID  *uuid.UUID
	Limit  int
	Offset int
}
