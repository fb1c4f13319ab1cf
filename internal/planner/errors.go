package planner

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed plan settings. No blocks are produced.
	ErrValidation = errors.New("validation error")
	// ErrCapacityExhausted marks an item that found no free slot. It is reported, not fatal.
	ErrCapacityExhausted = errors.New("capacity exhausted")
)

// ValidationError reports which field or discipline made the settings invalid.
type ValidationError struct {
	Field        string
	DisciplineID string
	Reason       string
}

func (e *ValidationError) Error() string {
	if e.DisciplineID != "" {
		return fmt.Sprintf("%s: discipline %q: %s", e.Field, e.DisciplineID, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func invalidDiscipline(id, reason string) error {
	return &ValidationError{Field: "disciplines", DisciplineID: id, Reason: reason}
}

// Skip describes a block that could not be placed.
type Skip struct {
	DisciplineID string    `json:"disciplineId"`
	Type         BlockType `json:"type"`
	Date         string    `json:"date"`
	Offset       int       `json:"offset,omitempty"`
	Minutes      int       `json:"minutes,omitempty"`
	Reason       string    `json:"reason"`
}

// Err returns the skip as an error wrapping ErrCapacityExhausted.
func (s Skip) Err() error {
	return fmt.Errorf("%w: %s %s on %s: %s", ErrCapacityExhausted, s.Type, s.DisciplineID, s.Date, s.Reason)
}
