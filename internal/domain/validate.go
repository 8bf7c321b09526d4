package domain

import "fmt"

// DecodeError indicates a stored document failed validation after decoding.
// Callers treat it as a validation failure rather than propagating the
// partially decoded value.
type DecodeError struct {
	Entity string
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: field %q %s", e.Entity, e.Field, e.Reason)
}

func errMissing(entity, field string) error {
	return &DecodeError{Entity: entity, Field: field, Reason: "is required"}
}

func errInvalid(entity, field, value string) error {
	return &DecodeError{Entity: entity, Field: field, Reason: fmt.Sprintf("has invalid value %q", value)}
}
