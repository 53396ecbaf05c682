package common

import (
	"errors"
	"fmt"
)

// Business logic errors
var (
	// Schema errors: malformed records are discarded, never shown to the counterpart
	ErrSchema = errors.New("schema error")

	// Auth errors
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	// Lookup errors
	ErrNotFound             = errors.New("resource not found")
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)
	ErrMessageNotFound      = fmt.Errorf("message %w", ErrNotFound)

	// Mutation errors
	ErrValidationFailed  = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid mission transition")

	// Subscription errors
	ErrTransport = errors.New("transport error")
)

// SchemaError describes why a record does not satisfy the message schema.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return "schema error: " + e.Reason
	}
	return fmt.Sprintf("schema error: %s: %s", e.Field, e.Reason)
}

// Is lets a SchemaError match both ErrSchema and ErrValidationFailed,
// so request payloads rejected by the schema surface as validation failures.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema || target == ErrValidationFailed
}

// NewSchemaError builds a SchemaError for a field.
func NewSchemaError(field, reason string) error {
	return &SchemaError{Field: field, Reason: reason}
}
