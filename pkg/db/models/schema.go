package models

import (
	"fmt"

	"github.com/google/uuid"
)

// CurrentSchemaVersion is stamped on every row written by this service.
const CurrentSchemaVersion = 1

// SchemaError reports a row that failed validation before reaching the store.
type SchemaError struct {
	Entity string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Reason)
}

func invalid(entity, field, reason string) error {
	return &SchemaError{Entity: entity, Field: field, Reason: reason}
}

func stampVersion(version *int) {
	if *version == 0 {
		*version = CurrentSchemaVersion
	}
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
