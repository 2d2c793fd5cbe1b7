package reconcile

import (
	"fmt"

	"horse.fit/outage-watch/internal/db"
)

// IncompleteMatchKeyError means a related entity lacks a value for one of its
// uniqueness fields. The entity is skipped; the surrounding record is not.
type IncompleteMatchKeyError struct {
	Kind db.EntityKind
	Key  string
}

func (e *IncompleteMatchKeyError) Error() string {
	return fmt.Sprintf("%s: match key %q is missing or empty", e.Kind, e.Key)
}

// DateTimeParseError is a client-data error: the extracted date or a clock
// time could not be read even after normalization.
type DateTimeParseError struct {
	Field string
	Value string
	Err   error
}

func (e *DateTimeParseError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s is missing", e.Field)
	}
	if e.Err == nil {
		return fmt.Sprintf("parse %s %q", e.Field, e.Value)
	}
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *DateTimeParseError) Unwrap() error { return e.Err }

// PersistenceError wraps a storage failure that decided the outcome of a
// reconciliation: the duplicate lookup or the main record insert.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
