package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("not found")

// ConstraintError reports a storage constraint violation (uniqueness,
// foreign key) surfaced by an insert or update.
type ConstraintError struct {
	Op  string // operation that failed, e.g. "upsert company"
	Err error
}

// Error implements the error interface.
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s violated a storage constraint: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying driver error.
func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// wrapExecError classifies a write failure, wrapping constraint violations
// as *ConstraintError.
func wrapExecError(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "FOREIGN KEY constraint") ||
		strings.Contains(msg, "NOT NULL constraint") || strings.Contains(msg, "CHECK constraint") {
		return &ConstraintError{Op: op, Err: err}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
