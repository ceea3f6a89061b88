package visits

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a mutation aimed at a visit id the store does not hold.
var ErrNotFound = errors.New("visit not found")

// ValidationError reports malformed input caught before any remote call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// PersistenceError reports a failed remote read or write. The in-memory
// state is left untouched, so the caller can retry the whole operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistence(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}
