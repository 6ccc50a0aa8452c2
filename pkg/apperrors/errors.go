package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrBadInput marks a malformed or semantically invalid proposal
	// (cycle, undefined base class, conflicting cardinality,
	// cross-project reference). Never retried.
	ErrBadInput = errors.New("bad input")

	// ErrConflict marks an optimistic-version mismatch or an
	// entity-in-use rejection. Callers may re-fetch and resubmit.
	ErrConflict = errors.New("conflict")

	// ErrInconsistentStore marks a post-write verification mismatch.
	// Fatal: the store silently diverged from what was written.
	ErrInconsistentStore = errors.New("inconsistent store")

	// ErrLockTimeout marks a failed lock acquisition. Transient; safe
	// for the caller to retry.
	ErrLockTimeout = errors.New("lock timeout")

	// ErrNotFound marks a missing ontology, class, or property.
	ErrNotFound = errors.New("not found")
)

// BadInput wraps a formatted message with ErrBadInput.
func BadInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadInput, fmt.Sprintf(format, args...))
}

// Conflict wraps a formatted message with ErrConflict.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// InconsistentStore wraps a formatted message with ErrInconsistentStore.
func InconsistentStore(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInconsistentStore, fmt.Sprintf(format, args...))
}

// LockTimeout wraps a formatted message with ErrLockTimeout.
func LockTimeout(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrLockTimeout, fmt.Sprintf(format, args...))
}

// NotFound wraps a formatted message with ErrNotFound.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
