package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// StaleReferenceError reports a write that targeted a row whose owning entity
// no longer exists. Callbacks race with entity deletion; the tolerant repo
// variants swallow this, the strict ones surface it.
type StaleReferenceError struct {
	Table    string
	EntityID int64
}

func (e *StaleReferenceError) Error() string {
	return fmt.Sprintf("stale reference: entity %d gone, write to %q abandoned", e.EntityID, e.Table)
}

// ReferentialIntegrityError reports a delete blocked by live references.
// Never retried, always surfaced.
type ReferentialIntegrityError struct {
	Table    string
	ID       int64
	RefTable string
	RefCount int64
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf(
		"cannot delete %s %d: %d row(s) in %s still reference it",
		e.Table, e.ID, e.RefCount, e.RefTable,
	)
}

// RetryExhaustedError wraps a storage error that stayed transient past the
// retry budget.
type RetryExhaustedError struct {
	Operation string
	Attempts  int
	Cause     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: retry budget exhausted after %d attempts: %v", e.Operation, e.Attempts, e.Cause)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Cause }

// SubmissionError reports a compute-backend submission that was rejected or
// unreachable. Logged per job; never aborts sibling submissions.
type SubmissionError struct {
	TaskType string
	EntityID int64
	Cause    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s for entity %d failed: %v", e.TaskType, e.EntityID, e.Cause)
}

func (e *SubmissionError) Unwrap() error { return e.Cause }

// IsLockContention reports whether err looks like write-lock contention from
// a single-writer storage engine. SQLite surfaces this as "database is
// locked" / "database table is locked"; serialization failures from other
// engines are matched the same way.
func IsLockContention(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access")
}
