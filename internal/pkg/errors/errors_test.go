package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsLockContention(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked"), true},
		{errors.New("database table is locked"), true},
		{fmt.Errorf("write: %w", errors.New("SQLITE_BUSY")), true},
		{errors.New("deadlock detected"), true},
		{errors.New("could not serialize access due to concurrent update"), true},
		{errors.New("UNIQUE constraint failed"), false},
		{ErrNotFound, false},
	}
	for _, tc := range cases {
		if got := IsLockContention(tc.err); got != tc.want {
			t.Fatalf("IsLockContention(%v) want=%v got=%v", tc.err, tc.want, got)
		}
	}
}

func TestRetryExhaustedUnwraps(t *testing.T) {
	cause := errors.New("database is locked")
	err := &RetryExhaustedError{Operation: "face.upsert", Attempts: 10, Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("cause not unwrapped")
	}
}

func TestStaleReferenceAs(t *testing.T) {
	var wrapped error = fmt.Errorf("upsert: %w", &StaleReferenceError{Table: "face", EntityID: 42})
	var stale *StaleReferenceError
	if !errors.As(wrapped, &stale) {
		t.Fatalf("errors.As failed")
	}
	if stale.EntityID != 42 {
		t.Fatalf("entity id want=42 got=%d", stale.EntityID)
	}
}
