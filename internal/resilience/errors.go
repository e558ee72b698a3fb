// Package resilience provides bounded retry for contended storage writes.
package resilience

import (
	"errors"
	"strings"

	"github.com/civant/procure-intel/internal/model"
)

// TransientError wraps an error that is safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as explicitly transient.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// IsRetryableWrite returns true for errors that a fresh read-and-retry can
// resolve: explicit TransientError wrappers, optimistic-concurrency
// conflicts on the prediction row, and storage-level contention
// (serialization failures, deadlocks, SQLite busy).
func IsRetryableWrite(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	if model.IsConcurrentModification(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	contentionPatterns := []string{
		"could not serialize access", // postgres serialization failure (40001)
		"deadlock detected",          // postgres 40P01
		"database is locked",         // sqlite busy
		"database table is locked",
	}
	for _, p := range contentionPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
