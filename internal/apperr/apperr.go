// Package apperr provides the error vocabulary shared across PhotoSync components.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors classify failures across the job pipeline and API surface.
// Callers match with errors.Is and decide whether a failure is caller misuse,
// expected shutdown noise, or something worth retrying.
var (
	// ErrCancelled is returned when an operation is aborted by the shutdown
	// or request cancellation signal. Expected during shutdown, not logged
	// as a failure.
	ErrCancelled = errors.New("operation cancelled")

	// ErrInvalidArgument is returned for caller misuse: nil work items,
	// out-of-range configuration values, malformed request payloads.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRemote is returned when the remote photo service is unreachable or
	// answers with an error. The current album's sync or job aborts;
	// re-triggering the sync retries.
	ErrRemote = errors.New("remote service failure")

	// ErrRateLimited is returned when a client exceeds its request window.
	// Denials carry a retry hint and are not logged as errors.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrPersistence is returned when a local database write fails. The
	// affected record is left in its last persisted state.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// Wrap annotates err with a formatted message while keeping it matchable
// with errors.Is against the sentinel it wraps.
func Wrap(err error, format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Invalid returns an ErrInvalidArgument with a formatted detail message.
func Invalid(format string, args ...interface{}) error {
	return Wrap(ErrInvalidArgument, format, args...)
}

// Remote returns an ErrRemote with a formatted detail message.
func Remote(format string, args ...interface{}) error {
	return Wrap(ErrRemote, format, args...)
}

// Persistence wraps a database error so callers can classify it.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
