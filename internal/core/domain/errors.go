package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Authentication Errors.

	// ErrAuthRequired indicates no credential is stored; remote calls are
	// never attempted without one.
	ErrAuthRequired = errors.New("authentication required")

	// ErrTokenRefreshFailed indicates the refresh-token exchange failed.
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// Scheduling Errors.

	// ErrSchedulerNotRunning indicates an operation requires a started scheduler.
	ErrSchedulerNotRunning = errors.New("scheduler not running")

	// ErrMinimumDuration indicates a clock-out was attempted before the
	// minimum work duration elapsed and bypass was not requested.
	ErrMinimumDuration = errors.New("minimum work duration not reached")

	// ErrInvalidSchedule indicates the work schedule is malformed.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrNotClockedIn indicates a clock-out was attempted with no open session.
	ErrNotClockedIn = errors.New("not clocked in")
)

// RemoteError is a failure reported by the attendance API. The status code
// lets callers classify credential failures without sniffing message text.
type RemoteError struct {
	Message    string
	StatusCode int
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote error: %s", e.Message)
}

// Unauthorized reports whether the failure is attributable to the access
// credential rather than the request itself.
func (e *RemoteError) Unauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}
