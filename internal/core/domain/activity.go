package domain

import "time"

// ActivityAction categorises an activity-log entry.
type ActivityAction string

// Logged actions.
const (
	ActivityClockIn         ActivityAction = "clock_in"
	ActivityClockOut        ActivityAction = "clock_out"
	ActivityAttendanceCheck ActivityAction = "attendance_check"
	ActivityTokenRefresh    ActivityAction = "token_refresh"
	ActivityWakeDetected    ActivityAction = "wake_detected"
	ActivityScheduler       ActivityAction = "scheduler"
)

// ActivityEvent is one best-effort activity-log entry. Recording is
// fire-and-forget; a failure to persist an event never affects the
// operation that produced it.
type ActivityEvent struct {
	ID        string
	Timestamp time.Time
	Action    ActivityAction

	// Success is false for failed operations.
	Success bool

	// Details is a human-readable description of what happened.
	Details string

	// Trigger records what initiated the operation (scheduled, manual,
	// reconciliation, wake).
	Trigger string

	// Duration is how long the operation took, when measured.
	Duration time.Duration

	// Error carries the failure text, if any.
	Error string
}
