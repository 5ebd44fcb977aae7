package domain

import "time"

// OperationKind distinguishes the two scheduled operation types.
type OperationKind string

// Scheduled operation kinds.
const (
	OperationClockIn  OperationKind = "clock_in"
	OperationClockOut OperationKind = "clock_out"
)

// OperationStatus is the lifecycle state of a scheduled operation.
// Terminal statuses are never resurrected.
type OperationStatus string

// Scheduled operation statuses.
const (
	OperationPending   OperationStatus = "pending"
	OperationCompleted OperationStatus = "completed"
	OperationFailed    OperationStatus = "failed"
	OperationCancelled OperationStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s OperationStatus) Terminal() bool {
	return s == OperationCompleted || s == OperationFailed || s == OperationCancelled
}

// ScheduledOperation is one armed (or resolved) clock operation.
type ScheduledOperation struct {
	// ID is the unique identifier, also the timer-handle lookup key.
	ID string

	// Kind is the operation type.
	Kind OperationKind

	// ScheduledTime is when the operation should fire.
	ScheduledTime time.Time

	// Status is the lifecycle state.
	Status OperationStatus

	// ActualTime is when the operation resolved, if it has.
	ActualTime time.Time

	// ErrorMessage carries the failure text for failed operations.
	ErrorMessage string
}

// SessionState records whether the user is currently clocked in.
//
// Invariant: ClockedIn == true implies ClockInTime is set. When ClockedIn
// is false the times are normally zero; the one exception is a remotely
// completed day adopted during reconciliation, which keeps ClockInTime so
// the same-day short circuit holds for the rest of that day.
type SessionState struct {
	ClockedIn            bool
	ClockInTime          time.Time
	ExpectedClockOutTime time.Time
}

// SchedulerState is the snapshot exposed to external observers. It is only
// ever mutated by the scheduling engine and the reconciliation check, under
// a single lock; reads receive a copy.
type SchedulerState struct {
	IsRunning         bool
	CurrentSession    SessionState
	PendingOperations []ScheduledOperation
	LastError         string
}
