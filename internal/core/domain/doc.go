// Package domain defines the core business entities for punchd.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - WorkSchedule: The user's clock automation configuration
//   - SessionState: Whether the user is currently clocked in
//   - ScheduledOperation: One armed or resolved clock operation
//   - SchedulerState: The snapshot exposed to observers
//   - AttendanceRecord: Today's entry in the remote system of record
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
package domain
