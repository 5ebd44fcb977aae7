package domain

import (
	"fmt"
	"time"
)

// AttendanceStatus is the remote attendance record's state for today.
type AttendanceStatus string

// Attendance statuses as reported by the remote service.
const (
	// AttendanceStarted means an open session exists (clock-in without
	// clock-out), possibly created through a channel other than this engine.
	AttendanceStarted AttendanceStatus = "started"

	// AttendanceCompleted means today's session is already closed.
	AttendanceCompleted AttendanceStatus = "completed"

	// AttendanceAbsent means no attendance activity was recorded today.
	AttendanceAbsent AttendanceStatus = "absent"
)

// AttendanceRecord is today's authoritative attendance entry from the
// remote system of record.
type AttendanceRecord struct {
	Status AttendanceStatus

	// RestDay marks a scheduled non-working day.
	RestDay bool

	// OnLeave marks an approved leave day.
	OnLeave bool

	// DateTimeIn and DateTimeOut are the remote timestamps as transmitted.
	// The remote service commonly omits the UTC offset; parse them with
	// ParseClockTime so the interpretation rule is uniform.
	DateTimeIn  string
	DateTimeOut string
}

// clockTimeLayouts are the offset-free formats the remote service emits,
// tried in order after the RFC 3339 forms.
var clockTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseClockTime parses a remote clock timestamp. Strings carrying an
// explicit offset are honored as given; offset-free strings are interpreted
// in loc, because that is what the remote service means by them. UTC is the
// fallback only when loc is nil. Misreading the offset silently corrupts
// clock-out deadlines, so every clock-in timestamp in the system goes
// through this one function.
func ParseClockTime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range clockTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable clock time %q", ErrInvalidInput, value)
}
