package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WorkSchedule is the user's clock automation configuration.
// A schedule is immutable once handed to the scheduler; replacing it
// invalidates and reschedules all pending operations.
type WorkSchedule struct {
	// AutoEnabled is the master switch for automatic clock operations.
	AutoEnabled bool

	// ClockInTime is the daily clock-in wall-clock time in "HH:MM" format.
	ClockInTime string

	// Timezone is an IANA timezone name (e.g. "Asia/Manila"). Empty means
	// the system's local timezone.
	Timezone string

	// MinWorkDurationMinutes is the minimum session length before a
	// clock-out is permitted, and the offset used to schedule the
	// automatic clock-out.
	MinWorkDurationMinutes uint
}

// Validate checks the schedule for structural problems.
func (s WorkSchedule) Validate() error {
	if _, _, err := s.clockInHourMinute(); err != nil {
		return err
	}
	if _, err := s.Location(); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, s.Timezone)
	}
	if s.MinWorkDurationMinutes == 0 {
		return fmt.Errorf("%w: minimum work duration must be positive", ErrInvalidSchedule)
	}
	return nil
}

// Location resolves the schedule's timezone, defaulting to the system's
// local timezone when unset.
func (s WorkSchedule) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// MinWorkDuration returns the minimum work duration as a time.Duration.
func (s WorkSchedule) MinWorkDuration() time.Duration {
	return time.Duration(s.MinWorkDurationMinutes) * time.Minute
}

// NextClockIn computes the next clock-in deadline relative to now: today at
// ClockInTime in the schedule's timezone, rolled forward to tomorrow if that
// moment has already passed.
func (s WorkSchedule) NextClockIn(now time.Time) (time.Time, error) {
	hour, minute, err := s.clockInHourMinute()
	if err != nil {
		return time.Time{}, err
	}
	loc, err := s.Location()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, s.Timezone)
	}

	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// clockInHourMinute parses the "HH:MM" clock-in time.
func (s WorkSchedule) clockInHourMinute() (hour, minute int, err error) {
	parts := strings.Split(s.ClockInTime, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: clock-in time %q is not HH:MM", ErrInvalidSchedule, s.ClockInTime)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: invalid hour in clock-in time %q", ErrInvalidSchedule, s.ClockInTime)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: invalid minute in clock-in time %q", ErrInvalidSchedule, s.ClockInTime)
	}
	return hour, minute, nil
}

// DefaultWorkSchedule returns a sensible schedule for a standard day shift.
func DefaultWorkSchedule() WorkSchedule {
	return WorkSchedule{
		AutoEnabled:            false,
		ClockInTime:            "09:00",
		Timezone:               "",
		MinWorkDurationMinutes: 540,
	}
}
