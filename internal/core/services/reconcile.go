package services

import (
	"context"
	"fmt"
	"time"

	"github.com/blackbird-labs/punchd/internal/core/domain"
	"github.com/blackbird-labs/punchd/internal/logger"
)

// RunStartupCheck reconciles local session state against the remote
// attendance record. It is invoked at process start and after detected
// wake gaps, and repairs divergence caused by restarts, sleep, or clock
// actions made outside this engine. Returns whether any action was taken.
func (s *Scheduler) RunStartupCheck(ctx context.Context) (bool, error) {
	return s.reconcile(ctx, triggerStartup)
}

// RunWakeCheck is the wake-gap-aware variant of RunStartupCheck. The gap
// is measured by the host's liveness probe.
func (s *Scheduler) RunWakeCheck(ctx context.Context, gap time.Duration) (bool, error) {
	logger.Info("wake gap of %s detected, reconciling", gap)
	s.recordEvent(ctx, domain.ActivityEvent{
		Timestamp: time.Now(),
		Action:    domain.ActivityWakeDetected,
		Success:   true,
		Trigger:   triggerWake,
		Duration:  gap,
		Details:   fmt.Sprintf("system wake detected after %s of inactivity", gap),
	})
	return s.reconcile(ctx, triggerWake)
}

// reconcile runs the short-circuit chain against the system of record.
func (s *Scheduler) reconcile(ctx context.Context, trigger string) (bool, error) {
	// No credential: nothing we could do remotely.
	if !s.tokens.HasCredentials(ctx) {
		logger.Debug("reconciliation skipped: no credential stored")
		return false, nil
	}

	s.mu.Lock()
	session := s.state.CurrentSession
	loc := s.loc
	minWork := s.minWorkDurationLocked()
	s.mu.Unlock()

	// Already clocked in: the clock-out timer (or a human) handles the rest.
	if session.ClockedIn {
		logger.Debug("reconciliation skipped: already clocked in")
		return false, nil
	}

	// Already handled today.
	now := s.now()
	if !session.ClockInTime.IsZero() && sameLocalDay(session.ClockInTime, now, loc) {
		logger.Debug("reconciliation skipped: already clocked in today")
		return false, nil
	}

	// Consult the system of record. A fetch failure is non-fatal; the
	// clock-in attempt below surfaces real authentication problems.
	record, err := s.tokens.Attendance(ctx, trigger)
	if err != nil {
		logger.Warn("attendance check failed, proceeding with clock-in attempt: %v", err)
		record = nil
	}

	if record != nil {
		switch {
		case record.RestDay:
			logger.Info("rest day, no clock-in")
			return false, nil

		case record.OnLeave:
			logger.Info("on leave, no clock-in")
			return false, nil

		case record.Status == domain.AttendanceCompleted:
			s.adoptCompletedSession(record, loc)
			logger.Info("remote session already completed today")
			return false, nil

		case record.Status == domain.AttendanceStarted && record.DateTimeIn != "":
			return s.adoptExternalClockIn(ctx, trigger, record, loc, minWork, now)
		}
	}

	// No record (or absent): attempt the automatic clock-in, attributed
	// to the reconciliation trigger.
	ok, err := s.clockIn(ctx, trigger)
	if err != nil {
		logger.Warn("automatic clock-in failed: %v", err)
		return false, err
	}
	return ok, nil
}

// adoptCompletedSession updates the session to mirror a remotely completed
// day so the same-day short circuit holds for the rest of it.
func (s *Scheduler) adoptCompletedSession(record *domain.AttendanceRecord, loc *time.Location) {
	clockIn, err := domain.ParseClockTime(record.DateTimeIn, loc)
	if err != nil {
		logger.Debug("completed record has unparseable clock-in %q: %v", record.DateTimeIn, err)
		return
	}

	s.mu.Lock()
	s.state.CurrentSession = domain.SessionState{
		ClockedIn:   false,
		ClockInTime: clockIn,
	}
	s.mu.Unlock()
}

// adoptExternalClockIn handles an open session created outside this
// engine: either clocks out immediately when the deadline already passed,
// or adopts the session and arms the clock-out timer.
func (s *Scheduler) adoptExternalClockIn(
	ctx context.Context,
	trigger string,
	record *domain.AttendanceRecord,
	loc *time.Location,
	minWork time.Duration,
	now time.Time,
) (bool, error) {
	clockIn, err := domain.ParseClockTime(record.DateTimeIn, loc)
	if err != nil {
		return false, fmt.Errorf("parsing external clock-in time: %w", err)
	}
	deadline := clockIn.Add(minWork)

	if !now.Before(deadline) {
		// Deadline already passed; clock out immediately, bypassing the
		// minimum-duration guard.
		logger.Info("external session overdue (deadline %s), clocking out now",
			deadline.Format(time.RFC3339))
		ok, err := s.clockOut(ctx, trigger, true)
		if err != nil {
			return false, err
		}
		return ok, nil
	}

	s.mu.Lock()
	if s.hasPendingLocked(domain.OperationClockOut) {
		// Already scheduled; nothing to repair.
		s.mu.Unlock()
		return false, nil
	}
	s.state.CurrentSession = domain.SessionState{
		ClockedIn:            true,
		ClockInTime:          clockIn,
		ExpectedClockOutTime: deadline,
	}
	s.armClockOutLocked(deadline)
	s.mu.Unlock()

	logger.Info("adopted external clock-in at %s, clock-out armed for %s",
		clockIn.Format(time.RFC3339), deadline.Format(time.RFC3339))
	return true, nil
}

// recordEvent writes a best-effort activity event.
func (s *Scheduler) recordEvent(ctx context.Context, event domain.ActivityEvent) {
	if s.log == nil {
		return
	}
	if err := s.log.Record(ctx, event); err != nil {
		logger.Debug("activity log write failed: %v", err)
	}
}

// sameLocalDay reports whether two instants fall on the same calendar
// date in loc.
func sameLocalDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
