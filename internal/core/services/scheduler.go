package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blackbird-labs/punchd/internal/core/domain"
	"github.com/blackbird-labs/punchd/internal/core/ports/driven"
	"github.com/blackbird-labs/punchd/internal/core/ports/driving"
	"github.com/blackbird-labs/punchd/internal/logger"
)

// Timer scheduling bounds for automatic clock-outs. A non-positive delay
// fires almost immediately; a delay beyond maxClockOutDelay is capped at
// cappedClockOutWait and the reconciliation check catches the rest. This
// defends against clock skew and bad external timestamps.
const (
	minTimerDelay      = time.Second
	maxClockOutDelay   = 24 * time.Hour
	cappedClockOutWait = 12 * time.Hour
)

// fallbackWorkDuration is used for the expected clock-out when no schedule
// has been provided yet (manual clock-in before Start).
const fallbackWorkDuration = 9 * time.Hour

// maxResolvedOperations bounds the in-memory operations list. Terminal
// operations beyond this are dropped from the snapshot; the operation
// store keeps the durable history.
const maxResolvedOperations = 20

// Triggers recorded on activity events.
const (
	triggerScheduled = "scheduled"
	triggerManual    = "manual"
	triggerStartup   = "startup"
	triggerWake      = "wake"
)

// Scheduler is the attendance scheduling engine. It owns the session state
// machine (Idle, AwaitingClockIn, ClockedIn, AwaitingClockOut), arms one
// timer per operation kind, and drives every remote call through the
// token coordinator.
//
// All state mutations happen under a single mutex; remote calls happen
// outside it so that state reads never wait on the network.
type Scheduler struct {
	tokens *TokenCoordinator
	ops    driven.OperationStore // optional
	log    driven.ActivityLog    // optional
	now    func() time.Time

	mu          sync.Mutex
	scheduleSet bool
	schedule    domain.WorkSchedule
	loc         *time.Location
	state       domain.SchedulerState
	timers      map[string]*time.Timer
}

var _ driving.ClockScheduler = (*Scheduler)(nil)

// NewScheduler creates a stopped scheduler. The operation store and
// activity log may be nil.
func NewScheduler(tokens *TokenCoordinator, ops driven.OperationStore, log driven.ActivityLog) *Scheduler {
	return &Scheduler{
		tokens: tokens,
		ops:    ops,
		log:    log,
		now:    time.Now,
		loc:    time.Local,
		timers: make(map[string]*time.Timer),
	}
}

// Start cancels any armed timers, stores the schedule, and arms the next
// clock-in timer when automatic scheduling is enabled.
func (s *Scheduler) Start(ctx context.Context, schedule domain.WorkSchedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}
	loc, err := schedule.Location()
	if err != nil {
		return fmt.Errorf("%w: unknown timezone %q", domain.ErrInvalidSchedule, schedule.Timezone)
	}

	s.mu.Lock()
	s.cancelAllLocked()
	s.schedule = schedule
	s.scheduleSet = true
	s.loc = loc
	s.state.IsRunning = true
	s.state.LastError = ""
	s.state.PendingOperations = nil

	if schedule.AutoEnabled {
		if err := s.armNextClockInLocked(); err != nil {
			// A Start that could not arm leaves the engine stopped.
			s.state.IsRunning = false
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	logger.Info("scheduler started (auto=%v, clock-in %s %s)",
		schedule.AutoEnabled, schedule.ClockInTime, schedule.Timezone)
	return nil
}

// Stop cancels all armed timers and clears pending operations. Calling
// Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancelAllLocked()
	s.state.IsRunning = false
	s.state.PendingOperations = nil
	s.mu.Unlock()

	logger.Info("scheduler stopped")
}

// State returns a consistent snapshot of the scheduler state.
func (s *Scheduler) State() domain.SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state
	snapshot.PendingOperations = make([]domain.ScheduledOperation, len(s.state.PendingOperations))
	copy(snapshot.PendingOperations, s.state.PendingOperations)
	return snapshot
}

// ManualClockIn performs a clock-in immediately, bypassing the timer. A
// success cancels any still-pending automatic clock-in and arms the
// clock-out timer, exactly like the automatic path.
func (s *Scheduler) ManualClockIn(ctx context.Context) (bool, error) {
	return s.clockIn(ctx, triggerManual)
}

// clockIn is ManualClockIn with the activity trigger made explicit, so
// reconciliation-initiated clock-ins are attributed to startup or wake.
func (s *Scheduler) clockIn(ctx context.Context, trigger string) (bool, error) {
	if err := s.tokens.ClockIn(ctx, trigger); err != nil {
		return false, err
	}

	now := s.now()
	s.mu.Lock()
	expected := now.Add(s.minWorkDurationLocked())
	s.state.CurrentSession = domain.SessionState{
		ClockedIn:            true,
		ClockInTime:          now,
		ExpectedClockOutTime: expected,
	}
	s.cancelPendingLocked(domain.OperationClockIn)
	s.armClockOutLocked(expected)
	s.mu.Unlock()

	logger.Info("%s clock-in recorded at %s", trigger, now.Format(time.RFC3339))
	return true, nil
}

// ManualClockOut performs a clock-out immediately. It is refused before
// the minimum work duration unless bypassMinimum is set. A success cancels
// any pending automatic clock-out and re-arms the next clock-in when
// automatic scheduling is enabled.
func (s *Scheduler) ManualClockOut(ctx context.Context, bypassMinimum bool) (bool, error) {
	return s.clockOut(ctx, triggerManual, bypassMinimum)
}

// clockOut is ManualClockOut with the activity trigger made explicit.
func (s *Scheduler) clockOut(ctx context.Context, trigger string, bypassMinimum bool) (bool, error) {
	if !bypassMinimum && !s.CanClockOut() {
		s.mu.Lock()
		clockedIn := s.state.CurrentSession.ClockedIn
		s.mu.Unlock()
		if !clockedIn {
			return false, domain.ErrNotClockedIn
		}
		return false, domain.ErrMinimumDuration
	}

	if err := s.tokens.ClockOut(ctx, trigger); err != nil {
		return false, err
	}

	s.mu.Lock()
	s.state.CurrentSession = domain.SessionState{}
	s.cancelPendingLocked(domain.OperationClockOut)
	if s.state.IsRunning && s.schedule.AutoEnabled {
		if err := s.armNextClockInLocked(); err != nil {
			s.state.LastError = err.Error()
		}
	}
	s.mu.Unlock()

	logger.Info("%s clock-out recorded", trigger)
	return true, nil
}

// CanClockOut reports whether the minimum work duration has elapsed for
// the open session.
func (s *Scheduler) CanClockOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.state.CurrentSession
	if !session.ClockedIn || session.ClockInTime.IsZero() {
		return false
	}
	return s.now().Sub(session.ClockInTime) >= s.minWorkDurationLocked()
}

// executeClockIn runs when a clock-in timer fires.
func (s *Scheduler) executeClockIn(id string) {
	ctx := context.Background()

	s.mu.Lock()
	op := s.findOperationLocked(id)
	if op == nil || op.Status != domain.OperationPending {
		s.mu.Unlock()
		return
	}
	resolved := *op
	delete(s.timers, id)
	s.mu.Unlock()

	logger.Debug("executing scheduled clock-in %s", id)
	err := s.tokens.ClockIn(ctx, triggerScheduled)
	now := s.now()

	s.mu.Lock()
	resolved.ActualTime = now
	if err != nil {
		// No automatic retry: the next clock-in is only re-armed after a
		// completed clock-out or an explicit restart.
		resolved.Status = domain.OperationFailed
		resolved.ErrorMessage = err.Error()
		s.state.LastError = err.Error()
	} else {
		resolved.Status = domain.OperationCompleted
	}
	// A Stop or restart may have dropped the operation from the snapshot
	// while the remote call was in flight; the outcome is still persisted.
	// Session adoption and the follow-up timer stay with the tracked list,
	// so a stopped engine remains quiescent.
	if tracked := s.findOperationLocked(id); tracked != nil {
		*tracked = resolved
		if err == nil {
			expected := now.Add(s.minWorkDurationLocked())
			s.state.CurrentSession = domain.SessionState{
				ClockedIn:            true,
				ClockInTime:          now,
				ExpectedClockOutTime: expected,
			}
			s.armClockOutLocked(expected)
		}
	}
	s.mu.Unlock()

	s.persistOperation(ctx, resolved)
}

// executeClockOut runs when a clock-out timer fires.
func (s *Scheduler) executeClockOut(id string) {
	ctx := context.Background()

	s.mu.Lock()
	op := s.findOperationLocked(id)
	if op == nil || op.Status != domain.OperationPending {
		s.mu.Unlock()
		return
	}
	resolved := *op
	delete(s.timers, id)
	s.mu.Unlock()

	logger.Debug("executing scheduled clock-out %s", id)
	err := s.tokens.ClockOut(ctx, triggerScheduled)
	now := s.now()

	s.mu.Lock()
	resolved.ActualTime = now
	if err != nil {
		// Fail safe: the session stays clocked in so a human can notice
		// and clock out manually.
		resolved.Status = domain.OperationFailed
		resolved.ErrorMessage = err.Error()
		s.state.LastError = err.Error()
	} else {
		resolved.Status = domain.OperationCompleted
		// The remote session really closed, even if a Stop or restart
		// dropped this operation from the snapshot mid-call.
		s.state.CurrentSession = domain.SessionState{}
	}
	if tracked := s.findOperationLocked(id); tracked != nil {
		*tracked = resolved
		if err == nil && s.state.IsRunning && s.schedule.AutoEnabled {
			if armErr := s.armNextClockInLocked(); armErr != nil {
				s.state.LastError = armErr.Error()
			}
		}
	}
	s.mu.Unlock()

	s.persistOperation(ctx, resolved)
}

// armNextClockInLocked computes the next clock-in deadline and arms its
// timer. Caller holds the lock.
func (s *Scheduler) armNextClockInLocked() error {
	next, err := s.schedule.NextClockIn(s.now())
	if err != nil {
		return err
	}

	delay := next.Sub(s.now())
	if delay < minTimerDelay {
		delay = minTimerDelay
	}
	id := s.armLocked(domain.OperationClockIn, next, delay)
	logger.Info("clock-in scheduled: %s at %s", id, next.Format(time.RFC3339))
	return nil
}

// armClockOutLocked arms the clock-out timer for the given deadline,
// clamping pathological delays. Caller holds the lock.
func (s *Scheduler) armClockOutLocked(deadline time.Time) {
	// At most one live clock-out timer.
	s.cancelPendingLocked(domain.OperationClockOut)

	delay := clampClockOutDelay(deadline.Sub(s.now()))
	id := s.armLocked(domain.OperationClockOut, deadline, delay)
	logger.Info("clock-out scheduled: %s at %s", id, deadline.Format(time.RFC3339))
}

// clampClockOutDelay bounds a clock-out timer delay.
func clampClockOutDelay(delay time.Duration) time.Duration {
	switch {
	case delay <= 0:
		// Already due; fire within one tick.
		return minTimerDelay
	case delay > maxClockOutDelay:
		// Absurd wait, likely a bad external timestamp. Cap it and let
		// the reconciliation check catch the rest.
		logger.Warn("clock-out delay %s exceeds %s, capping at %s",
			delay, maxClockOutDelay, cappedClockOutWait)
		return cappedClockOutWait
	}
	return delay
}

// armLocked appends a pending operation and starts its timer. Caller
// holds the lock.
func (s *Scheduler) armLocked(kind domain.OperationKind, at time.Time, delay time.Duration) string {
	id := uuid.New().String()
	s.appendOperationLocked(domain.ScheduledOperation{
		ID:            id,
		Kind:          kind,
		ScheduledTime: at,
		Status:        domain.OperationPending,
	})

	execute := s.executeClockIn
	if kind == domain.OperationClockOut {
		execute = s.executeClockOut
	}
	s.timers[id] = time.AfterFunc(delay, func() { execute(id) })
	return id
}

// cancelPendingLocked cancels not-yet-started pending operations of the
// given kind. An operation whose timer has already fired is left alone;
// it records its own outcome. Caller holds the lock.
func (s *Scheduler) cancelPendingLocked(kind domain.OperationKind) {
	for i := range s.state.PendingOperations {
		op := &s.state.PendingOperations[i]
		if op.Kind != kind || op.Status != domain.OperationPending {
			continue
		}
		timer, ok := s.timers[op.ID]
		if !ok || !timer.Stop() {
			// Fired or firing; the execution path owns it now.
			continue
		}
		delete(s.timers, op.ID)
		op.Status = domain.OperationCancelled
	}
}

// cancelAllLocked aborts every armed timer. Caller holds the lock.
func (s *Scheduler) cancelAllLocked() {
	s.cancelPendingLocked(domain.OperationClockIn)
	s.cancelPendingLocked(domain.OperationClockOut)
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// hasPendingLocked reports whether a pending operation of the given kind
// exists. Caller holds the lock.
func (s *Scheduler) hasPendingLocked(kind domain.OperationKind) bool {
	for i := range s.state.PendingOperations {
		op := &s.state.PendingOperations[i]
		if op.Kind == kind && op.Status == domain.OperationPending {
			return true
		}
	}
	return false
}

// findOperationLocked returns the operation with the given id, or nil.
// Caller holds the lock.
func (s *Scheduler) findOperationLocked(id string) *domain.ScheduledOperation {
	for i := range s.state.PendingOperations {
		if s.state.PendingOperations[i].ID == id {
			return &s.state.PendingOperations[i]
		}
	}
	return nil
}

// appendOperationLocked adds an operation to the snapshot list, trimming
// the oldest terminal entries beyond the retention bound. Caller holds
// the lock.
func (s *Scheduler) appendOperationLocked(op domain.ScheduledOperation) {
	ops := append(s.state.PendingOperations, op)
	if len(ops) > maxResolvedOperations {
		trimmed := make([]domain.ScheduledOperation, 0, len(ops))
		excess := len(ops) - maxResolvedOperations
		for _, o := range ops {
			if excess > 0 && o.Status.Terminal() {
				excess--
				continue
			}
			trimmed = append(trimmed, o)
		}
		ops = trimmed
	}
	s.state.PendingOperations = ops
}

// minWorkDurationLocked returns the configured minimum work duration, or
// the fallback when no schedule has been provided yet. Caller holds the
// lock.
func (s *Scheduler) minWorkDurationLocked() time.Duration {
	if !s.scheduleSet {
		return fallbackWorkDuration
	}
	return s.schedule.MinWorkDuration()
}

// persistOperation records a resolved operation, best effort.
func (s *Scheduler) persistOperation(ctx context.Context, op domain.ScheduledOperation) {
	if s.ops == nil {
		return
	}
	if err := s.ops.RecordOperation(ctx, op); err != nil {
		logger.Debug("operation history write failed: %v", err)
	}
}
