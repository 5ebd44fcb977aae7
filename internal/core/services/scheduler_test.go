package services

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackbird-labs/punchd/internal/core/domain"
)

func testSchedule() domain.WorkSchedule {
	return domain.WorkSchedule{
		AutoEnabled:            true,
		ClockInTime:            "09:00",
		Timezone:               "UTC",
		MinWorkDurationMinutes: 540,
	}
}

// newTestScheduler builds a scheduler over fakes with a settable clock.
func newTestScheduler(t *testing.T, client *fakeClient, now time.Time) (*Scheduler, *fakeOperationStore) {
	t.Helper()
	ops := &fakeOperationStore{}
	tokens := NewTokenCoordinator(newFakeCredStoreWithTokens(), client, nil)
	s := NewScheduler(tokens, ops, nil)
	s.now = func() time.Time { return now }
	return s, ops
}

func pendingOfKind(state domain.SchedulerState, kind domain.OperationKind) []domain.ScheduledOperation {
	var out []domain.ScheduledOperation
	for _, op := range state.PendingOperations {
		if op.Kind == kind && op.Status == domain.OperationPending {
			out = append(out, op)
		}
	}
	return out
}

func TestScheduler_Start_ArmsClockInToday(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, &fakeClient{}, now)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background(), testSchedule()))

	state := s.State()
	assert.True(t, state.IsRunning)
	pending := pendingOfKind(state, domain.OperationClockIn)
	require.Len(t, pending, 1)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), pending[0].ScheduledTime)
}

func TestScheduler_Start_RollsToTomorrowWhenTimePassed(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, &fakeClient{}, now)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background(), testSchedule()))

	pending := pendingOfKind(s.State(), domain.OperationClockIn)
	require.Len(t, pending, 1)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), pending[0].ScheduledTime)
}

func TestScheduler_Start_ManualModeArmsNothing(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, &fakeClient{}, now)
	defer s.Stop()

	schedule := testSchedule()
	schedule.AutoEnabled = false
	require.NoError(t, s.Start(context.Background(), schedule))

	state := s.State()
	assert.True(t, state.IsRunning)
	assert.Empty(t, state.PendingOperations)
}

func TestScheduler_Start_RejectsInvalidSchedule(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeClient{}, time.Now())

	schedule := testSchedule()
	schedule.ClockInTime = "25:00"
	err := s.Start(context.Background(), schedule)

	require.ErrorIs(t, err, domain.ErrInvalidSchedule)
	assert.False(t, s.State().IsRunning)
}

func TestScheduler_Start_RejectsUnknownTimezone(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeClient{}, time.Now())

	schedule := testSchedule()
	schedule.Timezone = "Mars/Olympus_Mons"
	err := s.Start(context.Background(), schedule)

	require.ErrorIs(t, err, domain.ErrInvalidSchedule)
}

func TestScheduler_Restart_ReplacesPendingOperations(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, &fakeClient{}, now)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background(), testSchedule()))

	later := testSchedule()
	later.ClockInTime = "11:30"
	require.NoError(t, s.Start(context.Background(), later))

	pending := pendingOfKind(s.State(), domain.OperationClockIn)
	require.Len(t, pending, 1)
	assert.Equal(t, time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC), pending[0].ScheduledTime)
}

func TestScheduler_Stop_ClearsPendingAndIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, &fakeClient{}, now)

	require.NoError(t, s.Start(context.Background(), testSchedule()))
	s.Stop()
	s.Stop()

	state := s.State()
	assert.False(t, state.IsRunning)
	assert.Empty(t, state.PendingOperations)
}

func TestScheduler_ManualClockIn_SetsSessionAndArmsClockOut(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	s, _ := newTestScheduler(t, client, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))

	acted, err := s.ManualClockIn(context.Background())

	require.NoError(t, err)
	assert.True(t, acted)
	clockIns, _, _, _ := client.counts()
	assert.Equal(t, 1, clockIns)

	state := s.State()
	session := state.CurrentSession
	assert.True(t, session.ClockedIn)
	assert.Equal(t, now, session.ClockInTime)
	assert.Equal(t, now.Add(9*time.Hour), session.ExpectedClockOutTime)

	// The automatic clock-in was cancelled and a clock-out armed instead.
	assert.Empty(t, pendingOfKind(state, domain.OperationClockIn))
	clockOuts := pendingOfKind(state, domain.OperationClockOut)
	require.Len(t, clockOuts, 1)
	assert.Equal(t, now.Add(9*time.Hour), clockOuts[0].ScheduledTime)
}

func TestScheduler_ManualClockIn_RemoteFailureLeavesStateAlone(t *testing.T) {
	client := &fakeClient{}
	client.clockInFn = func(string) error { return errors.New("boom") }
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, client, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))

	acted, err := s.ManualClockIn(context.Background())

	require.Error(t, err)
	assert.False(t, acted)
	state := s.State()
	assert.False(t, state.CurrentSession.ClockedIn)
	// The automatic clock-in survives the failed manual attempt.
	assert.Len(t, pendingOfKind(state, domain.OperationClockIn), 1)
}

func TestScheduler_ManualClockIn_BeforeStartUsesFallbackDuration(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, &fakeClient{}, now)
	defer s.Stop()

	acted, err := s.ManualClockIn(context.Background())

	require.NoError(t, err)
	assert.True(t, acted)
	session := s.State().CurrentSession
	assert.Equal(t, now.Add(fallbackWorkDuration), session.ExpectedClockOutTime)
}

func TestScheduler_ManualClockOut_NotClockedIn(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeClient{}, time.Now())

	_, err := s.ManualClockOut(context.Background(), false)

	require.ErrorIs(t, err, domain.ErrNotClockedIn)
}

func TestScheduler_ManualClockOut_BeforeMinimumDuration(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	s, _ := newTestScheduler(t, client, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))
	_, err := s.ManualClockIn(context.Background())
	require.NoError(t, err)

	// Only one hour in.
	s.now = func() time.Time { return now.Add(time.Hour) }
	_, err = s.ManualClockOut(context.Background(), false)

	require.ErrorIs(t, err, domain.ErrMinimumDuration)
	assert.True(t, s.State().CurrentSession.ClockedIn)
	_, clockOuts, _, _ := client.counts()
	assert.Zero(t, clockOuts)
}

func TestScheduler_ManualClockOut_BypassesMinimumWithForce(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	s, _ := newTestScheduler(t, client, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))
	_, err := s.ManualClockIn(context.Background())
	require.NoError(t, err)

	s.now = func() time.Time { return now.Add(time.Hour) }
	acted, err := s.ManualClockOut(context.Background(), true)

	require.NoError(t, err)
	assert.True(t, acted)
	state := s.State()
	assert.False(t, state.CurrentSession.ClockedIn)
	assert.True(t, state.CurrentSession.ClockInTime.IsZero())
	// The next day's clock-in was re-armed.
	assert.Len(t, pendingOfKind(state, domain.OperationClockIn), 1)
	assert.Empty(t, pendingOfKind(state, domain.OperationClockOut))
}

func TestScheduler_ManualClockOut_AfterMinimumDuration(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, &fakeClient{}, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))
	_, err := s.ManualClockIn(context.Background())
	require.NoError(t, err)

	s.now = func() time.Time { return now.Add(9*time.Hour + time.Minute) }
	assert.True(t, s.CanClockOut())

	acted, err := s.ManualClockOut(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, acted)
}

func TestScheduler_ExecuteClockIn_CompletesAndArmsClockOut(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	s, ops := newTestScheduler(t, client, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))

	pending := pendingOfKind(s.State(), domain.OperationClockIn)
	require.Len(t, pending, 1)

	// Fire the operation as the timer would.
	fireAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fireAt }
	s.executeClockIn(pending[0].ID)

	state := s.State()
	assert.True(t, state.CurrentSession.ClockedIn)
	assert.Equal(t, fireAt, state.CurrentSession.ClockInTime)
	require.Len(t, pendingOfKind(state, domain.OperationClockOut), 1)

	recorded, err := ops.RecentOperations(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, domain.OperationCompleted, recorded[0].Status)
	assert.Equal(t, fireAt, recorded[0].ActualTime)
}

func TestScheduler_ExecuteClockIn_FailureDoesNotRetry(t *testing.T) {
	client := &fakeClient{}
	client.clockInFn = func(string) error { return errors.New("service down") }
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	s, ops := newTestScheduler(t, client, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))

	pending := pendingOfKind(s.State(), domain.OperationClockIn)
	require.Len(t, pending, 1)
	s.executeClockIn(pending[0].ID)

	state := s.State()
	assert.False(t, state.CurrentSession.ClockedIn)
	assert.Equal(t, "service down", state.LastError)
	// No clock-out armed and no fresh clock-in: next arming happens after a
	// completed clock-out or a restart.
	assert.Empty(t, pendingOfKind(state, domain.OperationClockIn))
	assert.Empty(t, pendingOfKind(state, domain.OperationClockOut))

	recorded, err := ops.RecentOperations(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, domain.OperationFailed, recorded[0].Status)
	assert.Equal(t, "service down", recorded[0].ErrorMessage)
}

func TestScheduler_ExecuteClockIn_IgnoresCancelledOperation(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	s, _ := newTestScheduler(t, client, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))

	pending := pendingOfKind(s.State(), domain.OperationClockIn)
	require.Len(t, pending, 1)
	id := pending[0].ID

	s.mu.Lock()
	s.cancelPendingLocked(domain.OperationClockIn)
	s.mu.Unlock()

	s.executeClockIn(id)

	clockIns, _, _, _ := client.counts()
	assert.Zero(t, clockIns)
	assert.False(t, s.State().CurrentSession.ClockedIn)
}

func TestScheduler_ExecuteClockOut_CompletesAndRearmsClockIn(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, &fakeClient{}, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))
	_, err := s.ManualClockIn(context.Background())
	require.NoError(t, err)

	pending := pendingOfKind(s.State(), domain.OperationClockOut)
	require.Len(t, pending, 1)

	fireAt := now.Add(9 * time.Hour)
	s.now = func() time.Time { return fireAt }
	s.executeClockOut(pending[0].ID)

	state := s.State()
	assert.False(t, state.CurrentSession.ClockedIn)
	nextIn := pendingOfKind(state, domain.OperationClockIn)
	require.Len(t, nextIn, 1)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), nextIn[0].ScheduledTime)
}

func TestScheduler_ExecuteClockOut_FailureKeepsSession(t *testing.T) {
	client := &fakeClient{}
	client.clockOutFn = func(string) error { return errors.New("boom") }
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, client, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))
	_, err := s.ManualClockIn(context.Background())
	require.NoError(t, err)

	pending := pendingOfKind(s.State(), domain.OperationClockOut)
	require.Len(t, pending, 1)
	s.executeClockOut(pending[0].ID)

	state := s.State()
	// Fail safe: still clocked in so a human can intervene.
	assert.True(t, state.CurrentSession.ClockedIn)
	assert.Equal(t, "boom", state.LastError)
	assert.Empty(t, pendingOfKind(state, domain.OperationClockIn))
}

func TestScheduler_SecondClockOutArmReplacesFirst(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, &fakeClient{}, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))

	s.mu.Lock()
	s.armClockOutLocked(now.Add(2 * time.Hour))
	s.armClockOutLocked(now.Add(3 * time.Hour))
	s.mu.Unlock()

	pending := pendingOfKind(s.State(), domain.OperationClockOut)
	require.Len(t, pending, 1)
	assert.Equal(t, now.Add(3*time.Hour), pending[0].ScheduledTime)
}

func TestScheduler_State_ReturnsIndependentSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, &fakeClient{}, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))

	snapshot := s.State()
	require.NotEmpty(t, snapshot.PendingOperations)
	snapshot.PendingOperations[0].Status = domain.OperationFailed

	assert.Equal(t, domain.OperationPending, s.State().PendingOperations[0].Status)
}

func TestScheduler_ExecuteClockIn_StopMidCallStillRecordsOutcome(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	entered := make(chan struct{})
	release := make(chan struct{})
	client.clockInFn = func(string) error {
		close(entered)
		<-release
		return nil
	}
	s, ops := newTestScheduler(t, client, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))

	pending := pendingOfKind(s.State(), domain.OperationClockIn)
	require.Len(t, pending, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.executeClockIn(pending[0].ID)
	}()
	<-entered
	s.Stop()
	close(release)
	<-done

	// The remote call went through, so the outcome must be durable even
	// though Stop dropped the operation from the pending list.
	clockIns, _, _, _ := client.counts()
	assert.Equal(t, 1, clockIns)
	recorded, err := ops.RecentOperations(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, domain.OperationCompleted, recorded[0].Status)

	// A stopped engine stays quiescent: no adopted session, no new timers.
	state := s.State()
	assert.False(t, state.IsRunning)
	assert.False(t, state.CurrentSession.ClockedIn)
	assert.Empty(t, state.PendingOperations)
}

func TestScheduler_ExecuteClockOut_RestartMidCallStillClosesSession(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	entered := make(chan struct{})
	release := make(chan struct{})
	client.clockOutFn = func(string) error {
		close(entered)
		<-release
		return nil
	}
	s, ops := newTestScheduler(t, client, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))
	_, err := s.ManualClockIn(context.Background())
	require.NoError(t, err)

	pending := pendingOfKind(s.State(), domain.OperationClockOut)
	require.Len(t, pending, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.executeClockOut(pending[0].ID)
	}()
	<-entered
	// A restart mid-call replaces the pending list wholesale.
	require.NoError(t, s.Start(context.Background(), testSchedule()))
	close(release)
	<-done

	// The remote session really closed, so the local session resets and
	// the outcome lands in the store.
	state := s.State()
	assert.False(t, state.CurrentSession.ClockedIn)
	recorded, err := ops.RecentOperations(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, domain.OperationCompleted, recorded[0].Status)

	// The restart armed its own clock-in; the finishing call must not
	// stack a second one.
	assert.Len(t, pendingOfKind(state, domain.OperationClockIn), 1)
}

func TestClampClockOutDelay(t *testing.T) {
	assert.Equal(t, minTimerDelay, clampClockOutDelay(-time.Hour))
	assert.Equal(t, minTimerDelay, clampClockOutDelay(0))
	assert.Equal(t, 2*time.Hour, clampClockOutDelay(2*time.Hour))
	assert.Equal(t, maxClockOutDelay, clampClockOutDelay(maxClockOutDelay))
	assert.Equal(t, cappedClockOutWait, clampClockOutDelay(30*time.Hour))
}

func TestScheduler_ArmClockOut_PastDeadlineFiresWithinOneTick(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	s, _ := newTestScheduler(t, client, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))

	s.mu.Lock()
	s.armClockOutLocked(now.Add(-time.Hour))
	s.mu.Unlock()

	require.Eventually(t, func() bool {
		_, clockOuts, _, _ := client.counts()
		return clockOuts == 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_ArmClockOut_FarDeadlineArmsCappedWait(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, &fakeClient{}, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))

	s.mu.Lock()
	s.armClockOutLocked(now.Add(48 * time.Hour))
	delay := clampClockOutDelay(now.Add(48 * time.Hour).Sub(s.now()))
	s.mu.Unlock()

	assert.Equal(t, cappedClockOutWait, delay)
	pending := pendingOfKind(s.State(), domain.OperationClockOut)
	require.Len(t, pending, 1)
	assert.Equal(t, now.Add(48*time.Hour), pending[0].ScheduledTime)
}

func TestScheduler_OperationListIsBounded(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s, _ := newTestScheduler(t, &fakeClient{}, now)
	defer s.Stop()
	require.NoError(t, s.Start(context.Background(), testSchedule()))

	s.mu.Lock()
	for i := 0; i < maxResolvedOperations*2; i++ {
		s.appendOperationLocked(domain.ScheduledOperation{
			ID:     strconv.Itoa(i),
			Kind:   domain.OperationClockIn,
			Status: domain.OperationCompleted,
		})
	}
	count := len(s.state.PendingOperations)
	s.mu.Unlock()

	assert.LessOrEqual(t, count, maxResolvedOperations)
}
