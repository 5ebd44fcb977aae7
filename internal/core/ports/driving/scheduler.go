package driving

import (
	"context"
	"time"

	"github.com/blackbird-labs/punchd/internal/core/domain"
)

// ClockScheduler is the host-facing surface of the attendance scheduling
// engine. One long-lived instance is owned by the host application and
// shared by every caller; there is no process-wide singleton.
type ClockScheduler interface {
	// Start cancels any armed timers, stores the schedule and, when
	// automatic scheduling is enabled, arms the next clock-in timer.
	Start(ctx context.Context, schedule domain.WorkSchedule) error

	// Stop cancels all armed timers and clears pending operations.
	// Stopping an already stopped scheduler is a no-op.
	Stop()

	// State returns a consistent snapshot of the scheduler state.
	State() domain.SchedulerState

	// ManualClockIn performs a clock-in immediately, bypassing the timer.
	// A success cancels any still-pending automatic clock-in.
	ManualClockIn(ctx context.Context) (bool, error)

	// ManualClockOut performs a clock-out immediately. Unless
	// bypassMinimum is set it is refused before the minimum work duration
	// has elapsed. A success cancels any pending automatic clock-out and
	// re-arms the next clock-in when automatic scheduling is enabled.
	ManualClockOut(ctx context.Context, bypassMinimum bool) (bool, error)

	// CanClockOut reports whether the minimum work duration has elapsed
	// for the open session.
	CanClockOut() bool

	// RunStartupCheck reconciles local session state against the remote
	// attendance record, clocking in or scheduling the missing clock-out
	// as needed. Returns whether any action was taken.
	RunStartupCheck(ctx context.Context) (bool, error)

	// RunWakeCheck is the wake-gap-aware variant of RunStartupCheck,
	// invoked by the host's liveness probe with the detected gap.
	RunWakeCheck(ctx context.Context, gap time.Duration) (bool, error)
}
