package driven

import (
	"context"

	"github.com/blackbird-labs/punchd/internal/core/domain"
)

// ActivityLog is a best-effort persistent journal of clock operations and
// scheduler events. Callers fire and forget: a Record failure must never
// affect the operation that produced the event.
type ActivityLog interface {
	// Record appends an event to the journal.
	Record(ctx context.Context, event domain.ActivityEvent) error

	// Recent returns the newest entries, most recent first.
	Recent(ctx context.Context, limit int) ([]domain.ActivityEvent, error)
}

// OperationStore persists resolved scheduled operations for observability.
type OperationStore interface {
	// RecordOperation stores a terminal-status operation.
	RecordOperation(ctx context.Context, op domain.ScheduledOperation) error

	// RecentOperations returns resolved operations, most recent first.
	RecentOperations(ctx context.Context, limit int) ([]domain.ScheduledOperation, error)
}
