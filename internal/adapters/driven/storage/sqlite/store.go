// Package sqlite provides the SQLite-backed storage for punchd: the
// credential key/value store, the activity log, and the resolved-operation
// history, all in one database file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/blackbird-labs/punchd/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/blackbird-labs/punchd/internal/core/domain"
	"github.com/blackbird-labs/punchd/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to the
// driven store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.punchd.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".punchd")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "punchd.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// CredentialStore returns a CredentialStore interface backed by this store.
func (s *Store) CredentialStore() driven.CredentialStore {
	return &credentialStore{store: s}
}

// ActivityLog returns an ActivityLog interface backed by this store.
func (s *Store) ActivityLog() driven.ActivityLog {
	return &activityLog{store: s}
}

// OperationStore returns an OperationStore interface backed by this store.
func (s *Store) OperationStore() driven.OperationStore {
	return &operationStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// =============================================================================
// CredentialStore Implementation
// =============================================================================

type credentialStore struct {
	store *Store
}

var _ driven.CredentialStore = (*credentialStore)(nil)

// Get retrieves a stored credential value.
func (s *credentialStore) Get(ctx context.Context, key string) (string, bool, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT value FROM credentials WHERE key = ?", key)

	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading credential %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores a credential value, overwriting any previous one.
func (s *credentialStore) Put(ctx context.Context, key, value string) error {
	if key == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO credentials (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))

	if err != nil {
		return fmt.Errorf("saving credential %s: %w", key, err)
	}
	return nil
}

// Delete removes a credential. Deleting an absent key is not an error.
func (s *credentialStore) Delete(ctx context.Context, key string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM credentials WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("deleting credential %s: %w", key, err)
	}
	return nil
}

// =============================================================================
// ActivityLog Implementation
// =============================================================================

// activityRetention is how many activity entries are kept.
const activityRetention = 1000

type activityLog struct {
	store *Store
}

var _ driven.ActivityLog = (*activityLog)(nil)

// Record appends an event to the journal and prunes old entries.
func (l *activityLog) Record(ctx context.Context, event domain.ActivityEvent) error {
	if event.ID == "" {
		event.ID = newID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	_, err := l.store.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, timestamp, action, success, details, trigger_type, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID,
		event.Timestamp.UTC().Format(time.RFC3339),
		string(event.Action),
		boolToInt(event.Success),
		event.Details,
		nullString(event.Trigger),
		event.Duration.Milliseconds(),
		nullString(event.Error))

	if err != nil {
		return fmt.Errorf("recording activity event: %w", err)
	}

	// Bounded journal; rotation formats are out of scope.
	_, err = l.store.db.ExecContext(ctx, `
		DELETE FROM activity_log WHERE id NOT IN (
			SELECT id FROM activity_log ORDER BY timestamp DESC LIMIT ?
		)
	`, activityRetention)
	if err != nil {
		return fmt.Errorf("pruning activity log: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (l *activityLog) Recent(ctx context.Context, limit int) ([]domain.ActivityEvent, error) {
	rows, err := l.store.db.QueryContext(ctx, `
		SELECT id, timestamp, action, success, details, trigger_type, duration_ms, error
		FROM activity_log
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying activity log: %w", err)
	}
	defer rows.Close()

	var events []domain.ActivityEvent //nolint:prealloc // size unknown from query
	for rows.Next() {
		var event domain.ActivityEvent
		var timestamp string
		var action string
		var success int
		var trigger, errText sql.NullString
		var durationMS int64

		if err := rows.Scan(&event.ID, &timestamp, &action, &success,
			&event.Details, &trigger, &durationMS, &errText); err != nil {
			return nil, fmt.Errorf("scanning activity event: %w", err)
		}

		event.Action = domain.ActivityAction(action)
		event.Success = success != 0
		event.Trigger = trigger.String
		event.Error = errText.String
		event.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, err := time.Parse(time.RFC3339, timestamp); err == nil {
			event.Timestamp = ts
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity log: %w", err)
	}
	return events, nil
}

// =============================================================================
// OperationStore Implementation
// =============================================================================

// operationRetention is how many resolved operations are kept.
const operationRetention = 200

type operationStore struct {
	store *Store
}

var _ driven.OperationStore = (*operationStore)(nil)

// RecordOperation stores a terminal-status operation.
func (s *operationStore) RecordOperation(ctx context.Context, op domain.ScheduledOperation) error {
	if op.ID == "" || !op.Status.Terminal() {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO operation_history (id, kind, scheduled_time, actual_time, status, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			actual_time = excluded.actual_time,
			status = excluded.status,
			error = excluded.error
	`, op.ID,
		string(op.Kind),
		op.ScheduledTime.UTC().Format(time.RFC3339),
		formatNullableTime(op.ActualTime),
		string(op.Status),
		nullString(op.ErrorMessage))

	if err != nil {
		return fmt.Errorf("recording operation: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		DELETE FROM operation_history WHERE id NOT IN (
			SELECT id FROM operation_history ORDER BY scheduled_time DESC LIMIT ?
		)
	`, operationRetention)
	if err != nil {
		return fmt.Errorf("pruning operation history: %w", err)
	}
	return nil
}

// RecentOperations returns resolved operations, most recent first.
func (s *operationStore) RecentOperations(ctx context.Context, limit int) ([]domain.ScheduledOperation, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, kind, scheduled_time, actual_time, status, error
		FROM operation_history
		ORDER BY scheduled_time DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying operation history: %w", err)
	}
	defer rows.Close()

	var ops []domain.ScheduledOperation //nolint:prealloc // size unknown from query
	for rows.Next() {
		var op domain.ScheduledOperation
		var kind, status, scheduled string
		var actual, errText sql.NullString

		if err := rows.Scan(&op.ID, &kind, &scheduled, &actual, &status, &errText); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}

		op.Kind = domain.OperationKind(kind)
		op.Status = domain.OperationStatus(status)
		op.ErrorMessage = errText.String
		if ts, err := time.Parse(time.RFC3339, scheduled); err == nil {
			op.ScheduledTime = ts
		}
		if actual.Valid {
			if ts, err := time.Parse(time.RFC3339, actual.String); err == nil {
				op.ActualTime = ts
			}
		}
		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operation history: %w", err)
	}
	return ops, nil
}
