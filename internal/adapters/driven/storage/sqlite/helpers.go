package sqlite

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// nullString converts an empty string to a NULL value.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// boolToInt converts a bool to SQLite's integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// formatNullableTime renders a timestamp, or NULL for the zero value.
func formatNullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// newID generates a unique row identifier.
func newID() string {
	return uuid.New().String()
}
