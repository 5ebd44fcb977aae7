package driven

import (
	"context"

	"github.com/blackbird-labs/punchd/internal/core/domain"
)

// AttendanceClient performs the remote attendance operations. Failures
// should be returned as *domain.RemoteError where a status code is known,
// so the token coordinator can classify credential errors structurally.
type AttendanceClient interface {
	// ClockIn records the start of a work session.
	ClockIn(ctx context.Context, accessToken string) error

	// ClockOut records the end of a work session.
	ClockOut(ctx context.Context, accessToken string) error

	// TodayAttendance fetches today's attendance record. Returns nil and
	// no error when the remote service has no record for today.
	TodayAttendance(ctx context.Context, accessToken string) (*domain.AttendanceRecord, error)

	// ExchangeRefreshToken trades the stored refresh token for a new
	// access/refresh pair.
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (domain.TokenPair, error)
}
