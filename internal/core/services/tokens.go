package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blackbird-labs/punchd/internal/core/domain"
	"github.com/blackbird-labs/punchd/internal/core/ports/driven"
	"github.com/blackbird-labs/punchd/internal/logger"
)

// TokenCoordinator wraps every remote attendance call with the shared
// token policy:
//
//  1. Try once with the stored access token.
//  2. On a token-classified failure, refresh exactly once and overwrite
//     the stored pair in place (fixed keys, never new ones).
//  3. Retry the call exactly once with the new token; that result is
//     final either way.
//  4. Non-token failures and refresh failures are returned unchanged.
//
// It is the single choke point for authentication retry logic; the
// scheduler never talks to the attendance client directly.
type TokenCoordinator struct {
	creds  driven.CredentialStore
	client driven.AttendanceClient
	log    driven.ActivityLog // optional
}

// NewTokenCoordinator creates a coordinator. The activity log may be nil.
func NewTokenCoordinator(
	creds driven.CredentialStore,
	client driven.AttendanceClient,
	log driven.ActivityLog,
) *TokenCoordinator {
	return &TokenCoordinator{
		creds:  creds,
		client: client,
		log:    log,
	}
}

// tokenErrorMarkers classify failures that arrive as bare text instead of
// a *domain.RemoteError. Matched case-insensitively.
var tokenErrorMarkers = []string{
	"401",
	"unauthorized",
	"invalid_token",
	"token_expired",
	"token expired",
}

// isTokenError reports whether a remote failure is attributable to the
// access credential. Structural classification via *domain.RemoteError is
// preferred; the substring markers are a fallback for errors wrapped by
// transports that only preserve text.
func isTokenError(err error) bool {
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		return remote.Unauthorized()
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range tokenErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// callWithTokens applies the shared token policy to one remote operation.
func callWithTokens[T any](
	ctx context.Context,
	c *TokenCoordinator,
	name string,
	op func(ctx context.Context, accessToken string) (T, error),
) (T, error) {
	var zero T

	token, ok, err := c.creds.Get(ctx, domain.AccessTokenKey)
	if err != nil {
		return zero, fmt.Errorf("reading access token: %w", err)
	}
	if !ok || token == "" {
		return zero, fmt.Errorf("%w: no access token stored", domain.ErrAuthRequired)
	}

	result, err := op(ctx, token)
	if err == nil {
		return result, nil
	}
	if !isTokenError(err) {
		return zero, err
	}

	logger.Debug("%s failed with token error, refreshing: %v", name, err)
	pair, refreshErr := c.refresh(ctx)
	if refreshErr != nil {
		return zero, refreshErr
	}

	// Single retry; its outcome is final.
	return op(ctx, pair.AccessToken)
}

// refresh exchanges the stored refresh token for a new pair and overwrites
// both fixed keys atomically with respect to callers of this coordinator.
func (c *TokenCoordinator) refresh(ctx context.Context) (domain.TokenPair, error) {
	start := time.Now()

	refreshToken, ok, err := c.creds.Get(ctx, domain.RefreshTokenKey)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("reading refresh token: %w", err)
	}
	if !ok || refreshToken == "" {
		return domain.TokenPair{}, fmt.Errorf("%w: no refresh token stored", domain.ErrAuthRequired)
	}

	pair, err := c.client.ExchangeRefreshToken(ctx, refreshToken)
	if err != nil {
		c.record(ctx, domain.ActivityTokenRefresh, false, "token refresh failed", start, err)
		return domain.TokenPair{}, fmt.Errorf("%w: %v", domain.ErrTokenRefreshFailed, err)
	}

	// Overwrite the pair in place. Refreshing never creates new keys.
	if err := c.creds.Put(ctx, domain.RefreshTokenKey, pair.RefreshToken); err != nil {
		return domain.TokenPair{}, fmt.Errorf("saving refresh token: %w", err)
	}
	if err := c.creds.Put(ctx, domain.AccessTokenKey, pair.AccessToken); err != nil {
		return domain.TokenPair{}, fmt.Errorf("saving access token: %w", err)
	}

	logger.Debug("tokens refreshed and saved")
	c.record(ctx, domain.ActivityTokenRefresh, true, "tokens refreshed", start, nil)
	return pair, nil
}

// ClockIn performs a clock-in under the shared token policy.
func (c *TokenCoordinator) ClockIn(ctx context.Context, trigger string) error {
	start := time.Now()
	_, err := callWithTokens(ctx, c, "clock-in",
		func(ctx context.Context, token string) (struct{}, error) {
			return struct{}{}, c.client.ClockIn(ctx, token)
		})
	c.recordTriggered(ctx, domain.ActivityClockIn, trigger, start, err)
	return err
}

// ClockOut performs a clock-out under the shared token policy.
func (c *TokenCoordinator) ClockOut(ctx context.Context, trigger string) error {
	start := time.Now()
	_, err := callWithTokens(ctx, c, "clock-out",
		func(ctx context.Context, token string) (struct{}, error) {
			return struct{}{}, c.client.ClockOut(ctx, token)
		})
	c.recordTriggered(ctx, domain.ActivityClockOut, trigger, start, err)
	return err
}

// Attendance fetches today's attendance record under the shared token policy.
func (c *TokenCoordinator) Attendance(ctx context.Context, trigger string) (*domain.AttendanceRecord, error) {
	start := time.Now()
	record, err := callWithTokens(ctx, c, "attendance-check", c.client.TodayAttendance)
	c.recordTriggered(ctx, domain.ActivityAttendanceCheck, trigger, start, err)
	return record, err
}

// HasCredentials reports whether an access token is stored.
func (c *TokenCoordinator) HasCredentials(ctx context.Context) bool {
	token, ok, err := c.creds.Get(ctx, domain.AccessTokenKey)
	return err == nil && ok && token != ""
}

// SaveInitialTokens stores a token pair during setup, under the fixed keys.
func (c *TokenCoordinator) SaveInitialTokens(ctx context.Context, pair domain.TokenPair) error {
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return fmt.Errorf("%w: both tokens are required", domain.ErrInvalidInput)
	}
	if err := c.creds.Put(ctx, domain.RefreshTokenKey, pair.RefreshToken); err != nil {
		return fmt.Errorf("saving refresh token: %w", err)
	}
	if err := c.creds.Put(ctx, domain.AccessTokenKey, pair.AccessToken); err != nil {
		return fmt.Errorf("saving access token: %w", err)
	}
	return nil
}

// record writes a best-effort activity event.
func (c *TokenCoordinator) record(
	ctx context.Context,
	action domain.ActivityAction,
	success bool,
	details string,
	start time.Time,
	opErr error,
) {
	if c.log == nil {
		return
	}
	event := domain.ActivityEvent{
		Timestamp: time.Now(),
		Action:    action,
		Success:   success,
		Details:   details,
		Duration:  time.Since(start),
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	if err := c.log.Record(ctx, event); err != nil {
		logger.Debug("activity log write failed: %v", err)
	}
}

// recordTriggered writes an operation event carrying its trigger.
func (c *TokenCoordinator) recordTriggered(
	ctx context.Context,
	action domain.ActivityAction,
	trigger string,
	start time.Time,
	opErr error,
) {
	if c.log == nil {
		return
	}
	event := domain.ActivityEvent{
		Timestamp: time.Now(),
		Action:    action,
		Success:   opErr == nil,
		Trigger:   trigger,
		Duration:  time.Since(start),
	}
	if opErr == nil {
		event.Details = fmt.Sprintf("%s completed (trigger: %s)", action, trigger)
	} else {
		event.Details = fmt.Sprintf("%s failed (trigger: %s)", action, trigger)
		event.Error = opErr.Error()
	}
	if err := c.log.Record(ctx, event); err != nil {
		logger.Debug("activity log write failed: %v", err)
	}
}
