// Package attendance implements the remote attendance API client.
package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/blackbird-labs/punchd/internal/core/domain"
	"github.com/blackbird-labs/punchd/internal/core/ports/driven"
)

// API paths on the attendance service.
const (
	clockInPath    = "/dtr/attendance/login"
	clockOutPath   = "/dtr/attendance/logout"
	attendancePath = "/dtr/attendance/today"
	tokenPath      = "/auth/v1/auth/protocol/openid-connect/token"
)

// requestRate throttles calls to the attendance API. The engine makes a
// bounded number of calls per operation, but reconciliation after wake
// storms should not hammer the service.
const requestRate = rate.Limit(1)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the attendance service root, without a trailing slash.
	BaseURL string

	// ClientID identifies this application to the token endpoint.
	ClientID string

	// Timeout bounds each HTTP round trip. Zero means 30 seconds.
	Timeout time.Duration
}

// Client talks to the remote attendance service.
type Client struct {
	baseURL    string
	oauth      *oauth2.Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ driven.AttendanceClient = (*Client)(nil)

// NewClient creates an attendance client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", domain.ErrInvalidInput)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		baseURL: baseURL,
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				TokenURL: baseURL + tokenPath,
			},
		},
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(requestRate, 2),
	}, nil
}

// ClockIn records the start of a work session.
func (c *Client) ClockIn(ctx context.Context, accessToken string) error {
	return c.post(ctx, clockInPath, accessToken)
}

// ClockOut records the end of a work session.
func (c *Client) ClockOut(ctx context.Context, accessToken string) error {
	return c.post(ctx, clockOutPath, accessToken)
}

// attendanceResponse is the wire shape of today's attendance record.
type attendanceResponse struct {
	Status      string `json:"status"`
	RestDay     bool   `json:"rest_day"`
	OnLeave     bool   `json:"on_leave"`
	DateTimeIn  string `json:"date_time_in"`
	DateTimeOut string `json:"date_time_out"`
}

// TodayAttendance fetches today's attendance record. A 404 means the
// service has no record for today and is not an error.
func (c *Client) TodayAttendance(ctx context.Context, accessToken string) (*domain.AttendanceRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+attendancePath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("attendance request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(resp)
	}

	var wire attendanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode attendance response: %w", err)
	}

	return &domain.AttendanceRecord{
		Status:      domain.AttendanceStatus(wire.Status),
		RestDay:     wire.RestDay,
		OnLeave:     wire.OnLeave,
		DateTimeIn:  wire.DateTimeIn,
		DateTimeOut: wire.DateTimeOut,
	}, nil
}

// ExchangeRefreshToken trades the refresh token for a new pair via the
// standard refresh-token grant.
func (c *Client) ExchangeRefreshToken(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.TokenPair{}, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	source := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("token exchange: %w", err)
	}

	pair := domain.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if pair.RefreshToken == "" {
		// Some deployments do not rotate the refresh token; keep the
		// current one so the stored pair stays usable.
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

// Unconfigured returns a client whose every call fails with a setup
// hint. The composition root uses it before a base URL is configured so
// the rest of the service graph can still be built.
func Unconfigured() driven.AttendanceClient {
	return unconfiguredClient{}
}

type unconfiguredClient struct{}

var errUnconfigured = errors.New("attendance service not configured; run setup first")

func (unconfiguredClient) ClockIn(context.Context, string) error  { return errUnconfigured }
func (unconfiguredClient) ClockOut(context.Context, string) error { return errUnconfigured }

func (unconfiguredClient) TodayAttendance(context.Context, string) (*domain.AttendanceRecord, error) {
	return nil, errUnconfigured
}

func (unconfiguredClient) ExchangeRefreshToken(context.Context, string) (domain.TokenPair, error) {
	return domain.TokenPair{}, errUnconfigured
}

// post sends an empty-bodied authenticated POST to a clock endpoint.
func (c *Client) post(ctx context.Context, path, accessToken string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return remoteError(resp)
	}
	return nil
}

// remoteError builds a classified error from a non-success response.
func remoteError(resp *http.Response) error {
	message := resp.Status

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(body) > 0 {
		var envelope struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
			Message     string `json:"message"`
		}
		if jsonErr := json.Unmarshal(body, &envelope); jsonErr == nil {
			switch {
			case envelope.Error != "":
				message = strings.TrimSpace(envelope.Error + " " + envelope.Description)
			case envelope.Message != "":
				message = envelope.Message
			}
		}
	}

	return &domain.RemoteError{
		Message:    message,
		StatusCode: resp.StatusCode,
	}
}
