package services

import (
	"context"
	"sync"

	"github.com/blackbird-labs/punchd/internal/core/domain"
)

// fakeCredStore is an in-memory credential store.
type fakeCredStore struct {
	mu     sync.Mutex
	values map[string]string
	puts   []string // keys, in Put order
	getErr error
	putErr error
}

func newFakeCredStore() *fakeCredStore {
	return &fakeCredStore{values: make(map[string]string)}
}

func newFakeCredStoreWithTokens() *fakeCredStore {
	s := newFakeCredStore()
	s.values[domain.AccessTokenKey] = "access-1"
	s.values[domain.RefreshTokenKey] = "refresh-1"
	return s
}

func (s *fakeCredStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", false, s.getErr
	}
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *fakeCredStore) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.values[key] = value
	s.puts = append(s.puts, key)
	return nil
}

func (s *fakeCredStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *fakeCredStore) value(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// fakeClient is an attendance client with programmable behaviour. The
// function fields may be nil, in which case the call succeeds with zero
// values. Call counts are tracked per operation.
type fakeClient struct {
	mu sync.Mutex

	clockInFn    func(token string) error
	clockOutFn   func(token string) error
	attendanceFn func(token string) (*domain.AttendanceRecord, error)
	exchangeFn   func(refreshToken string) (domain.TokenPair, error)

	clockIns   int
	clockOuts  int
	checks     int
	exchanges  int
	seenTokens []string
}

func (c *fakeClient) ClockIn(_ context.Context, token string) error {
	c.mu.Lock()
	c.clockIns++
	c.seenTokens = append(c.seenTokens, token)
	fn := c.clockInFn
	c.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(token)
}

func (c *fakeClient) ClockOut(_ context.Context, token string) error {
	c.mu.Lock()
	c.clockOuts++
	c.seenTokens = append(c.seenTokens, token)
	fn := c.clockOutFn
	c.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(token)
}

func (c *fakeClient) TodayAttendance(_ context.Context, token string) (*domain.AttendanceRecord, error) {
	c.mu.Lock()
	c.checks++
	c.seenTokens = append(c.seenTokens, token)
	fn := c.attendanceFn
	c.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(token)
}

func (c *fakeClient) ExchangeRefreshToken(_ context.Context, refreshToken string) (domain.TokenPair, error) {
	c.mu.Lock()
	c.exchanges++
	fn := c.exchangeFn
	c.mu.Unlock()
	if fn == nil {
		return domain.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
	}
	return fn(refreshToken)
}

func (c *fakeClient) counts() (clockIns, clockOuts, checks, exchanges int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clockIns, c.clockOuts, c.checks, c.exchanges
}

// fakeActivityLog records events in memory.
type fakeActivityLog struct {
	mu     sync.Mutex
	events []domain.ActivityEvent
}

func (l *fakeActivityLog) Record(_ context.Context, event domain.ActivityEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *fakeActivityLog) Recent(_ context.Context, limit int) ([]domain.ActivityEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := make([]domain.ActivityEvent, 0, limit)
	for i := len(l.events) - 1; i >= 0 && len(events) < limit; i-- {
		events = append(events, l.events[i])
	}
	return events, nil
}

func (l *fakeActivityLog) byAction(action domain.ActivityAction) []domain.ActivityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.ActivityEvent
	for _, e := range l.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// fakeOperationStore records resolved operations in memory.
type fakeOperationStore struct {
	mu  sync.Mutex
	ops []domain.ScheduledOperation
}

func (s *fakeOperationStore) RecordOperation(_ context.Context, op domain.ScheduledOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, op)
	return nil
}

func (s *fakeOperationStore) RecentOperations(_ context.Context, limit int) ([]domain.ScheduledOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := make([]domain.ScheduledOperation, 0, limit)
	for i := len(s.ops) - 1; i >= 0 && len(ops) < limit; i-- {
		ops = append(ops, s.ops[i])
	}
	return ops, nil
}
