package services

import (
	"context"
	"sync"
	"time"

	"github.com/blackbird-labs/punchd/internal/core/ports/driving"
	"github.com/blackbird-labs/punchd/internal/logger"
)

// Default liveness-probe cadence. A probe gap beyond the threshold means
// execution was suspended (system sleep) and the scheduler's timers may
// have been frozen past their deadlines.
const (
	DefaultProbeInterval = 5 * time.Minute
	DefaultGapThreshold  = 10 * time.Minute
)

// Monitor is the wake-gap liveness probe. It measures wall-clock drift
// between ticks and invokes the scheduler's wake-aware reconciliation
// when a gap is detected.
type Monitor struct {
	scheduler driving.ClockScheduler
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewMonitor creates a monitor. Non-positive interval or threshold fall
// back to the defaults.
func NewMonitor(scheduler driving.ClockScheduler, interval, threshold time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if threshold <= 0 {
		threshold = DefaultGapThreshold
	}
	return &Monitor{
		scheduler: scheduler,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
	}
}

// Start begins the probe loop. This method blocks until Stop is called or
// the context is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil // Already running
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	logger.Info("wake monitor started (probe %s, threshold %s)", m.interval, m.threshold)
	return m.run(ctx, stopCh)
}

// Stop shuts down the probe loop and waits for an in-flight
// reconciliation to complete.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
}

// run is the probe loop.
func (m *Monitor) run(ctx context.Context, stopCh chan struct{}) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	last := m.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			now := m.now()
			gap := now.Sub(last)
			last = now
			if gap <= m.threshold {
				continue
			}
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				if _, err := m.scheduler.RunWakeCheck(ctx, gap); err != nil {
					logger.Warn("post-wake reconciliation failed: %v", err)
				}
			}()
		}
	}
}
