package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/releaseline/internal/services/release/event"
)

const defaultMonitorInterval = time.Minute

// Pinger reports liveness of one runtime dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrorPublisher relays system error alerts onto the event channel.
type ErrorPublisher interface {
	PublishSystemError(ctx context.Context, evt event.SystemError)
}

// HealthCheck pairs a dependency with the error code reported when its ping
// fails.
type HealthCheck struct {
	Code   string
	Pinger Pinger
}

// HealthMonitor pings runtime dependencies on an interval and publishes a
// system error event for each failure.
type HealthMonitor struct {
	checks    []HealthCheck
	publisher ErrorPublisher
	interval  time.Duration
	clock     func() time.Time
	logf      func(format string, args ...any)
}

// NewHealthMonitor constructs a monitor. Zero interval falls back to one
// minute.
func NewHealthMonitor(checks []HealthCheck, publisher ErrorPublisher, interval time.Duration, clock func() time.Time, logf func(format string, args ...any)) *HealthMonitor {
	if interval <= 0 {
		interval = defaultMonitorInterval
	}
	if clock == nil {
		clock = time.Now
	}
	if logf == nil {
		logf = log.Printf
	}
	return &HealthMonitor{
		checks:    checks,
		publisher: publisher,
		interval:  interval,
		clock:     clock,
		logf:      logf,
	}
}

// Run checks on the monitor's interval until ctx is canceled.
func (m *HealthMonitor) Run(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("health monitor is not configured")
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.CheckOnce(ctx, m.clock())
		}
	}
}

// CheckOnce pings every dependency and returns how many failed.
func (m *HealthMonitor) CheckOnce(ctx context.Context, now time.Time) int {
	if m == nil {
		return 0
	}
	if now.IsZero() {
		now = m.clock()
	}

	failed := 0
	for _, check := range m.checks {
		if check.Pinger == nil {
			continue
		}
		err := check.Pinger.Ping(ctx)
		if err == nil {
			continue
		}
		failed++
		m.logf("health check %s: %v", check.Code, err)
		if m.publisher != nil {
			m.publisher.PublishSystemError(ctx, event.SystemError{
				ErrorCode: check.Code,
				Message:   err.Error(),
				Timestamp: now.UTC(),
			})
		}
	}
	return failed
}
