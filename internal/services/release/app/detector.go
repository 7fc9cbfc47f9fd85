package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/releaseline/internal/services/release/domain"
	"github.com/louisbranch/releaseline/internal/services/release/event"
)

const (
	defaultStaleThreshold = 48 * time.Hour
	defaultDetectInterval = time.Hour
)

// TaskSource lists tasks currently in process across all releases.
type TaskSource interface {
	ListInProcessTasks(ctx context.Context) ([]domain.Task, error)
}

// StalePublisher relays stale task findings onto the event channel.
type StalePublisher interface {
	PublishStaleTaskDetected(ctx context.Context, evt event.StaleTaskDetected)
}

// StaleTaskDetector periodically scans in-process tasks and publishes a
// reminder event for each one active past the threshold. Every sweep
// re-reports still-stale tasks so reminders repeat until the task moves.
type StaleTaskDetector struct {
	source    TaskSource
	publisher StalePublisher
	directory domain.DeveloperDirectory
	threshold time.Duration
	interval  time.Duration
	clock     func() time.Time
	logf      func(format string, args ...any)
}

// NewStaleTaskDetector constructs a detector. Zero threshold and interval
// fall back to 48h and hourly sweeps.
func NewStaleTaskDetector(source TaskSource, publisher StalePublisher, directory domain.DeveloperDirectory, threshold, interval time.Duration, clock func() time.Time, logf func(format string, args ...any)) *StaleTaskDetector {
	if threshold <= 0 {
		threshold = defaultStaleThreshold
	}
	if interval <= 0 {
		interval = defaultDetectInterval
	}
	if clock == nil {
		clock = time.Now
	}
	if logf == nil {
		logf = log.Printf
	}
	return &StaleTaskDetector{
		source:    source,
		publisher: publisher,
		directory: directory,
		threshold: threshold,
		interval:  interval,
		clock:     clock,
		logf:      logf,
	}
}

// Run sweeps on the detector's interval until ctx is canceled.
func (d *StaleTaskDetector) Run(ctx context.Context) error {
	if d == nil || d.source == nil {
		return fmt.Errorf("stale task detector is not configured")
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DetectOnce(ctx, d.clock()); err != nil {
				d.logf("stale task sweep: %v", err)
			}
		}
	}
}

// DetectOnce performs one sweep and returns how many stale tasks were
// reported.
func (d *StaleTaskDetector) DetectOnce(ctx context.Context, now time.Time) (int, error) {
	if d == nil || d.source == nil {
		return 0, fmt.Errorf("stale task detector is not configured")
	}
	if now.IsZero() {
		now = d.clock()
	}

	tasks, err := d.source.ListInProcessTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list in-process tasks: %w", err)
	}

	reported := 0
	for _, task := range tasks {
		if task.StartedAt == nil {
			continue
		}
		elapsed := now.Sub(*task.StartedAt)
		if elapsed < d.threshold {
			continue
		}
		var email string
		if d.directory != nil {
			email = d.directory.EmailFor(ctx, task.AssignedDeveloperID)
		}
		if d.publisher != nil {
			d.publisher.PublishStaleTaskDetected(ctx, event.StaleTaskDetected{
				TaskID:         task.ID,
				DeveloperID:    task.AssignedDeveloperID,
				DeveloperEmail: email,
				Duration:       formatHours(elapsed),
			})
		}
		reported++
	}
	if reported > 0 {
		d.logf("stale task sweep reported %d tasks", reported)
	}
	return reported, nil
}

// formatHours renders an elapsed duration as whole hours, e.g. "49h".
func formatHours(elapsed time.Duration) string {
	return fmt.Sprintf("%dh", int64(elapsed.Hours()))
}
