package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/releaseline/internal/services/release/event"
)

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(ctx context.Context) error {
	return p.err
}

type errorRecorder struct {
	mu     sync.Mutex
	events []event.SystemError
}

func (r *errorRecorder) PublishSystemError(ctx context.Context, evt event.SystemError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func TestCheckOnceHealthyDependencies(t *testing.T) {
	t.Parallel()

	recorder := &errorRecorder{}
	monitor := NewHealthMonitor(
		[]HealthCheck{
			{Code: storeDownErrorCode, Pinger: &fakePinger{}},
			{Code: channelDownErrorCode, Pinger: &fakePinger{}},
		},
		recorder,
		0,
		nil,
		func(string, ...any) {},
	)

	failed := monitor.CheckOnce(context.Background(), time.Now())
	if failed != 0 {
		t.Fatalf("failed = %d, want 0", failed)
	}
	if len(recorder.events) != 0 {
		t.Fatalf("published %d events, want 0", len(recorder.events))
	}
}

func TestCheckOncePublishesFailures(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC)
	recorder := &errorRecorder{}
	monitor := NewHealthMonitor(
		[]HealthCheck{
			{Code: storeDownErrorCode, Pinger: &fakePinger{err: errors.New("db locked")}},
			{Code: channelDownErrorCode, Pinger: &fakePinger{}},
		},
		recorder,
		0,
		nil,
		func(string, ...any) {},
	)

	failed := monitor.CheckOnce(context.Background(), now)
	if failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}
	if len(recorder.events) != 1 {
		t.Fatalf("published %d events, want 1", len(recorder.events))
	}
	evt := recorder.events[0]
	if evt.ErrorCode != storeDownErrorCode {
		t.Fatalf("error code = %q, want %q", evt.ErrorCode, storeDownErrorCode)
	}
	if evt.Message != "db locked" {
		t.Fatalf("message = %q, want %q", evt.Message, "db locked")
	}
	if !evt.Timestamp.Equal(now) {
		t.Fatalf("timestamp = %v, want %v", evt.Timestamp, now)
	}
}

func TestCheckOnceSkipsNilPingers(t *testing.T) {
	t.Parallel()

	recorder := &errorRecorder{}
	monitor := NewHealthMonitor(
		[]HealthCheck{{Code: storeDownErrorCode}},
		recorder,
		0,
		nil,
		func(string, ...any) {},
	)

	if failed := monitor.CheckOnce(context.Background(), time.Now()); failed != 0 {
		t.Fatalf("failed = %d, want 0", failed)
	}
}
