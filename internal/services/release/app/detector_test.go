package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/releaseline/internal/services/release/domain"
	"github.com/louisbranch/releaseline/internal/services/release/event"
)

type fakeTaskSource struct {
	tasks []domain.Task
	err   error
}

func (s *fakeTaskSource) ListInProcessTasks(ctx context.Context) ([]domain.Task, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tasks, nil
}

type staleRecorder struct {
	mu     sync.Mutex
	events []event.StaleTaskDetected
}

func (r *staleRecorder) PublishStaleTaskDetected(ctx context.Context, evt event.StaleTaskDetected) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func inProcessTask(id, developer string, startedAt time.Time) domain.Task {
	return domain.Task{
		ID:                  id,
		Status:              domain.TaskInProcess,
		AssignedDeveloperID: developer,
		StartedAt:           &startedAt,
	}
}

func TestDetectOnceReportsTasksPastThreshold(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC)
	source := &fakeTaskSource{tasks: []domain.Task{
		inProcessTask("t1", "alice", now.Add(-49*time.Hour)),
		inProcessTask("t2", "bob", now.Add(-12*time.Hour)),
		inProcessTask("t3", "carol", now.Add(-48*time.Hour)),
	}}
	recorder := &staleRecorder{}
	detector := NewStaleTaskDetector(source, recorder, nil, 0, 0, nil, func(string, ...any) {})

	reported, err := detector.DetectOnce(context.Background(), now)
	if err != nil {
		t.Fatalf("DetectOnce: %v", err)
	}
	if reported != 2 {
		t.Fatalf("reported = %d, want 2", reported)
	}
	if len(recorder.events) != 2 {
		t.Fatalf("published = %d events, want 2", len(recorder.events))
	}
	if recorder.events[0].TaskID != "t1" || recorder.events[0].Duration != "49h" {
		t.Fatalf("first event = %+v, want t1/49h", recorder.events[0])
	}
	if recorder.events[1].TaskID != "t3" || recorder.events[1].Duration != "48h" {
		t.Fatalf("second event = %+v, want t3/48h", recorder.events[1])
	}
}

func TestDetectOnceReportsSameTaskEverySweep(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC)
	source := &fakeTaskSource{tasks: []domain.Task{
		inProcessTask("t1", "alice", now.Add(-50*time.Hour)),
	}}
	recorder := &staleRecorder{}
	detector := NewStaleTaskDetector(source, recorder, nil, 0, 0, nil, func(string, ...any) {})
	ctx := context.Background()

	if _, err := detector.DetectOnce(ctx, now); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if _, err := detector.DetectOnce(ctx, now.Add(time.Hour)); err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	if len(recorder.events) != 2 {
		t.Fatalf("published = %d events, want repeat reminders", len(recorder.events))
	}
	if recorder.events[1].Duration != "51h" {
		t.Fatalf("second reminder duration = %q, want %q", recorder.events[1].Duration, "51h")
	}
}

func TestDetectOnceResolvesDeveloperEmail(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC)
	source := &fakeTaskSource{tasks: []domain.Task{
		inProcessTask("t1", "alice", now.Add(-72*time.Hour)),
	}}
	recorder := &staleRecorder{}
	directory := ParseDirectory("alice=alice@dev.example")
	detector := NewStaleTaskDetector(source, recorder, directory, 0, 0, nil, func(string, ...any) {})

	if _, err := detector.DetectOnce(context.Background(), now); err != nil {
		t.Fatalf("DetectOnce: %v", err)
	}
	if recorder.events[0].DeveloperEmail != "alice@dev.example" {
		t.Fatalf("email = %q, want alice@dev.example", recorder.events[0].DeveloperEmail)
	}
}

func TestDetectOncePropagatesSourceError(t *testing.T) {
	t.Parallel()

	source := &fakeTaskSource{err: errors.New("db locked")}
	detector := NewStaleTaskDetector(source, &staleRecorder{}, nil, 0, 0, nil, func(string, ...any) {})

	_, err := detector.DetectOnce(context.Background(), time.Now())
	if err == nil {
		t.Fatal("expected error from source")
	}
}

func TestDetectOnceSkipsTasksWithoutStart(t *testing.T) {
	t.Parallel()

	source := &fakeTaskSource{tasks: []domain.Task{
		{ID: "t1", Status: domain.TaskInProcess, AssignedDeveloperID: "alice"},
	}}
	recorder := &staleRecorder{}
	detector := NewStaleTaskDetector(source, recorder, nil, 0, 0, nil, func(string, ...any) {})

	reported, err := detector.DetectOnce(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("DetectOnce: %v", err)
	}
	if reported != 0 {
		t.Fatalf("reported = %d, want 0", reported)
	}
}
