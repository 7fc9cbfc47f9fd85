// Package domain implements the release workflow model and its engine: task
// ordering rules, the single-in-process guarantee, hotfix reopening, and the
// nested discussion threads attached to tasks.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/releaseline/internal/services/release/event"
)

// ErrNotFound indicates a requested workflow record is missing from the store.
var ErrNotFound = errors.New("workflow record not found")

// ReleaseStatus is the lifecycle state of a release.
type ReleaseStatus string

const (
	// ReleaseInProgress means the release still has unfinished tasks.
	ReleaseInProgress ReleaseStatus = "IN_PROGRESS"
	// ReleaseCompleted means every task in the release is completed.
	ReleaseCompleted ReleaseStatus = "COMPLETED"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	// TaskTodo means the task has not been started.
	TaskTodo TaskStatus = "TODO"
	// TaskInProcess means the task is being worked on.
	TaskInProcess TaskStatus = "IN_PROCESS"
	// TaskCompleted is the terminal task state.
	TaskCompleted TaskStatus = "COMPLETED"
)

// Release is a versioned unit of work containing an ordered set of tasks.
type Release struct {
	ID          string
	Name        string
	Description string
	Status      ReleaseStatus
	Tasks       []Task
	// Reopened is set once a hotfix task reopens a completed release.
	Reopened    bool
	HotfixCount int
	ReopenedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Task is one unit of work owned by a release. Tasks within a release
// execute in OrderIndex order.
type Task struct {
	ID                  string
	Title               string
	Description         string
	Status              TaskStatus
	AssignedDeveloperID string
	OrderIndex          int
	StartedAt           *time.Time
	CompletedAt         *time.Time
	Comments            []Comment
}

// Comment is one discussion node. Replies form a tree of unbounded depth;
// a reply list only ever grows and nodes are never reparented.
type Comment struct {
	ID        string
	AuthorID  string
	Content   string
	Timestamp time.Time
	Replies   []Comment
}

// Store is the persistence boundary for release aggregates. Lookups return
// ErrNotFound when no aggregate matches.
type Store interface {
	PutRelease(ctx context.Context, release Release) error
	GetRelease(ctx context.Context, id string) (Release, error)
	ListReleases(ctx context.Context) ([]Release, error)
	FindReleaseByTaskID(ctx context.Context, taskID string) (Release, error)
	FindReleaseByCommentID(ctx context.Context, commentID string) (Release, error)
	FindReleasesWithActiveTaskForDeveloper(ctx context.Context, developerID string) ([]Release, error)
}

// EventPublisher relays workflow events downstream. Implementations are
// fire-and-forget: channel failures are logged, never returned, so a
// persisted state change cannot be rolled back by a relay problem.
type EventPublisher interface {
	PublishTaskAssigned(ctx context.Context, evt event.TaskAssigned)
	PublishTaskCompleted(ctx context.Context, evt event.TaskCompleted)
	PublishHotfixTaskAdded(ctx context.Context, evt event.HotfixTaskAdded)
}

// ActivityPusher receives live workflow notifications for UI fan-out.
type ActivityPusher interface {
	Push(eventType string, payload any)
}

// DeveloperDirectory resolves developer contact details. A failed lookup
// yields an empty email and events carry only the developer id.
type DeveloperDirectory interface {
	EmailFor(ctx context.Context, developerID string) string
}
