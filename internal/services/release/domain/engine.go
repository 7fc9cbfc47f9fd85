package domain

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/releaseline/internal/errors"
	"github.com/louisbranch/releaseline/internal/platform/id"
	"github.com/louisbranch/releaseline/internal/services/release/event"
)

// ErrStoreNotConfigured indicates the engine is missing persistence wiring.
var ErrStoreNotConfigured = errors.New("workflow store is not configured")

// TaskInput describes one task addition request.
type TaskInput struct {
	Title               string
	Description         string
	AssignedDeveloperID string
	OrderIndex          int
}

// Engine owns every workflow state transition over releases, tasks, and
// comments, and emits domain events as a side effect of successful
// transitions.
type Engine struct {
	store     Store
	publisher EventPublisher
	activity  ActivityPusher
	directory DeveloperDirectory
	clock     func() time.Time
	newID     func() (string, error)

	// developerLocks serializes the single-in-process check-then-write per
	// developer, closing the race between concurrent StartTask calls.
	mu             sync.Mutex
	developerLocks map[string]*sync.Mutex
}

// NewEngine constructs the workflow engine. publisher, activity, and
// directory may be nil; clock and newID default to time.Now and id.NewID.
func NewEngine(store Store, publisher EventPublisher, activity ActivityPusher, directory DeveloperDirectory, clock func() time.Time, newID func() (string, error)) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Engine{
		store:          store,
		publisher:      publisher,
		activity:       activity,
		directory:      directory,
		clock:          clock,
		newID:          newID,
		developerLocks: make(map[string]*sync.Mutex),
	}
}

// CreateRelease creates an empty in-progress release.
func (e *Engine) CreateRelease(ctx context.Context, name, description string) (Release, error) {
	if e == nil || e.store == nil {
		return Release{}, ErrStoreNotConfigured
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Release{}, apperrors.New(apperrors.CodeReleaseNameEmpty, "release name is required")
	}

	releaseID, err := e.newID()
	if err != nil {
		return Release{}, err
	}
	now := e.nowUTC()
	release := Release{
		ID:          releaseID,
		Name:        name,
		Description: strings.TrimSpace(description),
		Status:      ReleaseInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.PutRelease(ctx, release); err != nil {
		return Release{}, err
	}
	return release, nil
}

// GetRelease returns one release aggregate by id.
func (e *Engine) GetRelease(ctx context.Context, releaseID string) (Release, error) {
	if e == nil || e.store == nil {
		return Release{}, ErrStoreNotConfigured
	}
	release, err := e.store.GetRelease(ctx, releaseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Release{}, apperrors.New(apperrors.CodeReleaseNotFound, "release not found")
		}
		return Release{}, err
	}
	return release, nil
}

// ListReleases returns every release aggregate.
func (e *Engine) ListReleases(ctx context.Context) ([]Release, error) {
	if e == nil || e.store == nil {
		return nil, ErrStoreNotConfigured
	}
	return e.store.ListReleases(ctx)
}

// AddTask appends a new TODO task to a release. Adding a task to a completed
// release is a hotfix: the release reopens and a hotfix event is emitted in
// addition to the assignment event.
func (e *Engine) AddTask(ctx context.Context, releaseID string, input TaskInput) (Release, error) {
	if e == nil || e.store == nil {
		return Release{}, ErrStoreNotConfigured
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Release{}, apperrors.New(apperrors.CodeTaskTitleEmpty, "task title is required")
	}

	release, err := e.GetRelease(ctx, releaseID)
	if err != nil {
		return Release{}, err
	}

	taskID, err := e.newID()
	if err != nil {
		return Release{}, err
	}
	task := Task{
		ID:                  taskID,
		Title:               title,
		Description:         strings.TrimSpace(input.Description),
		Status:              TaskTodo,
		AssignedDeveloperID: strings.TrimSpace(input.AssignedDeveloperID),
		OrderIndex:          input.OrderIndex,
	}
	release.Tasks = append(release.Tasks, task)

	now := e.nowUTC()
	developerEmail := e.emailFor(ctx, task.AssignedDeveloperID)
	hotfix := release.Status == ReleaseCompleted
	if hotfix {
		release.Status = ReleaseInProgress
		release.Reopened = true
		release.HotfixCount++
		reopenedAt := now
		release.ReopenedAt = &reopenedAt
	}
	release.UpdatedAt = now

	if err := e.store.PutRelease(ctx, release); err != nil {
		return Release{}, err
	}

	if hotfix {
		if e.publisher != nil {
			e.publisher.PublishHotfixTaskAdded(ctx, event.HotfixTaskAdded{
				TaskID:         task.ID,
				DeveloperID:    task.AssignedDeveloperID,
				DeveloperEmail: developerEmail,
				ReleaseID:      release.ID,
				TaskTitle:      task.Title,
			})
		}
		e.push("Hotfix Added", "Hotfix task "+task.Title+" added to release "+release.Name)
	}
	if e.publisher != nil {
		e.publisher.PublishTaskAssigned(ctx, event.TaskAssigned{
			TaskID:         task.ID,
			DeveloperID:    task.AssignedDeveloperID,
			DeveloperEmail: developerEmail,
			ReleaseID:      release.ID,
		})
	}

	return release, nil
}

// StartTask transitions a task to IN_PROCESS for its assigned developer,
// enforcing the single-in-process and sequential-execution rules.
func (e *Engine) StartTask(ctx context.Context, taskID, developerID string) error {
	if e == nil || e.store == nil {
		return ErrStoreNotConfigured
	}

	release, task, err := e.findTask(ctx, taskID)
	if err != nil {
		return err
	}
	if developerID != task.AssignedDeveloperID {
		return apperrors.New(apperrors.CodeDeveloperNotAssigned, "developer is not assigned to this task")
	}

	unlock := e.lockDeveloper(developerID)
	defer unlock()

	active, err := e.store.FindReleasesWithActiveTaskForDeveloper(ctx, developerID)
	if err != nil {
		return err
	}
	if len(active) > 0 {
		return apperrors.New(apperrors.CodeDeveloperTaskActive, "developer already has an in-process task")
	}

	ordered := tasksByOrderIndex(release.Tasks)
	position := taskPosition(ordered, task.ID)
	if position > 0 && ordered[position-1].Status != TaskCompleted {
		return apperrors.New(apperrors.CodePreviousTaskIncomplete, "previous task is not completed")
	}

	now := e.nowUTC()
	task.Status = TaskInProcess
	task.StartedAt = &now
	if err := e.store.PutRelease(ctx, release); err != nil {
		return err
	}

	e.push("Task Started", "Task "+task.Title+" started by "+developerID)
	return nil
}

// CompleteTask transitions a task to COMPLETED and relays a completion event.
func (e *Engine) CompleteTask(ctx context.Context, taskID, developerID string) error {
	if e == nil || e.store == nil {
		return ErrStoreNotConfigured
	}

	release, task, err := e.findTask(ctx, taskID)
	if err != nil {
		return err
	}
	if developerID != task.AssignedDeveloperID {
		return apperrors.New(apperrors.CodeDeveloperNotAssigned, "developer is not assigned to this task")
	}

	now := e.nowUTC()
	task.Status = TaskCompleted
	task.CompletedAt = &now
	release.UpdatedAt = now
	if err := e.store.PutRelease(ctx, release); err != nil {
		return err
	}

	if e.publisher != nil {
		e.publisher.PublishTaskCompleted(ctx, event.TaskCompleted{
			TaskID:      task.ID,
			DeveloperID: developerID,
			ReleaseID:   release.ID,
		})
	}
	e.push("Task Completed", "Task "+task.Title+" completed by "+developerID)
	return nil
}

// CompleteRelease marks a release COMPLETED once every task is completed.
func (e *Engine) CompleteRelease(ctx context.Context, releaseID string) error {
	if e == nil || e.store == nil {
		return ErrStoreNotConfigured
	}

	release, err := e.GetRelease(ctx, releaseID)
	if err != nil {
		return err
	}
	for _, task := range release.Tasks {
		if task.Status != TaskCompleted {
			return apperrors.New(apperrors.CodeReleaseTasksIncomplete, "cannot complete release: not all tasks are completed")
		}
	}

	release.Status = ReleaseCompleted
	release.UpdatedAt = e.nowUTC()
	return e.store.PutRelease(ctx, release)
}

// GetTasksForDeveloper returns every task assigned to a developer across all
// releases.
func (e *Engine) GetTasksForDeveloper(ctx context.Context, developerID string) ([]Task, error) {
	if e == nil || e.store == nil {
		return nil, ErrStoreNotConfigured
	}

	releases, err := e.store.ListReleases(ctx)
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, 0)
	for _, release := range releases {
		for _, task := range release.Tasks {
			if task.AssignedDeveloperID == developerID {
				tasks = append(tasks, task)
			}
		}
	}
	return tasks, nil
}

func (e *Engine) nowUTC() time.Time {
	if e.clock == nil {
		return time.Now().UTC()
	}
	return e.clock().UTC()
}

func (e *Engine) emailFor(ctx context.Context, developerID string) string {
	if e.directory == nil {
		return ""
	}
	return e.directory.EmailFor(ctx, developerID)
}

func (e *Engine) push(eventType string, payload any) {
	if e.activity == nil {
		return
	}
	e.activity.Push(eventType, payload)
}

func (e *Engine) lockDeveloper(developerID string) func() {
	e.mu.Lock()
	lock, ok := e.developerLocks[developerID]
	if !ok {
		lock = &sync.Mutex{}
		e.developerLocks[developerID] = lock
	}
	e.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// findTask loads the release owning taskID and returns a pointer into the
// aggregate's task slice so callers can mutate before persisting.
func (e *Engine) findTask(ctx context.Context, taskID string) (Release, *Task, error) {
	release, err := e.store.FindReleaseByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Release{}, nil, apperrors.New(apperrors.CodeTaskNotFound, "task not found in any release")
		}
		return Release{}, nil, err
	}
	for i := range release.Tasks {
		if release.Tasks[i].ID == taskID {
			return release, &release.Tasks[i], nil
		}
	}
	return Release{}, nil, apperrors.New(apperrors.CodeTaskNotFound, "task not found in any release")
}

// tasksByOrderIndex returns the release tasks sorted by execution order.
// Duplicate order indexes keep insertion order; uniqueness is the caller's
// responsibility.
func tasksByOrderIndex(tasks []Task) []Task {
	ordered := make([]Task, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrderIndex < ordered[j].OrderIndex
	})
	return ordered
}

func taskPosition(ordered []Task, taskID string) int {
	for i := range ordered {
		if ordered[i].ID == taskID {
			return i
		}
	}
	return -1
}
