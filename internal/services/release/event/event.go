// Package event defines the workflow events relayed to the notification
// consumer and the publisher that writes them to the event channel.
package event

import "time"

// Kind routes one workflow event on its channel.
type Kind string

const (
	// KindAssigned records a task assignment.
	KindAssigned Kind = "assigned"
	// KindCompleted records a task completion.
	KindCompleted Kind = "completed"
	// KindHotfix records a hotfix task added to a completed release.
	KindHotfix Kind = "hotfix"
	// KindStale records a task stuck in progress past the threshold.
	KindStale Kind = "stale"
	// KindError records a system health failure.
	KindError Kind = "error"
)

// Channel names shared by the release publisher and the notifier consumer.
const (
	// ChannelTaskRelay carries task workflow events.
	ChannelTaskRelay = "task-relay"
	// ChannelSystemEvents carries system error alerts.
	ChannelSystemEvents = "system-events"
)

// TaskAssigned is published when a task is added to a release.
type TaskAssigned struct {
	TaskID         string `json:"taskId"`
	DeveloperID    string `json:"developerId"`
	DeveloperEmail string `json:"developerEmail,omitempty"`
	ReleaseID      string `json:"releaseId"`
}

// TaskCompleted is published when a task reaches COMPLETED.
type TaskCompleted struct {
	TaskID      string `json:"taskId"`
	DeveloperID string `json:"developerId"`
	ReleaseID   string `json:"releaseId"`
}

// HotfixTaskAdded is published alongside TaskAssigned when a task addition
// reopens a completed release.
type HotfixTaskAdded struct {
	TaskID         string `json:"taskId"`
	DeveloperID    string `json:"developerId"`
	DeveloperEmail string `json:"developerEmail,omitempty"`
	ReleaseID      string `json:"releaseId"`
	TaskTitle      string `json:"taskTitle"`
}

// StaleTaskDetected is published by the stale-task detector for every task
// found stuck in progress past the threshold.
type StaleTaskDetected struct {
	TaskID         string `json:"taskId"`
	DeveloperID    string `json:"developerId"`
	DeveloperEmail string `json:"developerEmail,omitempty"`
	// Duration is the elapsed in-process time rendered as whole hours, e.g. "48h".
	Duration string `json:"duration"`
}

// SystemError is published by the health monitor when a dependency fails.
type SystemError struct {
	ErrorCode string    `json:"errorCode"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
