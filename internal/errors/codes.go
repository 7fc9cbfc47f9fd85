// Package errors provides structured error handling for workflow operations.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Lookup errors
	CodeReleaseNotFound Code = "RELEASE_NOT_FOUND"
	CodeTaskNotFound    Code = "TASK_NOT_FOUND"
	CodeCommentNotFound Code = "COMMENT_NOT_FOUND"

	// Assignment errors
	CodeDeveloperNotAssigned Code = "DEVELOPER_NOT_ASSIGNED"

	// Workflow rule errors
	CodeDeveloperTaskActive    Code = "DEVELOPER_TASK_ACTIVE"
	CodePreviousTaskIncomplete Code = "PREVIOUS_TASK_INCOMPLETE"
	CodeReleaseTasksIncomplete Code = "RELEASE_TASKS_INCOMPLETE"

	// Input errors
	CodeReleaseNameEmpty Code = "RELEASE_NAME_EMPTY"
	CodeTaskTitleEmpty   Code = "TASK_TITLE_EMPTY"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeReleaseNameEmpty,
		CodeTaskTitleEmpty:
		return codes.InvalidArgument

	// FailedPrecondition - workflow state doesn't allow the operation
	case CodeDeveloperTaskActive,
		CodePreviousTaskIncomplete,
		CodeReleaseTasksIncomplete:
		return codes.FailedPrecondition

	// PermissionDenied - actor mismatch against assignment
	case CodeDeveloperNotAssigned:
		return codes.PermissionDenied

	// NotFound - resource doesn't exist
	case CodeReleaseNotFound,
		CodeTaskNotFound,
		CodeCommentNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
