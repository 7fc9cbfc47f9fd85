package errors

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
}

// Error returns the human-readable message.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// New constructs a coded error with a message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsNotFound reports whether the error names a missing release, task, or comment.
func IsNotFound(err error) bool {
	return GetCode(err).GRPCCode() == codes.NotFound
}

// IsForbidden reports whether the error is an actor-assignment mismatch.
func IsForbidden(err error) bool {
	return GetCode(err).GRPCCode() == codes.PermissionDenied
}

// IsConflict reports whether the error is a workflow-rule violation.
func IsConflict(err error) bool {
	return GetCode(err).GRPCCode() == codes.FailedPrecondition
}

// HandleError converts domain errors to gRPC status for client responses.
func HandleError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return status.Error(appErr.Code.GRPCCode(), appErr.Message)
	}

	// Unknown error - return internal with generic message
	return status.Error(codes.Internal, "an unexpected error occurred")
}
