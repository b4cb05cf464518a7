// Package errors provides the structured error handling used across spindle.
// It extends Go's standard error handling with string-based error codes,
// context preservation, and helpers for classifying failures by code.
package errors

// ErrorCode represents a specific error condition in the runner.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Resource errors.

	// CodeNotFound indicates a requested resource does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeAlreadyExists indicates a resource already exists and cannot be created again.
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// Permission errors.

	// CodeUnauthorized indicates the request lacks valid authentication credentials.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates a configuration error prevents the operation.
	// Cyclic stage dependencies and malformed pipeline definitions carry this code.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// Execution errors.

	// CodeExecutionFailed indicates a stage command step exited non-zero.
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// CodeBuildFailed indicates an image build operation failed.
	CodeBuildFailed ErrorCode = "BUILD_FAILED"

	// CodePublishFailed indicates a registry publish operation failed.
	CodePublishFailed ErrorCode = "PUBLISH_FAILED"

	// Infrastructure errors.

	// CodeUnavailable indicates an external collaborator is temporarily unreachable.
	CodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeCanceled indicates the surrounding run was canceled before the
	// operation could finish.
	CodeCanceled ErrorCode = "CANCELED"

	// Generic errors.

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)
