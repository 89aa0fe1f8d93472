package core

import "fmt"

// ErrorKind is the short machine-readable code classifying a dispatch or
// runner failure. The set is closed; every failure surfaced by the engine is
// normalized into one of these kinds.
type ErrorKind string

const (
	// ErrNoRunnerForCapability - no registration declares the requested
	// capability and no default is configured.
	ErrNoRunnerForCapability ErrorKind = "no_runner_for_capability"
	// ErrRunnerNotFound - an explicitly named preferred runner is not registered.
	ErrRunnerNotFound ErrorKind = "runner_not_found"
	// ErrCapabilityMismatch - a named runner exists but does not declare the
	// requested capability.
	ErrCapabilityMismatch ErrorKind = "capability_mismatch"
	// ErrLoadFailed - the runner could not be brought into a ready state for
	// the requested model; run is never attempted afterward for that call.
	ErrLoadFailed ErrorKind = "load_failed"
	// ErrNotStreamingCapable - a stream was requested against a runner that
	// only implements single-shot execution.
	ErrNotStreamingCapable ErrorKind = "not_streaming_capable"
	// ErrProcessingError - an unexpected failure surfaced from within a runner,
	// caught and wrapped at the engine boundary.
	ErrProcessingError ErrorKind = "processing_error"
	// ErrInvalidInput - request contents failed the runner's own validation.
	ErrInvalidInput ErrorKind = "invalid_input"
)

// Error is the typed error envelope carried inside a Result. It implements
// the error interface so runner implementations can also return it directly.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError creates a typed Error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ValidationError represents parameter validation failures with detailed
// field information. Runners return it from ValidateParameters; the engine
// maps it to ErrInvalidInput.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}
