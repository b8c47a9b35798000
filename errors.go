package taskweave

import "fmt"

// Error codes for specific failure types
const (
	ErrCodeInvalidConfig        = "INVALID_CONFIG"
	ErrCodeUnknownDependency    = "UNKNOWN_DEPENDENCY"
	ErrCodeCycleDetected        = "CYCLE_DETECTED"
	ErrCodeUnsupportedFramework = "UNSUPPORTED_FRAMEWORK"
	ErrCodeUnsupportedKind      = "UNSUPPORTED_KIND"
	ErrCodeMissingQuestion      = "MISSING_QUESTION"
	ErrCodeReasonerUnavailable  = "REASONER_UNAVAILABLE"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrInvalidConfig        = &Error{Code: ErrCodeInvalidConfig}
	ErrUnknownDependency    = &Error{Code: ErrCodeUnknownDependency}
	ErrCycleDetected        = &Error{Code: ErrCodeCycleDetected}
	ErrUnsupportedFramework = &Error{Code: ErrCodeUnsupportedFramework}
	ErrUnsupportedKind      = &Error{Code: ErrCodeUnsupportedKind}
	ErrMissingQuestion      = &Error{Code: ErrCodeMissingQuestion}
	ErrReasonerUnavailable  = &Error{Code: ErrCodeReasonerUnavailable}
)

// Error is the error type returned by every fatal failure in the orchestration core.
type Error struct {
	Code    string // A machine-readable error code (e.g., ErrCodeCycleDetected)
	Message string // A human-readable message
	Stage   string // The stage where the error occurred (e.g., "config", "planning")
	Cause   error  // The underlying error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error, allowing for error chaining.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error.
func NewError(code, stage, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// Specific error constructors

func NewInvalidConfigError(message string, cause error) *Error {
	return NewError(ErrCodeInvalidConfig, "config", message, cause)
}

func NewUnknownDependencyError(toolName, dependency string) *Error {
	msg := fmt.Sprintf("tool '%s' depends on unknown tool '%s'", toolName, dependency)
	return NewError(ErrCodeUnknownDependency, "planning", msg, nil)
}

func NewCycleDetectedError(unresolved []string) *Error {
	return NewError(ErrCodeCycleDetected, "planning", fmt.Sprintf("dependency cycle among tools %v", unresolved), nil)
}

func NewUnsupportedFrameworkError(framework string) *Error {
	return NewError(ErrCodeUnsupportedFramework, "strategy", fmt.Sprintf("unsupported framework '%s'", framework), nil)
}

func NewUnsupportedKindError(toolName, kind string) *Error {
	return NewError(ErrCodeUnsupportedKind, "execution", fmt.Sprintf("tool '%s' has unsupported kind '%s'", toolName, kind), nil)
}

func NewMissingQuestionError() *Error {
	return NewError(ErrCodeMissingQuestion, "invoke", "request carries neither 'input' nor 'question'", nil)
}

func NewReasonerUnavailableError(cause error) *Error {
	return NewError(ErrCodeReasonerUnavailable, "strategy", "delegated reasoner could not be constructed", cause)
}
