package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeMalformed     = "MALFORMED_INPUT"
	ErrCodeDepthExceeded = "DEPTH_EXCEEDED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeExecution     = "EXECUTION_ERROR"
	ErrCodeStore         = "STORE_ERROR"
)

// VizError is the structured error type for all hassviz operations.
type VizError struct {
	Code         string         `json:"code"`
	Message      string         `json:"message"`
	Details      map[string]any `json:"details,omitempty"`
	AutomationID string         `json:"automation_id,omitempty"`
	Cause        error          `json:"-"`
}

func (e *VizError) Error() string {
	if e.AutomationID != "" {
		return fmt.Sprintf("[%s] automation %s: %s", e.Code, e.AutomationID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *VizError) Unwrap() error {
	return e.Cause
}

// NewError creates a new VizError.
func NewError(code, message string) *VizError {
	return &VizError{Code: code, Message: message}
}

// NewErrorf creates a new VizError with a formatted message.
func NewErrorf(code, format string, args ...any) *VizError {
	return &VizError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithAutomation attaches an automation ID to the error.
func (e *VizError) WithAutomation(id string) *VizError {
	e.AutomationID = id
	return e
}

// WithCause attaches an underlying cause.
func (e *VizError) WithCause(err error) *VizError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *VizError) WithDetails(details map[string]any) *VizError {
	e.Details = details
	return e
}
