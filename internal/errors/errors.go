package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error

	// Diagnostics carries operator-only detail such as engine stderr.
	// It is logged but never returned to API callers.
	Diagnostics string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return &AppError{
			Code:        appErr.Code,
			Message:     message,
			Cause:       err,
			Diagnostics: appErr.Diagnostics,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:        code,
			Message:     appErr.Message,
			Cause:       appErr.Cause,
			Diagnostics: appErr.Diagnostics,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// WithDiagnostics attaches operator-only detail to an AppError
func (e *AppError) WithDiagnostics(diag string) *AppError {
	e.Diagnostics = diag
	return e
}

// As finds the first AppError in the chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	_, ok := As(err)
	return ok
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Is reports whether err carries the given code anywhere in its chain
func Is(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Diagnostics returns the first non-empty diagnostics string in the chain
func Diagnostics(err error) string {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Diagnostics != "" {
			return appErr.Diagnostics
		}
		err = stderrors.Unwrap(err)
	}
	return ""
}

// Predefined error codes
const (
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeValidationError  = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeBusy             = "BUSY"

	// Analysis run failures
	CodeStaging         = "STAGING_ERROR"
	CodeEngineLaunch    = "ENGINE_LAUNCH_ERROR"
	CodeEngineExecution = "ENGINE_EXECUTION_ERROR"
	CodeEngineTimeout   = "ENGINE_TIMEOUT"
	CodeInvalidOutput   = "INVALID_ENGINE_OUTPUT"
	CodeMalformedSchema = "MALFORMED_RESULT_SCHEMA"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func MethodNotAllowed() *AppError {
	return New(CodeMethodNotAllowed, "Method Not Allowed")
}

func Busy(message string) *AppError {
	return New(CodeBusy, message)
}

func StagingError(cause error) *AppError {
	return &AppError{
		Code:    CodeStaging,
		Message: "failed to process uploaded files",
		Cause:   cause,
	}
}

func EngineLaunchError(cause error) *AppError {
	return &AppError{
		Code:    CodeEngineLaunch,
		Message: "analysis engine could not be started",
		Cause:   cause,
	}
}

func EngineExecutionError(exitCode int, stderr string) *AppError {
	return &AppError{
		Code:        CodeEngineExecution,
		Message:     fmt.Sprintf("engine execution failed (exit code %d)", exitCode),
		Diagnostics: stderr,
	}
}

func EngineTimeout(limit fmt.Stringer) *AppError {
	return New(CodeEngineTimeout, fmt.Sprintf("engine did not finish within %s", limit))
}

func InvalidEngineOutput(cause error) *AppError {
	return &AppError{
		Code:    CodeInvalidOutput,
		Message: "invalid engine output",
		Cause:   cause,
	}
}

func MalformedResultSchema(detail string) *AppError {
	return New(CodeMalformedSchema, "malformed result schema: "+detail)
}

// IsOutputDecodeError reports whether the run failed while decoding engine output
func IsOutputDecodeError(err error) bool {
	return Is(err, CodeInvalidOutput) || Is(err, CodeMalformedSchema)
}

// HTTPStatus maps an error to the status code returned at the service boundary
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeInvalidInput, CodeValidationError:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Reason returns the short machine-readable reason string for an error
func Reason(err error) string {
	switch code := GetCode(err); code {
	case "UNKNOWN":
		return "internal_error"
	default:
		return strings.ToLower(code)
	}
}

// PublicMessage returns the message safe to show API callers
func PublicMessage(err error) string {
	switch GetCode(err) {
	case CodeStaging:
		return "Failed to process uploaded files."
	case CodeEngineLaunch:
		return "Analysis engine could not be started."
	case CodeEngineExecution:
		return "Analysis engine failed."
	case CodeEngineTimeout:
		return "Analysis engine timed out."
	case CodeInvalidOutput:
		return "Invalid JSON output from analysis engine."
	case CodeMalformedSchema:
		return "Malformed result schema from analysis engine."
	case CodeMethodNotAllowed:
		return "Method Not Allowed"
	}
	if appErr, ok := As(err); ok {
		return appErr.Message
	}
	return "Internal server error."
}
