package errors

import (
	stderrors "errors"
	"fmt"
)

// GrantError is the structured error type for grantlens.
// It carries enough context for logging, CLI output and HTTP responses.
type GrantError struct {
	// Code is the unique error code (e.g., "ERR_404_QUERY_EMPTY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Data, Collaborator, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *GrantError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *GrantError) Unwrap() error {
	return e.Cause
}

// Is matches another GrantError by code, so errors.Is works across wrapping.
func (e *GrantError) Is(target error) bool {
	if t, ok := target.(*GrantError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *GrantError) WithDetail(key, value string) *GrantError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *GrantError) WithSuggestion(suggestion string) *GrantError {
	e.Suggestion = suggestion
	return e
}

// New creates a new GrantError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *GrantError {
	return &GrantError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a GrantError from an existing error.
func Wrap(code string, err error) *GrantError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *GrantError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *GrantError {
	return New(ErrCodeInvalidInput, message, cause)
}

// CollaboratorError creates an error for a failed language model call.
func CollaboratorError(message string, cause error) *GrantError {
	return New(ErrCodeLLMFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *GrantError {
	return New(ErrCodeInternal, message, cause)
}

// As extracts the first GrantError in err's chain.
func As(err error) (*GrantError, bool) {
	var ge *GrantError
	if err == nil || !stderrors.As(err, &ge) {
		return nil, false
	}
	return ge, true
}

// IsRetryable reports whether err carries a retryable GrantError.
func IsRetryable(err error) bool {
	if ge, ok := As(err); ok {
		return ge.Retryable
	}
	return false
}

// IsFatal reports whether err has fatal severity.
func IsFatal(err error) bool {
	if ge, ok := As(err); ok {
		return ge.Severity == SeverityFatal
	}
	return false
}

// HasCode reports whether any GrantError in err's chain has the given code.
func HasCode(err error, code string) bool {
	return stderrors.Is(err, &GrantError{Code: code})
}

// GetCode extracts the error code, or "" when err is not a GrantError.
func GetCode(err error) string {
	if ge, ok := As(err); ok {
		return ge.Code
	}
	return ""
}

// GetCategory extracts the category, or "" when err is not a GrantError.
func GetCategory(err error) Category {
	if ge, ok := As(err); ok {
		return ge.Category
	}
	return ""
}
