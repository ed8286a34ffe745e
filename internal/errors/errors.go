package errors

import (
	stderrors "errors"
	"fmt"
)

// AmanError is the structured error type for AmanKnow.
// It provides rich context for error handling, logging, and user presentation.
type AmanError struct {
	// Code is the unique error code (e.g., "ERR_201_STORAGE_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Sentinels usable as errors.Is targets. Matching is by code only.
var (
	ErrStorageUnavailable = &AmanError{Code: ErrCodeStorageUnavailable}
	ErrIndexUnavailable   = &AmanError{Code: ErrCodeIndexUnavailable}
	ErrValidation         = &AmanError{Code: ErrCodeInvalidInput}
	ErrNotFound           = &AmanError{Code: ErrCodeNotFound}
)

// Error implements the error interface.
func (e *AmanError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AmanError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with AmanError.
func (e *AmanError) Is(target error) bool {
	if t, ok := target.(*AmanError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *AmanError) WithDetail(key, value string) *AmanError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *AmanError) WithSuggestion(suggestion string) *AmanError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AmanError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *AmanError {
	return &AmanError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates an AmanError from an existing error.
// The error's message becomes the AmanError message.
func Wrap(code string, err error) *AmanError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AmanError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageUnavailable reports that the document repository could not be read or written.
func StorageUnavailable(message string, cause error) *AmanError {
	return New(ErrCodeStorageUnavailable, message, cause).
		WithSuggestion("Check that the data directory exists and is writable")
}

// IndexUnavailable reports that the persisted index could not be loaded or written.
func IndexUnavailable(message string, cause error) *AmanError {
	return New(ErrCodeIndexUnavailable, message, cause).
		WithSuggestion("Run 'amanknow rebuild' to regenerate the index")
}

// InboxFileError reports a single unreadable or unarchivable inbox file.
func InboxFileError(name string, cause error) *AmanError {
	return New(ErrCodeInboxFile, "inbox file "+name, cause).WithDetail("filename", name)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *AmanError {
	return New(ErrCodeInvalidInput, message, cause)
}

// NotFound reports a missing entity of the given kind.
func NotFound(kind, id string) *AmanError {
	return New(ErrCodeNotFound, kind+" not found: "+id, nil).WithDetail("id", id)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AmanError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if ae, ok := As(err); ok {
		return ae.Severity == SeverityFatal
	}
	return false
}

// As finds the first AmanError in err's chain.
func As(err error) (*AmanError, bool) {
	var ae *AmanError
	if err == nil || !stderrors.As(err, &ae) {
		return nil, false
	}
	return ae, true
}

// GetCode extracts the error code from an AmanError.
// Returns empty string if not an AmanError.
func GetCode(err error) string {
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from an AmanError.
// Returns empty string if not an AmanError.
func GetCategory(err error) Category {
	if ae, ok := As(err); ok {
		return ae.Category
	}
	return ""
}
