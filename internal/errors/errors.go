// Package errors provides structured error types for visaboard.
// All errors include a category, code, message, and retryable flag so the
// HTTP surface and the CLI can map them consistently.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryDataLoad      ErrorCategory = "DATA_LOAD"
	ErrCategoryConfiguration ErrorCategory = "CONFIGURATION"
	ErrCategoryValidation    ErrorCategory = "VALIDATION"
	ErrCategoryStorage       ErrorCategory = "STORAGE"
	ErrCategoryInternal      ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Data load codes
	CodeObjectMissing     = "OBJECT_MISSING"
	CodeUnreadable        = "UNREADABLE"
	CodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	CodeSchemaMismatch    = "SCHEMA_MISMATCH"
	CodeInvalidNumber     = "INVALID_NUMBER"

	// Configuration codes
	CodeUnknownMetric = "UNKNOWN_METRIC"
	CodeInvalidConfig = "INVALID_CONFIG"

	// Validation codes
	CodeInvalidThreshold = "INVALID_THRESHOLD"
	CodeInvalidLimit     = "INVALID_LIMIT"

	// Storage codes
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// VisaboardError is the structured error type used throughout the system.
type VisaboardError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *VisaboardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *VisaboardError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *VisaboardError) Is(target error) bool {
	var t *VisaboardError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new VisaboardError.
func New(category ErrorCategory, code, message string) *VisaboardError {
	return &VisaboardError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new VisaboardError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *VisaboardError {
	return &VisaboardError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *VisaboardError) WithDetails(details map[string]interface{}) *VisaboardError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ve *VisaboardError
	if errors.As(err, &ve) {
		return ve.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a VisaboardError.
func GetCategory(err error) ErrorCategory {
	var ve *VisaboardError
	if errors.As(err, &ve) {
		return ve.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a VisaboardError.
func GetCode(err error) string {
	var ve *VisaboardError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// IsDataLoadError reports whether err is a dataset load failure.
func IsDataLoadError(err error) bool {
	return GetCategory(err) == ErrCategoryDataLoad
}

// IsConfigurationError reports whether err is a configuration failure.
func IsConfigurationError(err error) bool {
	return GetCategory(err) == ErrCategoryConfiguration
}

// IsValidationError reports whether err was caused by bad request input.
func IsValidationError(err error) bool {
	return GetCategory(err) == ErrCategoryValidation
}

// Only the storage download is worth retrying; a bad file stays bad.
func isRetryable(category ErrorCategory, code string) bool {
	return category == ErrCategoryStorage && code == CodeDownloadFailed
}

// Convenience constructors for common errors.

func NewDataLoadError(code, message string, cause error) *VisaboardError {
	return Wrap(ErrCategoryDataLoad, code, message, cause)
}

func NewConfigurationError(code, message string) *VisaboardError {
	return New(ErrCategoryConfiguration, code, message)
}

func NewValidationError(code, message string) *VisaboardError {
	return New(ErrCategoryValidation, code, message)
}

func NewStorageError(code, message string, cause error) *VisaboardError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *VisaboardError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
