package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestVisaboardError_Error(t *testing.T) {
	err := New(ErrCategoryConfiguration, CodeUnknownMetric, "unknown metric \"visas\"")
	expected := "[CONFIGURATION:UNKNOWN_METRIC] unknown metric \"visas\""
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestVisaboardError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("no such file or directory")
	err := Wrap(ErrCategoryDataLoad, CodeObjectMissing, "dataset not found", cause)
	expected := "[DATA_LOAD:OBJECT_MISSING] dataset not found: no such file or directory"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestVisaboardError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryDataLoad, CodeUnreadable, "read failed", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestVisaboardError_Is(t *testing.T) {
	err1 := New(ErrCategoryDataLoad, CodeInvalidNumber, "row 3")
	err2 := New(ErrCategoryDataLoad, CodeInvalidNumber, "row 9")
	err3 := New(ErrCategoryDataLoad, CodeSchemaMismatch, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}

	wrapped := fmt.Errorf("load: %w", err1)
	if !errors.Is(wrapped, err2) {
		t.Error("Is should see through fmt wrapping")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryStorage, CodeDownloadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryDataLoad, CodeObjectMissing, false},
		{ErrCategoryDataLoad, CodeInvalidNumber, false},
		{ErrCategoryConfiguration, CodeUnknownMetric, false},
		{ErrCategoryValidation, CodeInvalidThreshold, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("plain errors are never retryable")
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := fmt.Errorf("render: %w", NewValidationError(CodeInvalidThreshold, "approval out of range"))
	if GetCategory(err) != ErrCategoryValidation {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryValidation)
	}
	if GetCode(err) != CodeInvalidThreshold {
		t.Errorf("got %q, want %q", GetCode(err), CodeInvalidThreshold)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-VisaboardError should return empty category")
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-VisaboardError should return empty code")
	}
}

func TestCategoryPredicates(t *testing.T) {
	load := NewDataLoadError(CodeSchemaMismatch, "missing column", nil)
	conf := NewConfigurationError(CodeUnknownMetric, "bad metric")
	val := NewValidationError(CodeInvalidLimit, "bad limit")

	if !IsDataLoadError(load) || IsDataLoadError(conf) {
		t.Error("IsDataLoadError mismatch")
	}
	if !IsConfigurationError(conf) || IsConfigurationError(val) {
		t.Error("IsConfigurationError mismatch")
	}
	if !IsValidationError(val) || IsValidationError(load) {
		t.Error("IsValidationError mismatch")
	}
}

func TestWithDetails(t *testing.T) {
	err := NewDataLoadError(CodeInvalidNumber, "not a number", nil)
	detailed := err.WithDetails(map[string]interface{}{"row": 4, "column": "Sum Approval"})

	if detailed.Details["column"] != "Sum Approval" {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	s := NewStorageError(CodeDownloadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || !errors.Is(s, cause) || !s.Retryable {
		t.Error("NewStorageError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
