package domain

import (
	"errors"
	"fmt"
	"time"
)

// Machine-readable codes carried in APIError envelopes.
const (
	CodeInvalidInput   = "INVALID_INPUT"
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeDatabaseError  = "DATABASE_ERROR"
	CodeDirectoryError = "DIRECTORY_ERROR"
	CodeAnalysisError  = "ANALYSIS_ERROR"
	CodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	CodeInternalServer = "INTERNAL_SERVER_ERROR"
	CodeCanceled       = "REQUEST_CANCELED"
)

// APIError is the error envelope returned to callers on every transport.
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError stamps an envelope with the current UTC time.
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError is a caller-fault input error: the request is rejected
// before any analysis component runs, with a field-specific message.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError builds a field-level ValidationError.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
