// Package errors provides standardized error handling for the loan chat service.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeGenerationUnavailable ErrorCode = "GENERATION_UNAVAILABLE"
	ErrCodeGenerationTimeout     ErrorCode = "GENERATION_TIMEOUT"
	ErrCodeGenerationFailed      ErrorCode = "GENERATION_FAILED"

	ErrCodePredictionFailed ErrorCode = "PREDICTION_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodePersistenceFailure       ErrorCode = "PERSISTENCE_FAILURE"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeSearchIndexFailed ErrorCode = "SEARCH_INDEX_FAILED"

	ErrCodeInvalidFieldValue ErrorCode = "INVALID_FIELD_VALUE"
	ErrCodeValidationError   ErrorCode = "VALIDATION_ERROR"

	ErrCodeOTPInvalid ErrorCode = "OTP_INVALID"
	ErrCodeOTPExpired ErrorCode = "OTP_EXPIRED"

	ErrCodeApplicationNotFound ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeInternalError       ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewGenerationUnavailableError creates a retryable error for an unreachable LLM endpoint.
func NewGenerationUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationUnavailable,
		Message:   "Generation service unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationTimeoutError creates a retryable generation timeout error.
func NewGenerationTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationTimeout,
		Message:   "Generation call timeout",
		Details:   "LLM call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationFailedError creates a retryable generation API error.
func NewGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationFailed,
		Message:   "Generation API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPredictionFailedError creates a retryable eligibility prediction error.
func NewPredictionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictionFailed,
		Message:   "Eligibility prediction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceFailureError creates a retryable persistence error.
func NewPersistenceFailureError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailure,
		Message:   "Database operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchIndexFailedError creates a non-retryable index error; indexing is best effort.
func NewSearchIndexFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchIndexFailed,
		Message:   "Application snapshot indexing failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidFieldValueError creates a non-retryable field validation error.
func NewInvalidFieldValueError(field, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidFieldValue,
		Message:   fmt.Sprintf("Invalid value for field '%s'", field),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates a non-retryable payload validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationError,
		Message:   "Request payload validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOTPInvalidError creates a non-retryable OTP mismatch error.
func NewOTPInvalidError() *StandardError {
	return &StandardError{
		Code:      ErrCodeOTPInvalid,
		Message:   "OTP does not match",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOTPExpiredError creates a non-retryable OTP expiry error.
func NewOTPExpiredError() *StandardError {
	return &StandardError{
		Code:      ErrCodeOTPExpired,
		Message:   "OTP has expired or was never issued",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicationNotFoundError creates a non-retryable lookup error.
func NewApplicationNotFoundError(applicationID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationNotFound,
		Message:   "Loan application not found",
		Details:   fmt.Sprintf("applicationId: %d", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternalError,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Retry Policy
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodePersistenceFailure,
		ErrCodeNotificationSendFailed,
		ErrCodePredictionFailed,
		ErrCodeGenerationFailed:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeGenerationUnavailable:
		return 2

	case ErrCodeGenerationTimeout:
		return 1

	default:
		return 0
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "GENERATION"):
		return "GENERATION"
	case strings.Contains(codeStr, "PREDICTION"):
		return "PREDICTION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "PERSISTENCE"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "OTP"):
		return "OTP"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
