// internal/common/errors/handler.go
package errors

import "net/http"

// HTTPStatus maps an error code to an HTTP status.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationError, ErrCodeInvalidFieldValue, ErrCodeOTPInvalid:
		return http.StatusBadRequest
	case ErrCodeOTPExpired:
		return http.StatusGone
	case ErrCodeApplicationNotFound:
		return http.StatusNotFound
	case ErrCodeGenerationUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeGenerationTimeout, ErrCodeQueryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
