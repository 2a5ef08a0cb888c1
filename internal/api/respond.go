// internal/api/respond.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	commonerrors "loanassist/internal/common/errors"
	"loanassist/internal/common/validation"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// errorBody is the uniform error envelope.
type errorBody struct {
	Error   string                       `json:"error"`
	Code    string                       `json:"code,omitempty"`
	Details []validation.ValidationError `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeStandardError maps a StandardError's code onto an HTTP status.
func writeStandardError(w http.ResponseWriter, err error) {
	var stdErr *commonerrors.StandardError
	if !errors.As(err, &stdErr) {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, commonerrors.HTTPStatus(stdErr.Code), errorBody{Error: stdErr.Message, Code: string(stdErr.Code)})
}

func writeValidationFailure(w http.ResponseWriter, result *validation.ValidationResult) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:   "payload validation failed",
		Code:    string(commonerrors.ErrCodeValidationError),
		Details: result.Errors,
	})
}
