// internal/api/otp.go
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"loanassist/internal/common/validation"
)

var otpVerifySchema = validation.MustCompile(`{
	"type": "object",
	"required": ["email", "code"],
	"properties": {
		"email": {"type": "string", "format": "email", "maxLength": 254},
		"code":  {"type": "string", "pattern": "^[0-9]{6}$"}
	},
	"additionalProperties": false
}`)

type otpVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (s *Server) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if result := otpVerifySchema.ValidateBytes(body); !result.Valid {
		writeValidationFailure(w, result)
		return
	}

	var req otpVerifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}

	if err := s.otp.Verify(r.Context(), req.Email, req.Code); err != nil {
		writeStandardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"verified": true})
}
