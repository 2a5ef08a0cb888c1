// internal/api/chat.go
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"loanassist/internal/common/validation"
	"loanassist/internal/engine"
)

const maxBodyBytes = 1 << 20

var chatMessageSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["message"],
	"properties": {
		"message":        {"type": "string", "minLength": 1, "maxLength": 4000},
		"user_key":       {"type": "string", "maxLength": 128},
		"application_id": {"type": "integer", "minimum": 1}
	},
	"additionalProperties": false
}`)

var voiceMessageSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["fields"],
	"properties": {
		"transcript":     {"type": "string", "maxLength": 8000},
		"user_key":       {"type": "string", "maxLength": 128},
		"application_id": {"type": "integer", "minimum": 1},
		"fields":         {"type": "object"}
	},
	"additionalProperties": false
}`)

type chatMessageRequest struct {
	Message       string `json:"message"`
	UserKey       string `json:"user_key"`
	ApplicationID int64  `json:"application_id"`
}

type voiceMessageRequest struct {
	Transcript    string                 `json:"transcript"`
	UserKey       string                 `json:"user_key"`
	ApplicationID int64                  `json:"application_id"`
	Fields        map[string]interface{} `json:"fields"`
}

// chatTurnResponse wraps the engine response with delivery side effects.
type chatTurnResponse struct {
	*engine.Response
	OTPSent bool `json:"otpSent,omitempty"`
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if result := chatMessageSchema.ValidateBytes(body); !result.Valid {
		writeValidationFailure(w, result)
		return
	}

	var req chatMessageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}

	resp, err := s.engine.HandleMessage(r.Context(), engine.Request{
		UserKey:       req.UserKey,
		ApplicationID: req.ApplicationID,
		Message:       req.Message,
		Channel:       "chat",
	})
	if err != nil {
		s.logger.Error("chat turn failed", map[string]interface{}{"error": err.Error()})
		writeStandardError(w, err)
		return
	}

	out := chatTurnResponse{Response: resp}
	if resp.Action == engine.ActionSendOTP {
		out.OTPSent = s.deliverOTP(r, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVoiceMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if result := voiceMessageSchema.ValidateBytes(body); !result.Valid {
		writeValidationFailure(w, result)
		return
	}

	var req voiceMessageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}

	resp, err := s.engine.HandleMessage(r.Context(), engine.Request{
		UserKey:       req.UserKey,
		ApplicationID: req.ApplicationID,
		Message:       req.Transcript,
		Channel:       "voice",
		VoicePayload:  req.Fields,
	})
	if err != nil {
		s.logger.Error("voice turn failed", map[string]interface{}{"error": err.Error()})
		writeStandardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatTurnResponse{Response: resp})
}

// deliverOTP issues and emails a code for the verification flow. Delivery
// problems degrade to otpSent=false; the reply text already tells the
// user what to expect.
func (s *Server) deliverOTP(r *http.Request, resp *engine.Response) bool {
	email, _ := resp.Collected["email"].(string)
	if email == "" {
		return false
	}

	code, err := s.otp.Issue(r.Context(), email)
	if err != nil {
		s.logger.Error("otp issue failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	if err := s.notifier.SendOTP(r.Context(), email, code, s.otp.TTL()); err != nil {
		s.logger.Error("otp delivery failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	return true
}
