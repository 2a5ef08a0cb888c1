// internal/api/applications.go
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"loanassist/internal/common/validation"
)

const searchResultLimit = 20

var decisionSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["decision"],
	"properties": {
		"decision": {"type": "string", "enum": ["approved", "rejected"]},
		"notes":    {"type": "string", "maxLength": 2000}
	},
	"additionalProperties": false
}`)

type decisionRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	app, err := s.applications.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("application load failed", map[string]interface{}{"id": id, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if app == nil {
		writeError(w, http.StatusNotFound, "application not found")
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleSearchApplications(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}

	apps, err := s.applications.FindByName(r.Context(), name, searchResultLimit)
	if err != nil {
		s.logger.Error("application search failed", map[string]interface{}{"name": name, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": apps,
		"count":   len(apps),
	})
}

// handleDecision records the manager's call on an evaluated application
// and notifies the applicant.
func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if result := decisionSchema.ValidateBytes(body); !result.Valid {
		writeValidationFailure(w, result)
		return
	}

	var req decisionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}

	app, err := s.applications.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("application load failed", map[string]interface{}{"id": id, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if app == nil {
		writeError(w, http.StatusNotFound, "application not found")
		return
	}

	if err := s.applications.SaveDecision(r.Context(), id, req.Decision, req.Notes); err != nil {
		s.logger.Error("decision save failed", map[string]interface{}{"id": id, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if app.Email != "" {
		s.notifier.SendManagerDecision(r.Context(), app.Email, app.FullName, id, req.Decision, req.Notes)
	}
	if s.events != nil {
		s.events.PublishApplicationEvent(r.Context(), id, "decision_recorded", map[string]interface{}{
			"decision": req.Decision,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"applicationId": id,
		"decision":      req.Decision,
		"status":        "decided",
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid application id")
		return 0, false
	}
	return id, true
}
