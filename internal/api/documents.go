// internal/api/documents.go
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"loanassist/internal/common/validation"
)

var documentUploadSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["doc_type", "file_name"],
	"properties": {
		"doc_type":         {"type": "string", "minLength": 2, "maxLength": 64},
		"file_name":        {"type": "string", "minLength": 1, "maxLength": 255},
		"extracted_fields": {"type": "object"}
	},
	"additionalProperties": false
}`)

type documentUploadRequest struct {
	DocType         string                 `json:"doc_type"`
	FileName        string                 `json:"file_name"`
	ExtractedFields map[string]interface{} `json:"extracted_fields"`
}

func (s *Server) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if result := documentUploadSchema.ValidateBytes(body); !result.Valid {
		writeValidationFailure(w, result)
		return
	}

	var req documentUploadRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON")
		return
	}

	result, err := s.documents.Upload(r.Context(), id, req.DocType, req.FileName, req.ExtractedFields)
	if err != nil {
		s.logger.Error("document upload failed", map[string]interface{}{"id": id, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if result.Verified && s.events != nil {
		s.events.PublishApplicationEvent(r.Context(), id, "documents_verified", nil)
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	docs, err := s.documents.List(r.Context(), id)
	if err != nil {
		s.logger.Error("document list failed", map[string]interface{}{"id": id, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}
