// internal/models/document.go
package models

import "time"

// Document is an uploaded proof attached to an application. Extracted
// fields come from the external OCR channel and feed the same slot merge
// as chat turns.
type Document struct {
	ID              int64                  `json:"id" db:"id"`
	ApplicationID   int64                  `json:"applicationId" db:"application_id"`
	DocType         string                 `json:"docType" db:"doc_type"`
	FileName        string                 `json:"fileName" db:"file_name"`
	ExtractedFields map[string]interface{} `json:"extractedFields,omitempty" db:"extracted_fields"`
	UploadedAt      time.Time              `json:"uploadedAt" db:"uploaded_at"`
}
