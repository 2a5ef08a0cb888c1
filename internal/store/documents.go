// internal/store/documents.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"loanassist/internal/common/logger"
	"loanassist/internal/models"
)

// DocumentStore persists uploaded document records.
type DocumentStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewDocumentStore(db *sql.DB, log logger.Logger) *DocumentStore {
	return &DocumentStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"store": "documents"}),
	}
}

// Record inserts one uploaded document.
func (s *DocumentStore) Record(ctx context.Context, doc *models.Document) error {
	var extracted []byte
	if doc.ExtractedFields != nil {
		var err error
		extracted, err = json.Marshal(doc.ExtractedFields)
		if err != nil {
			return fmt.Errorf("marshaling extracted fields: %w", err)
		}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO application_documents (application_id, doc_type, file_name, extracted_fields)
		VALUES ($1, $2, $3, $4)
		RETURNING id, uploaded_at`,
		doc.ApplicationID, doc.DocType, doc.FileName, nullableJSON(extracted),
	).Scan(&doc.ID, &doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// ListTypes returns the distinct document types recorded for an
// application. The verification gate only needs the type set.
func (s *DocumentStore) ListTypes(ctx context.Context, applicationID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT doc_type FROM application_documents
		WHERE application_id = $1`,
		applicationID)
	if err != nil {
		return nil, fmt.Errorf("listing document types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var docType string
		if err := rows.Scan(&docType); err != nil {
			return nil, fmt.Errorf("scanning document type: %w", err)
		}
		types = append(types, docType)
	}
	return types, rows.Err()
}

// ListByApplication returns all documents for an application, newest first.
func (s *DocumentStore) ListByApplication(ctx context.Context, applicationID int64) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, application_id, doc_type, file_name, extracted_fields, uploaded_at
		FROM application_documents
		WHERE application_id = $1
		ORDER BY id DESC`,
		applicationID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		var extracted sql.NullString
		if err := rows.Scan(&doc.ID, &doc.ApplicationID, &doc.DocType, &doc.FileName, &extracted, &doc.UploadedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if extracted.Valid && extracted.String != "" {
			if err := json.Unmarshal([]byte(extracted.String), &doc.ExtractedFields); err != nil {
				s.logger.Warn("dropping unreadable extracted fields", map[string]interface{}{
					"documentId": doc.ID, "error": err.Error(),
				})
			}
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
