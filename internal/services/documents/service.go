// internal/services/documents/service.go
package documents

import (
	"context"
	"fmt"
	"strings"

	"loanassist/internal/common/logger"
	"loanassist/internal/engine"
	"loanassist/internal/models"
)

// Canonical document types.
const (
	TypeAadhaar       = "aadhaar"
	TypePAN           = "pan"
	TypeKYC           = "kyc"
	TypeBankStatement = "bank_statement"
	TypeSalarySlip    = "salary_slip"
)

// typeAliases maps the spellings the upload channel actually sends to
// canonical types.
var typeAliases = map[string]string{
	"aadhar":         TypeAadhaar,
	"aadhaar":        TypeAadhaar,
	"adhaar":         TypeAadhaar,
	"aadhar_card":    TypeAadhaar,
	"aadhaar_card":   TypeAadhaar,
	"pan":            TypePAN,
	"pan_card":       TypePAN,
	"kyc":            TypeKYC,
	"kyc_document":   TypeKYC,
	"bank_statement": TypeBankStatement,
	"bankstatement":  TypeBankStatement,
	"statement":      TypeBankStatement,
	"salary_slip":    TypeSalarySlip,
	"salaryslip":     TypeSalarySlip,
	"payslip":        TypeSalarySlip,
	"pay_slip":       TypeSalarySlip,
}

// The verification gate needs one identity proof and one income proof.
var (
	identityProofs = map[string]bool{TypeAadhaar: true, TypePAN: true, TypeKYC: true}
	incomeProofs   = map[string]bool{TypeBankStatement: true, TypeSalarySlip: true}
)

type DocumentRecorder interface {
	Record(ctx context.Context, doc *models.Document) error
	ListTypes(ctx context.Context, applicationID int64) ([]string, error)
	ListByApplication(ctx context.Context, applicationID int64) ([]models.Document, error)
}

type ApplicationUpdater interface {
	GetByID(ctx context.Context, id int64) (*models.LoanApplication, error)
	UpsertFields(ctx context.Context, id int64, fields map[string]interface{}) error
	SetDocumentVerified(ctx context.Context, id int64, verified bool) error
	UpdateStatus(ctx context.Context, id int64, status models.ApplicationStatus) error
}

// UploadResult reports what one upload changed.
type UploadResult struct {
	Document     *models.Document `json:"document"`
	MergedFields []string         `json:"mergedFields,omitempty"`
	Verified     bool             `json:"verified"`
}

// Service records uploaded documents, folds OCR-extracted fields into the
// application, and flips the verification gate once both proof categories
// are covered.
type Service struct {
	docs   DocumentRecorder
	apps   ApplicationUpdater
	logger logger.Logger
}

func New(docs DocumentRecorder, apps ApplicationUpdater, log logger.Logger) *Service {
	return &Service{
		docs:   docs,
		apps:   apps,
		logger: log.WithFields(map[string]interface{}{"collaborator": "documents"}),
	}
}

// NormalizeType canonicalizes a document type. Unknown types pass through
// lowercased so the registry still records them; they just never satisfy
// the verification gate.
func NormalizeType(docType string) string {
	key := strings.ToLower(strings.TrimSpace(docType))
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	if canonical, ok := typeAliases[key]; ok {
		return canonical
	}
	return key
}

// Upload records one document for the application. Extracted OCR fields
// go through the same slot validation as chat answers, so junk values are
// dropped rather than written.
func (s *Service) Upload(ctx context.Context, applicationID int64, docType, fileName string, extracted map[string]interface{}) (*UploadResult, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, fmt.Errorf("application %d not found", applicationID)
	}

	doc := &models.Document{
		ApplicationID:   applicationID,
		DocType:         NormalizeType(docType),
		FileName:        fileName,
		ExtractedFields: extracted,
	}
	if err := s.docs.Record(ctx, doc); err != nil {
		return nil, err
	}

	result := &UploadResult{Document: doc}

	if fields := validExtractedFields(extracted); len(fields) > 0 {
		if err := s.apps.UpsertFields(ctx, applicationID, fields); err != nil {
			s.logger.Error("merging extracted fields failed", map[string]interface{}{
				"applicationId": applicationID, "error": err.Error(),
			})
		} else {
			for k := range fields {
				result.MergedFields = append(result.MergedFields, k)
			}
		}
	}

	verified, err := s.checkVerification(ctx, app, doc.DocType)
	if err != nil {
		return nil, err
	}
	result.Verified = verified

	s.logger.Info("document recorded", map[string]interface{}{
		"applicationId": applicationID, "docType": doc.DocType,
		"merged": len(result.MergedFields), "verified": verified,
	})
	return result, nil
}

// List returns the recorded documents for an application.
func (s *Service) List(ctx context.Context, applicationID int64) ([]models.Document, error) {
	return s.docs.ListByApplication(ctx, applicationID)
}

// checkVerification re-evaluates the gate after an upload. Both proof
// categories covered flips the application to docs_verified, once.
func (s *Service) checkVerification(ctx context.Context, app *models.LoanApplication, latestType string) (bool, error) {
	if app.DocumentVerified {
		return true, nil
	}

	types, err := s.docs.ListTypes(ctx, app.ID)
	if err != nil {
		return false, err
	}
	types = append(types, latestType)

	hasIdentity, hasIncome := false, false
	for _, t := range types {
		canonical := NormalizeType(t)
		if identityProofs[canonical] {
			hasIdentity = true
		}
		if incomeProofs[canonical] {
			hasIncome = true
		}
	}
	if !hasIdentity || !hasIncome {
		return false, nil
	}

	if err := s.apps.SetDocumentVerified(ctx, app.ID, true); err != nil {
		return false, err
	}
	if app.Status == models.StatusReadyForDocs || app.Status == models.StatusCollecting {
		if err := s.apps.UpdateStatus(ctx, app.ID, models.StatusDocsVerified); err != nil {
			return false, err
		}
	}
	return true, nil
}

// validExtractedFields keeps only OCR values that pass slot validation.
func validExtractedFields(extracted map[string]interface{}) map[string]interface{} {
	if len(extracted) == 0 {
		return nil
	}
	slots := engine.FromMap(extracted)
	return slots.ToMap()
}
