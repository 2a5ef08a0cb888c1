// internal/services/documents/service_test.go
package documents

import (
	"context"
	"testing"

	"loanassist/internal/common/logger"
	"loanassist/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes
// ==========================

type fakeRecorder struct {
	docs   []models.Document
	nextID int64
}

func (f *fakeRecorder) Record(_ context.Context, doc *models.Document) error {
	f.nextID++
	doc.ID = f.nextID
	f.docs = append(f.docs, *doc)
	return nil
}

func (f *fakeRecorder) ListTypes(_ context.Context, applicationID int64) ([]string, error) {
	seen := map[string]bool{}
	var types []string
	for _, d := range f.docs {
		if d.ApplicationID == applicationID && !seen[d.DocType] {
			seen[d.DocType] = true
			types = append(types, d.DocType)
		}
	}
	return types, nil
}

func (f *fakeRecorder) ListByApplication(_ context.Context, applicationID int64) ([]models.Document, error) {
	var out []models.Document
	for _, d := range f.docs {
		if d.ApplicationID == applicationID {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeUpdater struct {
	app      *models.LoanApplication
	upserted []map[string]interface{}
}

func (f *fakeUpdater) GetByID(_ context.Context, id int64) (*models.LoanApplication, error) {
	if f.app == nil || f.app.ID != id {
		return nil, nil
	}
	copied := *f.app
	return &copied, nil
}

func (f *fakeUpdater) UpsertFields(_ context.Context, _ int64, fields map[string]interface{}) error {
	f.upserted = append(f.upserted, fields)
	return nil
}

func (f *fakeUpdater) SetDocumentVerified(_ context.Context, _ int64, verified bool) error {
	f.app.DocumentVerified = verified
	return nil
}

func (f *fakeUpdater) UpdateStatus(_ context.Context, _ int64, status models.ApplicationStatus) error {
	f.app.Status = status
	return nil
}

func newFixture(status models.ApplicationStatus) (*Service, *fakeRecorder, *fakeUpdater) {
	recorder := &fakeRecorder{}
	updater := &fakeUpdater{app: &models.LoanApplication{ID: 42, Status: status}}
	svc := New(recorder, updater, logger.NewNoOpLogger())
	return svc, recorder, updater
}

// ==========================
// Type Normalization
// ==========================

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"aadhar", "aadhaar"},
		{"Aadhaar Card", "aadhaar"},
		{"PAN", "pan"},
		{"pan_card", "pan"},
		{"pan-card", "pan"},
		{"KYC Document", "kyc"},
		{"Bank Statement", "bank_statement"},
		{"payslip", "salary_slip"},
		{"Pay Slip", "salary_slip"},
		{"  salary_slip  ", "salary_slip"},
		{"drivers_license", "drivers_license"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeType(tt.input))
		})
	}
}

// ==========================
// Upload
// ==========================

func TestUpload_RecordsNormalizedDocument(t *testing.T) {
	svc, recorder, _ := newFixture(models.StatusReadyForDocs)

	result, err := svc.Upload(context.Background(), 42, "Aadhar", "aadhaar.pdf", nil)
	require.NoError(t, err)

	assert.Equal(t, "aadhaar", result.Document.DocType)
	assert.Equal(t, "aadhaar.pdf", result.Document.FileName)
	assert.False(t, result.Verified)
	require.Len(t, recorder.docs, 1)
}

func TestUpload_UnknownApplication(t *testing.T) {
	svc, _, _ := newFixture(models.StatusReadyForDocs)

	_, err := svc.Upload(context.Background(), 999, "pan", "pan.pdf", nil)
	assert.Error(t, err)
}

func TestUpload_MergesValidExtractedFields(t *testing.T) {
	svc, _, updater := newFixture(models.StatusReadyForDocs)

	result, err := svc.Upload(context.Background(), 42, "salary_slip", "march.pdf", map[string]interface{}{
		"annual_income": 900000.0,
		"full_name":     "Rohan Gupta",
		"credit_score":  "junk",
		"random_key":    "ignored",
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"annual_income", "full_name"}, result.MergedFields)
	require.Len(t, updater.upserted, 1)
	assert.Equal(t, int64(900000), updater.upserted[0]["annual_income"])
	assert.Equal(t, "Rohan Gupta", updater.upserted[0]["full_name"])
	assert.NotContains(t, updater.upserted[0], "credit_score")
	assert.NotContains(t, updater.upserted[0], "random_key")
}

func TestUpload_NoUpsertWithoutValidFields(t *testing.T) {
	svc, _, updater := newFixture(models.StatusReadyForDocs)

	result, err := svc.Upload(context.Background(), 42, "pan", "pan.pdf", map[string]interface{}{
		"garbage": true,
	})
	require.NoError(t, err)

	assert.Empty(t, result.MergedFields)
	assert.Empty(t, updater.upserted)
}

// ==========================
// Verification Gate
// ==========================

func TestUpload_VerificationNeedsBothCategories(t *testing.T) {
	svc, _, updater := newFixture(models.StatusReadyForDocs)

	// Two identity proofs still leave the income side open.
	result, err := svc.Upload(context.Background(), 42, "aadhaar", "a.pdf", nil)
	require.NoError(t, err)
	assert.False(t, result.Verified)

	result, err = svc.Upload(context.Background(), 42, "pan", "p.pdf", nil)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.False(t, updater.app.DocumentVerified)

	result, err = svc.Upload(context.Background(), 42, "bank_statement", "b.pdf", nil)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.True(t, updater.app.DocumentVerified)
	assert.Equal(t, models.StatusDocsVerified, updater.app.Status)
}

func TestUpload_IncomeProofAloneIsNotEnough(t *testing.T) {
	svc, _, updater := newFixture(models.StatusReadyForDocs)

	result, err := svc.Upload(context.Background(), 42, "salary_slip", "s.pdf", nil)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, models.StatusReadyForDocs, updater.app.Status)
}

func TestUpload_AliasesSatisfyTheGate(t *testing.T) {
	svc, _, _ := newFixture(models.StatusReadyForDocs)

	_, err := svc.Upload(context.Background(), 42, "aadhar_card", "a.pdf", nil)
	require.NoError(t, err)
	result, err := svc.Upload(context.Background(), 42, "payslip", "p.pdf", nil)
	require.NoError(t, err)

	assert.True(t, result.Verified)
}

func TestUpload_UnknownTypeNeverVerifies(t *testing.T) {
	svc, _, _ := newFixture(models.StatusReadyForDocs)

	_, err := svc.Upload(context.Background(), 42, "drivers_license", "d.pdf", nil)
	require.NoError(t, err)
	result, err := svc.Upload(context.Background(), 42, "utility_bill", "u.pdf", nil)
	require.NoError(t, err)

	assert.False(t, result.Verified)
}

func TestUpload_AlreadyVerifiedStaysVerified(t *testing.T) {
	svc, _, updater := newFixture(models.StatusEvaluated)
	updater.app.DocumentVerified = true

	result, err := svc.Upload(context.Background(), 42, "aadhaar", "a.pdf", nil)
	require.NoError(t, err)

	assert.True(t, result.Verified)
	// An extra upload never regresses the lifecycle state.
	assert.Equal(t, models.StatusEvaluated, updater.app.Status)
}

func TestList(t *testing.T) {
	svc, _, _ := newFixture(models.StatusReadyForDocs)

	_, err := svc.Upload(context.Background(), 42, "pan", "p.pdf", nil)
	require.NoError(t, err)

	docs, err := svc.List(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "pan", docs[0].DocType)
}
