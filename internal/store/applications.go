// internal/store/applications.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"loanassist/internal/common/logger"
	"loanassist/internal/models"
)

var (
	ErrApplicationNotFound = errors.New("APPLICATION_NOT_FOUND")
)

// upsertableColumns maps field keys to their columns. Only these can be
// written through UpsertFields.
var upsertableColumns = map[string]string{
	"full_name":         "full_name",
	"email":             "email",
	"phone":             "phone",
	"annual_income":     "annual_income",
	"monthly_income":    "monthly_income",
	"loan_amount":       "loan_amount",
	"loan_term_months":  "loan_term_months",
	"credit_score":      "credit_score",
	"employment_status": "employment_status",
	"num_dependents":    "num_dependents",
	"loan_purpose":      "loan_purpose",
	"existing_emi":      "existing_emi",
}

// ApplicationStore persists loan applications in Postgres.
type ApplicationStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewApplicationStore(db *sql.DB, log logger.Logger) *ApplicationStore {
	return &ApplicationStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"store": "applications"}),
	}
}

const applicationColumns = `
	id, user_key, full_name, email, phone,
	annual_income, monthly_income, loan_amount, loan_term_months,
	credit_score, employment_status, num_dependents, loan_purpose, existing_emi,
	document_verified, evaluation_triggered, eligibility_score, eligibility_status,
	risk_level, credit_tier, approval_status, manager_notes, report_path,
	status, created_at, updated_at`

func (s *ApplicationStore) scanApplication(row interface{ Scan(...interface{}) error }) (*models.LoanApplication, error) {
	var app models.LoanApplication
	err := row.Scan(
		&app.ID, &app.UserKey, &app.FullName, &app.Email, &app.Phone,
		&app.AnnualIncome, &app.MonthlyIncome, &app.LoanAmount, &app.LoanTermMonths,
		&app.CreditScore, &app.EmploymentStatus, &app.NumDependents, &app.LoanPurpose, &app.ExistingEMI,
		&app.DocumentVerified, &app.EvaluationTriggered, &app.EligibilityScore, &app.EligibilityStatus,
		&app.RiskLevel, &app.CreditTier, &app.ApprovalStatus, &app.ManagerNotes, &app.ReportPath,
		&app.Status, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// GetByID loads one application. A missing row returns (nil, nil) so the
// engine can treat "no application yet" as a normal state.
func (s *ApplicationStore) GetByID(ctx context.Context, id int64) (*models.LoanApplication, error) {
	app, err := s.scanApplication(s.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM loan_applications WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading application %d: %w", id, err)
	}
	return app, nil
}

// GetByUserKey loads the most recent application for a user.
func (s *ApplicationStore) GetByUserKey(ctx context.Context, userKey string) (*models.LoanApplication, error) {
	app, err := s.scanApplication(s.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM loan_applications
		 WHERE user_key = $1 ORDER BY id DESC LIMIT 1`, userKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading application for user %s: %w", userKey, err)
	}
	return app, nil
}

// FindByName searches applications by applicant name, case-insensitively.
// Used by the manager review endpoints.
func (s *ApplicationStore) FindByName(ctx context.Context, name string, limit int) ([]models.LoanApplication, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM loan_applications
		 WHERE full_name ILIKE $1 ORDER BY id DESC LIMIT $2`,
		"%"+strings.TrimSpace(name)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("searching applications: %w", err)
	}
	defer rows.Close()

	var apps []models.LoanApplication
	for rows.Next() {
		app, err := s.scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning application: %w", err)
		}
		apps = append(apps, *app)
	}
	return apps, rows.Err()
}

// Create inserts a new application and returns its ID.
func (s *ApplicationStore) Create(ctx context.Context, app *models.LoanApplication) (int64, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO loan_applications (
			user_key, full_name, email, phone,
			annual_income, monthly_income, loan_amount, loan_term_months,
			credit_score, employment_status, num_dependents, loan_purpose, existing_emi,
			approval_status, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`,
		app.UserKey, app.FullName, app.Email, app.Phone,
		app.AnnualIncome, app.MonthlyIncome, app.LoanAmount, app.LoanTermMonths,
		app.CreditScore, app.EmploymentStatus, app.NumDependents, app.LoanPurpose, app.ExistingEMI,
		app.ApprovalStatus, app.Status,
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("inserting application: %w", err)
	}

	s.logger.Info("application created", map[string]interface{}{
		"applicationId": app.ID, "userKey": app.UserKey,
	})
	return app.ID, nil
}

// UpsertFields writes a partial field update. Only known applicant columns
// are accepted, and the caller passes only values that were actually
// captured, so an absent field can never be blanked.
func (s *ApplicationStore) UpsertFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

	sets := make([]string, 0, len(fields)+1)
	args := make([]interface{}, 0, len(fields)+1)
	for _, key := range sortedFieldKeys(fields) {
		column, ok := upsertableColumns[key]
		if !ok {
			continue
		}
		args = append(args, fields[key])
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE loan_applications SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating application fields: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

// UpdateStatus moves the application to a new lifecycle state.
func (s *ApplicationStore) UpdateStatus(ctx context.Context, id int64, status models.ApplicationStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE loan_applications SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("updating application status: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

// ClaimEvaluation flips evaluation_triggered from false to true. The
// conditional update makes concurrent triggers race for a single row
// update; only the winner gets RowsAffected == 1.
func (s *ApplicationStore) ClaimEvaluation(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE loan_applications
		SET evaluation_triggered = TRUE, updated_at = NOW()
		WHERE id = $1 AND evaluation_triggered = FALSE`,
		id)
	if err != nil {
		return false, fmt.Errorf("claiming evaluation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming evaluation: %w", err)
	}
	return n == 1, nil
}

// SaveEvaluation records a prediction outcome and advances the state.
func (s *ApplicationStore) SaveEvaluation(ctx context.Context, id int64, p *models.PredictionResult) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE loan_applications
		SET eligibility_score = $1, eligibility_status = $2, risk_level = $3,
		    credit_tier = $4, status = $5, updated_at = NOW()
		WHERE id = $6`,
		p.EligibilityScore, p.EligibilityStatus, p.RiskLevel, p.CreditTier,
		models.StatusEvaluated, id)
	if err != nil {
		return fmt.Errorf("saving evaluation: %w", err)
	}
	return nil
}

// ReopenForUpdate drops an application back to collecting and clears the
// evaluation claim so a corrected application can be evaluated again.
func (s *ApplicationStore) ReopenForUpdate(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE loan_applications
		SET status = $1, evaluation_triggered = FALSE, updated_at = NOW()
		WHERE id = $2`,
		models.StatusCollecting, id)
	if err != nil {
		return fmt.Errorf("reopening application: %w", err)
	}
	return nil
}

// SetDocumentVerified marks the document gate as passed.
func (s *ApplicationStore) SetDocumentVerified(ctx context.Context, id int64, verified bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE loan_applications
		SET document_verified = $1, updated_at = NOW()
		WHERE id = $2`,
		verified, id)
	if err != nil {
		return fmt.Errorf("updating document verification: %w", err)
	}
	return nil
}

// SaveDecision records the manager's approval decision.
func (s *ApplicationStore) SaveDecision(ctx context.Context, id int64, approvalStatus, notes string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE loan_applications
		SET approval_status = $1, manager_notes = $2, status = $3, updated_at = NOW()
		WHERE id = $4`,
		approvalStatus, notes, models.StatusDecided, id)
	if err != nil {
		return fmt.Errorf("saving decision: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

func sortedFieldKeys(fields map[string]interface{}) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	// Deterministic order keeps generated SQL stable for tests and logs.
	sort.Strings(keys)
	return keys
}
