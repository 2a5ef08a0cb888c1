// internal/models/application.go
package models

import "time"

// ApplicationStatus is the lifecycle state of a loan application.
type ApplicationStatus string

const (
	StatusCollecting   ApplicationStatus = "collecting"
	StatusReadyForDocs ApplicationStatus = "ready_for_docs"
	StatusDocsVerified ApplicationStatus = "docs_verified"
	StatusEvaluated    ApplicationStatus = "evaluated"
	StatusDecided      ApplicationStatus = "decided"
)

// LoanApplication is the persisted application record. Numeric zero means
// "not collected yet" for applicant-provided fields.
type LoanApplication struct {
	ID               int64   `json:"id" db:"id"`
	UserKey          string  `json:"userKey" db:"user_key"`
	FullName         string  `json:"fullName" db:"full_name"`
	Email            string  `json:"email" db:"email"`
	Phone            string  `json:"phone" db:"phone"`
	AnnualIncome     int64   `json:"annualIncome" db:"annual_income"`
	MonthlyIncome    int64   `json:"monthlyIncome" db:"monthly_income"`
	LoanAmount       int64   `json:"loanAmount" db:"loan_amount"`
	LoanTermMonths   int     `json:"loanTermMonths" db:"loan_term_months"`
	CreditScore      int     `json:"creditScore" db:"credit_score"`
	EmploymentStatus string  `json:"employmentStatus" db:"employment_status"`
	NumDependents    int     `json:"numDependents" db:"num_dependents"`
	LoanPurpose      string  `json:"loanPurpose" db:"loan_purpose"`
	ExistingEMI      float64 `json:"existingEmi" db:"existing_emi"`

	DocumentVerified    bool    `json:"documentVerified" db:"document_verified"`
	EvaluationTriggered bool    `json:"evaluationTriggered" db:"evaluation_triggered"`
	EligibilityScore    float64 `json:"eligibilityScore" db:"eligibility_score"`
	EligibilityStatus   string  `json:"eligibilityStatus" db:"eligibility_status"`
	RiskLevel           string  `json:"riskLevel" db:"risk_level"`
	CreditTier          string  `json:"creditTier" db:"credit_tier"`

	ApprovalStatus string `json:"approvalStatus" db:"approval_status"`
	ManagerNotes   string `json:"managerNotes" db:"manager_notes"`
	ReportPath     string `json:"reportPath" db:"report_path"`

	Status    ApplicationStatus `json:"status" db:"status"`
	CreatedAt time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time         `json:"updatedAt" db:"updated_at"`
}

// FieldMap returns the applicant-provided fields as a flat map keyed by the
// canonical field keys. Unset (zero) values are omitted.
func (a *LoanApplication) FieldMap() map[string]interface{} {
	out := map[string]interface{}{}
	if a.FullName != "" {
		out["full_name"] = a.FullName
	}
	if a.Email != "" {
		out["email"] = a.Email
	}
	if a.Phone != "" {
		out["phone"] = a.Phone
	}
	if a.AnnualIncome != 0 {
		out["annual_income"] = a.AnnualIncome
	}
	if a.MonthlyIncome != 0 {
		out["monthly_income"] = a.MonthlyIncome
	}
	if a.LoanAmount != 0 {
		out["loan_amount"] = a.LoanAmount
	}
	if a.LoanTermMonths != 0 {
		out["loan_term_months"] = a.LoanTermMonths
	}
	if a.CreditScore != 0 {
		out["credit_score"] = a.CreditScore
	}
	if a.EmploymentStatus != "" {
		out["employment_status"] = a.EmploymentStatus
	}
	if a.NumDependents != 0 {
		out["num_dependents"] = a.NumDependents
	}
	if a.LoanPurpose != "" {
		out["loan_purpose"] = a.LoanPurpose
	}
	if a.ExistingEMI != 0 {
		out["existing_emi"] = a.ExistingEMI
	}
	return out
}
