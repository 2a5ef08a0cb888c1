// internal/services/prediction/service.go
package prediction

import (
	"context"
	"errors"
	"math"

	commonerrors "loanassist/internal/common/errors"
	"loanassist/internal/common/logger"
	"loanassist/internal/models"
)

// Scoring weights. Credit history dominates, debt burden matches it,
// employment and demographics nudge the result.
const (
	creditWeight     = 0.4
	dtiWeight        = 0.4
	employmentSalary = 0.2
	employmentSelf   = 0.1
	ageAdjustment    = 0.1
	accountAgeWeight = 0.1

	scoreCap          = 0.95
	eligibleThreshold = 0.5

	// Monthly rate used for the EMI estimate: 5% annual, amortized.
	monthlyRate = 0.05 / 12.0
)

// Features is the input snapshot for one evaluation.
type Features struct {
	AnnualIncome     float64
	CreditScore      float64
	LoanAmount       float64
	LoanTermMonths   float64
	EmploymentStatus string
	ExistingEMI      float64
	Age              float64
	AccountAgeYears  float64
}

// Service scores eligibility with a deterministic heuristic. It never
// calls out of process, so a prediction failure can only be bad input.
type Service struct {
	logger logger.Logger
}

func New(log logger.Logger) *Service {
	return &Service{logger: log.WithFields(map[string]interface{}{"collaborator": "prediction"})}
}

// Predict evaluates one application snapshot.
func (s *Service) Predict(_ context.Context, raw map[string]interface{}) (*models.PredictionResult, error) {
	f := featuresFromMap(raw)
	if f.AnnualIncome <= 0 || f.CreditScore <= 0 || f.LoanAmount <= 0 {
		return nil, commonerrors.NewPredictionFailedError(errors.New("incomplete feature snapshot"))
	}

	score := 0.0

	// Credit history, normalized over the 300-850 band.
	score += clamp((f.CreditScore-300)/550, 0, 1) * creditWeight

	// Debt burden.
	dti := s.debtToIncome(f)
	switch {
	case dti < 0.2:
		score += dtiWeight
	case dti < 0.35:
		score += dtiWeight * 0.75
	case dti < 0.5:
		score += dtiWeight * 0.5
	case dti < 0.65:
		score += dtiWeight * 0.25
	}

	// Employment stability.
	switch f.EmploymentStatus {
	case "salaried":
		score += employmentSalary
	case "self-employed", "business":
		score += employmentSelf
	}

	// Demographics, when known.
	if f.Age > 0 {
		switch {
		case f.Age >= 25 && f.Age <= 55:
			score += ageAdjustment
		case f.Age < 21 || f.Age > 65:
			score -= ageAdjustment
		}
	}
	if f.AccountAgeYears > 0 {
		score += clamp(f.AccountAgeYears/10, 0, 1) * accountAgeWeight
	}

	score = clamp(score, 0, scoreCap)

	result := &models.PredictionResult{
		EligibilityScore:  round2(score),
		EligibilityStatus: "not_eligible",
		RiskLevel:         riskLevel(score),
		CreditTier:        creditTier(f.CreditScore),
		Recommendations:   recommendations(f, dti, score),
		Confidence:        round2(math.Min(score*1.2, 1.0)),
	}
	if score >= eligibleThreshold {
		result.EligibilityStatus = "eligible"
	}

	s.logger.Info("evaluation scored", map[string]interface{}{
		"score": result.EligibilityScore, "status": result.EligibilityStatus,
		"risk": result.RiskLevel, "dti": round2(dti),
	})
	return result, nil
}

// debtToIncome estimates the monthly obligation ratio: requested EMI plus
// any existing EMI, against monthly income.
func (s *Service) debtToIncome(f Features) float64 {
	monthlyIncome := f.AnnualIncome / 12.0
	if monthlyIncome <= 0 {
		return 5.0
	}

	term := f.LoanTermMonths
	if term <= 0 {
		term = 60
	}

	// Standard amortization for the requested loan.
	factor := math.Pow(1+monthlyRate, term)
	emi := f.LoanAmount * monthlyRate * factor / (factor - 1)

	return clamp((emi+f.ExistingEMI)/monthlyIncome, 0, 5)
}

func riskLevel(score float64) string {
	switch {
	case score >= 0.7:
		return "low"
	case score >= 0.5:
		return "medium"
	default:
		return "high"
	}
}

func creditTier(creditScore float64) string {
	switch {
	case creditScore >= 740:
		return "excellent"
	case creditScore >= 670:
		return "good"
	case creditScore >= 580:
		return "fair"
	default:
		return "poor"
	}
}

func recommendations(f Features, dti, score float64) []string {
	var out []string
	if f.CreditScore < 670 {
		out = append(out, "Improve your credit score before reapplying for better rates")
	}
	if dti >= 0.35 {
		out = append(out, "Consider a smaller loan amount or a longer term to reduce your monthly burden")
	}
	if f.EmploymentStatus != "salaried" && score < eligibleThreshold {
		out = append(out, "Provide additional income documentation to strengthen your application")
	}
	if len(out) == 0 && score < scoreCap {
		out = append(out, "Keep your existing EMIs low to maintain your eligibility")
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

func featuresFromMap(raw map[string]interface{}) Features {
	return Features{
		AnnualIncome:     asFloat(raw["annual_income"]),
		CreditScore:      asFloat(raw["credit_score"]),
		LoanAmount:       asFloat(raw["loan_amount"]),
		LoanTermMonths:   asFloat(raw["loan_term_months"]),
		EmploymentStatus: asString(raw["employment_status"]),
		ExistingEMI:      asFloat(raw["existing_emi"]),
		Age:              asFloat(raw["age"]),
		AccountAgeYears:  asFloat(raw["account_age_years"]),
	}
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
