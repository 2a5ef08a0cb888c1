// internal/models/prediction.go
package models

// PredictionResult is the outcome of an eligibility evaluation.
type PredictionResult struct {
	EligibilityScore  float64  `json:"eligibilityScore"`
	EligibilityStatus string   `json:"eligibilityStatus"` // eligible | not_eligible
	RiskLevel         string   `json:"riskLevel"`
	CreditTier        string   `json:"creditTier"`
	Recommendations   []string `json:"recommendations"`
	Confidence        float64  `json:"confidence"`
}

// Eligible reports whether the score cleared the approval threshold.
func (p *PredictionResult) Eligible() bool {
	return p.EligibilityStatus == "eligible"
}
