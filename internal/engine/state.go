// internal/engine/state.go
package engine

import "loanassist/internal/models"

// NextState computes the application state after a turn. Transitions only
// move forward through the pipeline, except that an applicant correcting
// details drops the application back to collecting.
func NextState(current models.ApplicationStatus, slots Slots, docsVerified, evaluated, decided bool) models.ApplicationStatus {
	switch {
	case decided:
		return models.StatusDecided
	case evaluated:
		return models.StatusEvaluated
	case docsVerified:
		return models.StatusDocsVerified
	case len(Missing(slots)) == 0:
		return models.StatusReadyForDocs
	default:
		return models.StatusCollecting
	}
}

// CanEvaluate reports whether eligibility prediction may run. Prediction
// is gated on verified documents, never on field completeness alone.
func CanEvaluate(status models.ApplicationStatus) bool {
	return status == models.StatusDocsVerified
}

// ReopenForUpdate returns the state an evaluated or decided application
// moves to when the applicant changes a collected field.
func ReopenForUpdate(current models.ApplicationStatus) models.ApplicationStatus {
	switch current {
	case models.StatusEvaluated, models.StatusDecided:
		return models.StatusCollecting
	default:
		return current
	}
}
