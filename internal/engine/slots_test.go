// internal/engine/slots_test.go
package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Validation Tests
// ==========================

func TestSlots_SetValidation(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    interface{}
		accepted bool
	}{
		{name: "valid name", key: FieldFullName, value: "Rohan Gupta", accepted: true},
		{name: "empty name rejected", key: FieldFullName, value: "   ", accepted: false},
		{name: "valid income", key: FieldAnnualIncome, value: int64(750000), accepted: true},
		{name: "zero income rejected", key: FieldAnnualIncome, value: int64(0), accepted: false},
		{name: "income from string", key: FieldAnnualIncome, value: "750000", accepted: true},
		{name: "income from comma string", key: FieldAnnualIncome, value: "7,50,000", accepted: true},
		{name: "income from json float", key: FieldAnnualIncome, value: float64(750000), accepted: true},
		{name: "credit in range", key: FieldCreditScore, value: 720, accepted: true},
		{name: "credit below range", key: FieldCreditScore, value: 299, accepted: false},
		{name: "credit above range", key: FieldCreditScore, value: 901, accepted: false},
		{name: "term in range", key: FieldLoanTermMonths, value: 12, accepted: true},
		{name: "term zero rejected", key: FieldLoanTermMonths, value: 0, accepted: false},
		{name: "term above range", key: FieldLoanTermMonths, value: 601, accepted: false},
		{name: "dependents in range", key: FieldNumDependents, value: 2, accepted: true},
		{name: "dependents zero rejected", key: FieldNumDependents, value: 0, accepted: false},
		{name: "dependents above range", key: FieldNumDependents, value: 21, accepted: false},
		{name: "employment lowercased", key: FieldEmploymentStatus, value: "Salaried", accepted: true},
		{name: "emi positive", key: FieldExistingEMI, value: 12500.0, accepted: true},
		{name: "emi zero rejected", key: FieldExistingEMI, value: 0.0, accepted: false},
		{name: "non-numeric string rejected", key: FieldAnnualIncome, value: "lots", accepted: false},
		{name: "unknown key rejected", key: "favorite_color", value: "blue", accepted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Slots
			assert.Equal(t, tt.accepted, s.Set(tt.key, tt.value))
			assert.Equal(t, tt.accepted, s.Has(tt.key))
		})
	}
}

func TestSlots_EmploymentNormalized(t *testing.T) {
	var s Slots
	s.Set(FieldEmploymentStatus, "  Salaried ")
	assert.Equal(t, "salaried", s.EmploymentStatus)
}

// ==========================
// Merge Semantics
// ==========================

func TestSlots_MergeNeverClobbers(t *testing.T) {
	collected := Slots{
		FullName:     "Rohan Gupta",
		Email:        "rohan@example.com",
		AnnualIncome: 750000,
		CreditScore:  720,
	}

	// An update carrying only a phone number must leave everything else
	// untouched.
	var update Slots
	update.Set(FieldPhone, "9876543210")
	collected.Merge(update)

	assert.Equal(t, "Rohan Gupta", collected.FullName)
	assert.Equal(t, "rohan@example.com", collected.Email)
	assert.Equal(t, int64(750000), collected.AnnualIncome)
	assert.Equal(t, 720, collected.CreditScore)
	assert.Equal(t, "9876543210", collected.Phone)
}

func TestSlots_MergeAllowsCorrections(t *testing.T) {
	collected := Slots{AnnualIncome: 750000}

	var correction Slots
	correction.Set(FieldAnnualIncome, int64(900000))
	collected.Merge(correction)

	assert.Equal(t, int64(900000), collected.AnnualIncome)
}

func TestSlots_MergeZeroValueIsNoOp(t *testing.T) {
	collected := Slots{AnnualIncome: 750000, NumDependents: 2}
	collected.Merge(Slots{})

	assert.Equal(t, int64(750000), collected.AnnualIncome)
	assert.Equal(t, 2, collected.NumDependents)
}

// ==========================
// Map Round Trip
// ==========================

func TestSlots_MapRoundTrip(t *testing.T) {
	original := Slots{
		FullName:         "Rohan Gupta",
		Email:            "rohan@example.com",
		Phone:            "9876543210",
		AnnualIncome:     750000,
		LoanAmount:       500000,
		LoanTermMonths:   12,
		CreditScore:      720,
		EmploymentStatus: "salaried",
		NumDependents:    2,
	}

	restored := FromMap(original.ToMap())
	assert.Equal(t, original, restored)
	assert.Equal(t, 9, restored.Count())
}

func TestSlots_FromMapToleratesJSONNumbers(t *testing.T) {
	// Meta read back from JSONB arrives with float64 numbers.
	s := FromMap(map[string]interface{}{
		"annual_income":    float64(750000),
		"credit_score":     float64(720),
		"loan_term_months": float64(12),
		"num_dependents":   float64(2),
	})

	assert.Equal(t, int64(750000), s.AnnualIncome)
	assert.Equal(t, 720, s.CreditScore)
	assert.Equal(t, 12, s.LoanTermMonths)
	assert.Equal(t, 2, s.NumDependents)
}
