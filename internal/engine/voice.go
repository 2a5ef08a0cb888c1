// internal/engine/voice.go
package engine

import "strings"

// voiceKeyAliases maps the loose key names produced by the realtime voice
// channel onto canonical field keys.
var voiceKeyAliases = map[string]string{
	"income": FieldAnnualIncome, "monthly_income": FieldMonthlyIncome,
	"monthlyincome": FieldMonthlyIncome, "salary": FieldAnnualIncome,
	"annual_income": FieldAnnualIncome,

	"existing_emi": FieldExistingEMI, "emi": FieldExistingEMI,
	"monthly_emi": FieldExistingEMI, "installments": FieldExistingEMI,
	"current_emi": FieldExistingEMI,

	"credit_score": FieldCreditScore, "score": FieldCreditScore,
	"cibil": FieldCreditScore, "creditscore": FieldCreditScore,
	"credit": FieldCreditScore,

	"loan_amount": FieldLoanAmount, "amount": FieldLoanAmount,
	"loanamount": FieldLoanAmount, "loan": FieldLoanAmount,
	"requested_amount": FieldLoanAmount, "amount_requested": FieldLoanAmount,
	"total_amount": FieldLoanAmount,

	"loan_tenure_years": "loan_tenure_years", "tenure": "loan_tenure_years",
	"years": "loan_tenure_years", "term": FieldLoanTermMonths,
	"loan_term_months": FieldLoanTermMonths,

	"name": FieldFullName, "full_name": FieldFullName,
	"fullname": FieldFullName, "first_name": FieldFullName,
	"user_name": FieldFullName,

	"employment_type": FieldEmploymentStatus, "employment": FieldEmploymentStatus,
	"job_type": FieldEmploymentStatus, "employment_status": FieldEmploymentStatus,
	"work_type": FieldEmploymentStatus, "profession": FieldEmploymentStatus,

	"loan_purpose": FieldLoanPurpose, "purpose": FieldLoanPurpose,
	"reason": FieldLoanPurpose, "loan_reason": FieldLoanPurpose,

	"email": FieldEmail, "phone": FieldPhone, "phone_number": FieldPhone,
	"num_dependents": FieldNumDependents, "dependents": FieldNumDependents,
}

// NormalizeVoicePayload converts a flat key→value payload from the voice
// channel into Slots. Tenure given in years is converted to months. Zero
// and empty values are dropped so they can never clobber collected data.
func NormalizeVoicePayload(payload map[string]interface{}) Slots {
	var out Slots
	for rawKey, value := range payload {
		key, ok := voiceKeyAliases[strings.ToLower(strings.TrimSpace(rawKey))]
		if !ok {
			continue
		}

		if key == "loan_tenure_years" {
			if years, ok := toInt64(value); ok && years > 0 && years <= 50 {
				out.Set(FieldLoanTermMonths, years*12)
			}
			continue
		}

		out.Set(key, value)
	}
	return out
}
