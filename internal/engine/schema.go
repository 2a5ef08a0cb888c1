// internal/engine/schema.go
package engine

// Canonical field keys for applicant-provided data.
const (
	FieldFullName         = "full_name"
	FieldEmail            = "email"
	FieldPhone            = "phone"
	FieldAnnualIncome     = "annual_income"
	FieldMonthlyIncome    = "monthly_income"
	FieldLoanAmount       = "loan_amount"
	FieldLoanTermMonths   = "loan_term_months"
	FieldCreditScore      = "credit_score"
	FieldEmploymentStatus = "employment_status"
	FieldNumDependents    = "num_dependents"
	FieldLoanPurpose      = "loan_purpose"
	FieldExistingEMI      = "existing_emi"
)

// FieldSpec describes one applicant field: how it is named in prompts and
// whether it gates readiness for document upload.
type FieldSpec struct {
	Key      string
	Display  string
	Prompt   string
	Optional bool
}

// RequiredFields is the asking order. Optional fields are collected
// opportunistically but never asked for and never block readiness.
var RequiredFields = []FieldSpec{
	{Key: FieldFullName, Display: "full name", Prompt: "What's your full name?"},
	{Key: FieldEmail, Display: "email address", Prompt: "What's your email address?"},
	{Key: FieldPhone, Display: "phone number", Prompt: "What's your 10-digit phone number?"},
	{Key: FieldAnnualIncome, Display: "annual income", Prompt: "What's your annual income (in INR)?"},
	{Key: FieldLoanAmount, Display: "loan amount", Prompt: "What loan amount are you looking for (INR)?"},
	{Key: FieldLoanTermMonths, Display: "loan term (months)", Prompt: "Over how many months would you like to repay the loan?"},
	{Key: FieldCreditScore, Display: "credit score", Prompt: "What's your current credit score?"},
	{Key: FieldEmploymentStatus, Display: "employment status", Prompt: "What's your employment status? Are you salaried, self-employed, or in business?"},
	{Key: FieldNumDependents, Display: "number of dependents", Prompt: "How many dependents do you have?"},
}

// OptionalFields are captured when volunteered by the applicant.
var OptionalFields = []FieldSpec{
	{Key: FieldLoanPurpose, Display: "loan purpose", Prompt: "What is the purpose of your loan? (e.g., home, car, education, business, personal)", Optional: true},
	{Key: FieldExistingEMI, Display: "existing EMI", Prompt: "What is your total existing monthly EMI?", Optional: true},
	{Key: FieldMonthlyIncome, Display: "monthly income", Prompt: "What's your monthly income (in INR)?", Optional: true},
}

// SpecFor returns the field spec for a key.
func SpecFor(key string) (FieldSpec, bool) {
	for _, f := range RequiredFields {
		if f.Key == key {
			return f, true
		}
	}
	for _, f := range OptionalFields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// DisplayName returns the human-readable name for a field key.
func DisplayName(key string) string {
	if spec, ok := SpecFor(key); ok {
		return spec.Display
	}
	return key
}
