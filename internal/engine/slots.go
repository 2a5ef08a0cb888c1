// internal/engine/slots.go
package engine

import "strings"

// Slots holds the typed collected values for one conversation. The zero
// value of each field means "not collected"; this is what makes the
// non-clobber merge safe.
type Slots struct {
	FullName         string
	Email            string
	Phone            string
	AnnualIncome     int64
	MonthlyIncome    int64
	LoanAmount       int64
	LoanTermMonths   int
	CreditScore      int
	EmploymentStatus string
	NumDependents    int
	LoanPurpose      string
	ExistingEMI      float64
}

// Has reports whether a field holds a collected value.
func (s *Slots) Has(key string) bool {
	switch key {
	case FieldFullName:
		return s.FullName != ""
	case FieldEmail:
		return s.Email != ""
	case FieldPhone:
		return s.Phone != ""
	case FieldAnnualIncome:
		return s.AnnualIncome != 0
	case FieldMonthlyIncome:
		return s.MonthlyIncome != 0
	case FieldLoanAmount:
		return s.LoanAmount != 0
	case FieldLoanTermMonths:
		return s.LoanTermMonths != 0
	case FieldCreditScore:
		return s.CreditScore != 0
	case FieldEmploymentStatus:
		return s.EmploymentStatus != ""
	case FieldNumDependents:
		return s.NumDependents != 0
	case FieldLoanPurpose:
		return s.LoanPurpose != ""
	case FieldExistingEMI:
		return s.ExistingEMI != 0
	}
	return false
}

// Set assigns a validated value to a field. Empty strings and numeric
// zeros are rejected so they can never clobber collected data.
func (s *Slots) Set(key string, value interface{}) bool {
	switch key {
	case FieldFullName:
		if v, ok := value.(string); ok && strings.TrimSpace(v) != "" {
			s.FullName = strings.TrimSpace(v)
			return true
		}
	case FieldEmail:
		if v, ok := value.(string); ok && strings.TrimSpace(v) != "" {
			s.Email = strings.TrimSpace(v)
			return true
		}
	case FieldPhone:
		if v, ok := value.(string); ok && strings.TrimSpace(v) != "" {
			s.Phone = strings.TrimSpace(v)
			return true
		}
	case FieldAnnualIncome:
		if v, ok := toInt64(value); ok && v > 0 {
			s.AnnualIncome = v
			return true
		}
	case FieldMonthlyIncome:
		if v, ok := toInt64(value); ok && v > 0 {
			s.MonthlyIncome = v
			return true
		}
	case FieldLoanAmount:
		if v, ok := toInt64(value); ok && v > 0 {
			s.LoanAmount = v
			return true
		}
	case FieldLoanTermMonths:
		if v, ok := toInt64(value); ok && v >= 1 && v <= 600 {
			s.LoanTermMonths = int(v)
			return true
		}
	case FieldCreditScore:
		if v, ok := toInt64(value); ok && v >= 300 && v <= 900 {
			s.CreditScore = int(v)
			return true
		}
	case FieldEmploymentStatus:
		if v, ok := value.(string); ok && strings.TrimSpace(v) != "" {
			s.EmploymentStatus = strings.TrimSpace(strings.ToLower(v))
			return true
		}
	case FieldNumDependents:
		if v, ok := toInt64(value); ok && v > 0 && v <= 20 {
			s.NumDependents = int(v)
			return true
		}
	case FieldLoanPurpose:
		if v, ok := value.(string); ok && strings.TrimSpace(v) != "" {
			s.LoanPurpose = strings.TrimSpace(strings.ToLower(v))
			return true
		}
	case FieldExistingEMI:
		if v, ok := toFloat64(value); ok && v > 0 {
			s.ExistingEMI = v
			return true
		}
	}
	return false
}

// Get returns the collected value for a key, or nil.
func (s *Slots) Get(key string) interface{} {
	if !s.Has(key) {
		return nil
	}
	switch key {
	case FieldFullName:
		return s.FullName
	case FieldEmail:
		return s.Email
	case FieldPhone:
		return s.Phone
	case FieldAnnualIncome:
		return s.AnnualIncome
	case FieldMonthlyIncome:
		return s.MonthlyIncome
	case FieldLoanAmount:
		return s.LoanAmount
	case FieldLoanTermMonths:
		return s.LoanTermMonths
	case FieldCreditScore:
		return s.CreditScore
	case FieldEmploymentStatus:
		return s.EmploymentStatus
	case FieldNumDependents:
		return s.NumDependents
	case FieldLoanPurpose:
		return s.LoanPurpose
	case FieldExistingEMI:
		return s.ExistingEMI
	}
	return nil
}

// Merge copies every collected value from other into s. Valid values
// overwrite (corrections are allowed); unset values never do.
func (s *Slots) Merge(other Slots) {
	for _, key := range allFieldKeys() {
		if other.Has(key) {
			s.Set(key, other.Get(key))
		}
	}
}

// ToMap flattens the collected values into a map keyed by field key.
func (s *Slots) ToMap() map[string]interface{} {
	out := map[string]interface{}{}
	for _, key := range allFieldKeys() {
		if s.Has(key) {
			out[key] = s.Get(key)
		}
	}
	return out
}

// FromMap builds Slots from a flat map, tolerating JSON numeric types.
func FromMap(m map[string]interface{}) Slots {
	var s Slots
	for k, v := range m {
		s.Set(k, v)
	}
	return s
}

// Count returns the number of collected fields.
func (s *Slots) Count() int {
	n := 0
	for _, key := range allFieldKeys() {
		if s.Has(key) {
			n++
		}
	}
	return n
}

func allFieldKeys() []string {
	return []string{
		FieldFullName, FieldEmail, FieldPhone,
		FieldAnnualIncome, FieldMonthlyIncome, FieldLoanAmount,
		FieldLoanTermMonths, FieldCreditScore, FieldEmploymentStatus,
		FieldNumDependents, FieldLoanPurpose, FieldExistingEMI,
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		var out int64
		for _, r := range cleaned {
			if r < '0' || r > '9' {
				return 0, false
			}
			out = out*10 + int64(r-'0')
		}
		if cleaned == "" {
			return 0, false
		}
		return out, true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}
