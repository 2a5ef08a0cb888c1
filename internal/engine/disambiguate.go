// internal/engine/disambiguate.go
package engine

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonDigitRe = regexp.MustCompile(`\D`)
	yearsRe    = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:years?|yrs?)`)
)

// ResolveKeyed parses an utterance strictly as the answer to the field the
// assistant asked about in its previous turn. It returns the captured
// slots and whether anything was captured. This tier outranks text
// sniffing and the extractor's bare-number fallbacks.
func ResolveKeyed(key, message string, already Slots) (Slots, bool) {
	var out Slots
	stripped := strings.TrimSpace(message)
	lower := strings.ToLower(stripped)
	digits := nonDigitRe.ReplaceAllString(lower, "")

	switch key {
	case FieldFullName:
		if looksLikeBareName(stripped) {
			out.Set(FieldFullName, titleCase(stripped))
		} else if m := namePhraseRe.FindStringSubmatch(message); m != nil {
			out.Set(FieldFullName, titleCase(m[1]))
		}

	case FieldEmail:
		if m := emailRe.FindStringSubmatch(message); m != nil {
			out.Set(FieldEmail, m[1])
		}

	case FieldPhone:
		if len(digits) == 10 {
			out.Set(FieldPhone, digits)
		}

	case FieldAnnualIncome, FieldMonthlyIncome, FieldLoanAmount:
		if v, ok := parseAmount(lower, digits); ok {
			out.Set(key, v)
		}

	case FieldLoanTermMonths:
		if m := yearsRe.FindStringSubmatch(lower); m != nil {
			years, _ := strconv.Atoi(m[1])
			out.Set(FieldLoanTermMonths, years*12)
		} else if digits != "" && len(digits) <= 3 {
			out.Set(FieldLoanTermMonths, digits)
		}

	case FieldCreditScore:
		if len(digits) == 3 {
			if v, _ := strconv.Atoi(digits); v >= 300 && v <= 900 {
				out.Set(FieldCreditScore, v)
			}
		}

	case FieldEmploymentStatus:
		if status, ok := parseEmployment(lower); ok {
			out.Set(FieldEmploymentStatus, status)
		}

	case FieldNumDependents:
		if digits != "" && len(digits) <= 2 {
			if v, _ := strconv.Atoi(digits); v >= 0 && v <= 20 {
				out.Set(FieldNumDependents, v)
			}
		}

	case FieldLoanPurpose:
		if stripped != "" && nonDigitRe.MatchString(stripped) {
			out.Set(FieldLoanPurpose, stripped)
		}

	case FieldExistingEMI:
		if digits != "" && len(digits) <= 7 {
			if v, err := strconv.ParseFloat(digits, 64); err == nil {
				out.Set(FieldExistingEMI, v)
			}
		}
	}

	return out, out.Count() > 0
}

// SniffQuestionKey inspects the text of the last assistant prompt and
// guesses which field it was asking about. Used only when the previous
// turn carries no explicit last_question_key.
func SniffQuestionKey(assistantPrompt string) string {
	lower := strings.ToLower(assistantPrompt)
	switch {
	case lower == "":
		return ""
	case strings.Contains(lower, "credit score"):
		return FieldCreditScore
	case strings.Contains(lower, "annual income"):
		return FieldAnnualIncome
	case strings.Contains(lower, "monthly income"):
		return FieldMonthlyIncome
	case strings.Contains(lower, "loan amount"):
		return FieldLoanAmount
	case strings.Contains(lower, "term") || strings.Contains(lower, "tenure") || strings.Contains(lower, "months"):
		return FieldLoanTermMonths
	case strings.Contains(lower, "dependent"):
		return FieldNumDependents
	case strings.Contains(lower, "employment"):
		return FieldEmploymentStatus
	case strings.Contains(lower, "purpose"):
		return FieldLoanPurpose
	case strings.Contains(lower, "emi"):
		return FieldExistingEMI
	case strings.Contains(lower, "name"):
		return FieldFullName
	case strings.Contains(lower, "email"):
		return FieldEmail
	case strings.Contains(lower, "phone"):
		return FieldPhone
	default:
		return ""
	}
}

// parseAmount accepts lakh/crore shorthand or a plain 4-8 digit number.
func parseAmount(lower, digits string) (int64, bool) {
	if m := unitAmountRe.FindStringSubmatch(lower); m != nil {
		amount, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		multiplier := 100000.0
		if strings.Contains(strings.ToLower(m[2]), "crore") {
			multiplier = 10000000.0
		}
		return int64(math.Round(amount * multiplier)), true
	}
	if len(digits) >= 4 && len(digits) <= 8 {
		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

func parseEmployment(lower string) (string, bool) {
	switch strings.TrimSpace(lower) {
	case "salaried", "self-employed", "business", "unemployed":
		return strings.TrimSpace(lower), true
	}
	switch {
	case strings.Contains(lower, "self") && strings.Contains(lower, "employ"):
		return "self-employed", true
	case strings.Contains(lower, "unemployed"):
		return "unemployed", true
	case strings.Contains(lower, "employed") || strings.Contains(lower, "salaried"):
		return "salaried", true
	case strings.Contains(lower, "business"):
		return "business", true
	}
	return "", false
}
