// internal/engine/extract.go
package engine

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	emailRe      = regexp.MustCompile(`([a-zA-Z0-9_.+\-]+@[a-zA-Z0-9\-]+\.[a-zA-Z0-9\-.]+)`)
	namePhraseRe = regexp.MustCompile(`(?i)(?:my\s+name\s+is|i\s*am|i'm|this\s+is)\s+([A-Za-z][A-Za-z\-']+(?:\s+[A-Za-z][A-Za-z\-']+){0,3})`)
	unitAmountRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(lakh|lakhs|crore|crores)`)
	incomeKwRe   = regexp.MustCompile(`(?i)(?:income|salary|earn)\D*?(\d{4,8})`)
	loanKwRe     = regexp.MustCompile(`(?i)(?:loan|borrow|need)\D*?(\d{4,8})`)
	creditKwRe   = regexp.MustCompile(`(?i)(?:credit|score)\D*?(\d{3})\b`)
	phoneRe      = regexp.MustCompile(`\b(\d{10})\b`)
	dependentsRe = regexp.MustCompile(`(?i)(\d+)\s*(?:dependent|kid|child)`)
	bareAmountRe = regexp.MustCompile(`^\d{5,8}$`)
	bareIntRe    = regexp.MustCompile(`^\d{1,2}$`)
)

// ExtractOptions tunes the extractor for a single utterance.
type ExtractOptions struct {
	// SkipBare disables the bare-number fallbacks (plain 5-8 digit
	// amounts and plain small integers). The orchestrator sets it when
	// the last-question context already claimed the utterance.
	SkipBare bool
}

// Extract pulls applicant fields out of a free-text message. The already
// collected slots steer the bare-amount tie-break between income and loan
// amount. An empty result is normal, not an error.
func Extract(message string, already Slots, opts ExtractOptions) Slots {
	var out Slots
	lower := strings.ToLower(message)
	stripped := strings.TrimSpace(message)

	// Email
	if m := emailRe.FindStringSubmatch(message); m != nil {
		out.Set(FieldEmail, m[1])
	}

	// Name phrases: "my name is X", "I'm X", "I am X", "This is X"
	if m := namePhraseRe.FindStringSubmatch(message); m != nil {
		if candidate := strings.TrimSpace(m[1]); !containsLoanVocabulary(candidate) {
			out.Set(FieldFullName, titleCase(candidate))
		}
	}

	// Employment status as a standalone answer
	switch strings.ToLower(stripped) {
	case "salaried", "self-employed", "business", "unemployed":
		out.Set(FieldEmploymentStatus, strings.ToLower(stripped))
	}

	// Name-only message, guarded by shape and the loan-keyword stoplist
	if !out.Has(FieldFullName) && !out.Has(FieldEmploymentStatus) && looksLikeBareName(stripped) {
		out.Set(FieldFullName, titleCase(stripped))
	}

	// Amounts with lakh/crore units fill income first, then loan amount
	if m := unitAmountRe.FindStringSubmatch(lower); m != nil {
		amount, _ := strconv.ParseFloat(m[1], 64)
		multiplier := 100000.0
		if strings.Contains(strings.ToLower(m[2]), "crore") {
			multiplier = 10000000.0
		}
		value := int64(math.Round(amount * multiplier))
		if !already.Has(FieldAnnualIncome) && !out.Has(FieldAnnualIncome) {
			out.Set(FieldAnnualIncome, value)
		} else if !already.Has(FieldLoanAmount) {
			out.Set(FieldLoanAmount, value)
		}
	}

	// Keyword-anchored income and loan amounts
	if !out.Has(FieldAnnualIncome) {
		if m := incomeKwRe.FindStringSubmatch(lower); m != nil {
			out.Set(FieldAnnualIncome, m[1])
		}
	}
	if !out.Has(FieldLoanAmount) {
		if m := loanKwRe.FindStringSubmatch(lower); m != nil {
			if v, _ := toInt64(m[1]); !out.Has(FieldAnnualIncome) || v != out.AnnualIncome {
				out.Set(FieldLoanAmount, m[1])
			}
		}
	}

	// Bare 5-8 digit message: whichever of income/loan is still unfilled
	if !opts.SkipBare && bareAmountRe.MatchString(stripped) &&
		!out.Has(FieldAnnualIncome) && !out.Has(FieldLoanAmount) {
		if !already.Has(FieldAnnualIncome) {
			out.Set(FieldAnnualIncome, stripped)
		} else if !already.Has(FieldLoanAmount) {
			out.Set(FieldLoanAmount, stripped)
		}
	}

	// Credit score needs its keyword and the stricter chat-path range
	if m := creditKwRe.FindStringSubmatch(lower); m != nil {
		if v, _ := strconv.Atoi(m[1]); v >= 300 && v <= 850 {
			out.Set(FieldCreditScore, v)
		}
	}

	// Phone number
	if m := phoneRe.FindStringSubmatch(message); m != nil {
		out.Set(FieldPhone, m[1])
	}

	// Employment status mentioned inside a sentence
	if !out.Has(FieldEmploymentStatus) {
		switch {
		case strings.Contains(lower, "self") && strings.Contains(lower, "employ"):
			out.Set(FieldEmploymentStatus, "self-employed")
		case strings.Contains(lower, "unemployed"):
			out.Set(FieldEmploymentStatus, "unemployed")
		case strings.Contains(lower, "employed") || strings.Contains(lower, "salaried"):
			out.Set(FieldEmploymentStatus, "salaried")
		case strings.Contains(lower, "business"):
			out.Set(FieldEmploymentStatus, "business")
		}
	}

	// Dependents: explicit phrase, or a plain small integer fallback
	if m := dependentsRe.FindStringSubmatch(lower); m != nil {
		out.Set(FieldNumDependents, m[1])
	} else if !opts.SkipBare && bareIntRe.MatchString(stripped) {
		if v, _ := strconv.Atoi(stripped); v >= 0 && v <= 20 {
			out.Set(FieldNumDependents, v)
		}
	}

	return out
}

var employmentVocabulary = map[string]bool{
	"salaried": true, "self-employed": true, "business": true,
	"unemployed": true, "employed": true,
}

func containsLoanVocabulary(s string) bool {
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if nameStopWords[w] || employmentVocabulary[w] {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	parts := strings.Fields(strings.TrimSpace(s))
	for i, p := range parts {
		if len(p) > 1 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		} else {
			parts[i] = strings.ToUpper(p)
		}
	}
	return strings.Join(parts, " ")
}
