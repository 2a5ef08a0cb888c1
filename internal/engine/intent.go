// internal/engine/intent.go
package engine

import (
	"regexp"
	"strings"
	"unicode"
)

// Intent labels, in classification priority order.
const (
	IntentGreeting       = "greeting"
	IntentProvidingInfo  = "providing_info"
	IntentLoanInquiry    = "loan_inquiry"
	IntentDocumentUpload = "document_upload"
	IntentEligibility    = "eligibility_check"
	IntentVerification   = "verification"
	IntentGeneralInquiry = "general_inquiry"
)

var (
	greetingWords     = []string{"hello", "hi", "hey", "start", "begin"}
	personalInfoWords = []string{"name", "age", "income", "salary"}
	loanWords         = []string{"loan", "amount", "borrow", "need money"}
	documentWords     = []string{"document", "upload", "file", "bank statement", "id"}
	eligibilityWords  = []string{"eligible", "check", "qualify", "eligibility"}
	verificationWords = []string{"verify", "otp", "code"}

	nameStopWords = map[string]bool{
		"loan": true, "apply": true, "application": true, "amount": true,
		"borrow": true, "credit": true, "score": true, "income": true, "salary": true,
	}

	bareNameShape = regexp.MustCompile(`^[A-Za-z][A-Za-z\-'.]+(?:\s+[A-Za-z][A-Za-z\-'.]+){0,2}$`)
)

// ClassifyIntent maps an utterance to an intent using a fixed keyword
// priority. It is a pure function of the message text.
func ClassifyIntent(message string) string {
	lower := strings.ToLower(message)
	tokens := tokenize(lower)

	switch {
	case containsAnyToken(tokens, greetingWords):
		return IntentGreeting
	case containsAnyToken(tokens, personalInfoWords):
		return IntentProvidingInfo
	case looksLikeBareName(message):
		return IntentProvidingInfo
	case containsAnyPhrase(lower, loanWords):
		return IntentLoanInquiry
	case containsAnyPhrase(lower, documentWords):
		return IntentDocumentUpload
	case containsAnyToken(tokens, eligibilityWords):
		return IntentEligibility
	case containsAnyToken(tokens, verificationWords):
		return IntentVerification
	default:
		return IntentGeneralInquiry
	}
}

// looksLikeBareName detects a message that is just a person's name:
// one to three Title-Case words with no loan vocabulary.
func looksLikeBareName(message string) bool {
	trimmed := strings.TrimSpace(message)
	if !bareNameShape.MatchString(trimmed) {
		return false
	}

	words := strings.Fields(trimmed)
	if len(words) < 1 || len(words) > 3 {
		return false
	}
	for _, w := range words {
		if nameStopWords[strings.ToLower(w)] {
			return false
		}
		runes := []rune(w)
		if !unicode.IsUpper(runes[0]) {
			return false
		}
		hasLower := false
		for _, r := range runes[1:] {
			if unicode.IsLower(r) {
				hasLower = true
				break
			}
		}
		if !hasLower {
			return false
		}
	}
	return true
}

func tokenize(lower string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[tok] = true
	}
	return out
}

func containsAnyToken(tokens map[string]bool, words []string) bool {
	for _, w := range words {
		if strings.Contains(w, " ") {
			continue
		}
		if tokens[w] {
			return true
		}
	}
	return false
}

func containsAnyPhrase(lower string, words []string) bool {
	tokens := tokenize(lower)
	for _, w := range words {
		if strings.Contains(w, " ") {
			if strings.Contains(lower, w) {
				return true
			}
			continue
		}
		if tokens[w] {
			return true
		}
	}
	return false
}
