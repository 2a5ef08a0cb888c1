// internal/engine/composer.go
package engine

import (
	"fmt"
	"strings"

	"loanassist/internal/models"
)

// Actions a composed response can request from the caller.
const (
	ActionCollectDetails     = "collect_details"
	ActionRequestDocument    = "request_document"
	ActionPredictEligibility = "predict_eligibility"
	ActionGenerateReport     = "generate_report"
	ActionSendOTP            = "send_otp"
	ActionNone               = "none"
)

// Suggestion is one quick-reply chip offered alongside the reply text.
type Suggestion struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ComposeInput is everything the composer needs to build one reply.
type ComposeInput struct {
	Intent       string
	Message      string
	Captured     Slots // values captured from this turn only
	Merged       Slots // full collected state after the merge
	LastAskedKey string
	DocsVerified bool
	Evaluated    bool
}

// ComposeResult is the deterministic part of a turn's response. For
// general inquiries the caller may replace Reply with generated text,
// keeping Fallback as the safety net.
type ComposeResult struct {
	Reply           string
	Action          string
	NextQuestionKey string
	Fallback        string
	NeedsGeneration bool
}

// Compose renders the templated reply for a classified turn. Exactly one
// question is asked per reply.
func Compose(in ComposeInput) ComposeResult {
	switch in.Intent {
	case IntentGreeting:
		return ComposeResult{
			Reply:           "Hello! I'm your AI loan assistant. I'll help you apply for a loan and check your eligibility. To get started, could you please tell me your full name?",
			Action:          ActionCollectDetails,
			NextQuestionKey: FieldFullName,
		}

	case IntentProvidingInfo:
		return composeProvidingInfo(in)

	case IntentLoanInquiry:
		reply := "I'd be happy to help you with your loan application! To determine the best loan amount and terms for you, I need some basic information."
		if !in.Merged.Has(FieldAnnualIncome) {
			reply += " Let's start with your annual income - this helps me understand what loan amounts might work for your situation."
			return ComposeResult{Reply: reply, Action: ActionCollectDetails, NextQuestionKey: FieldAnnualIncome}
		}
		if next, ok := NextQuestion(in.Merged, in.LastAskedKey); ok {
			reply += " " + next.Prompt
			return ComposeResult{Reply: reply, Action: ActionCollectDetails, NextQuestionKey: next.Key}
		}
		return ComposeResult{Reply: reply + " " + uploadPrompt, Action: ActionRequestDocument}

	case IntentDocumentUpload:
		return ComposeResult{
			Reply:  "Perfect! Document verification is an important step in the loan process. Please upload your bank statement or ID proof. You can drag and drop the file or click to browse. I'll analyze it to verify your information and help complete your application.",
			Action: ActionRequestDocument,
		}

	case IntentEligibility:
		return composeEligibility(in)

	case IntentVerification:
		return ComposeResult{
			Reply:  "I'll send a verification code to your email. Please check your inbox and enter the 6-digit code when prompted. This helps ensure your application is secure.",
			Action: ActionSendOTP,
		}

	default:
		fallback := FallbackReply(in.Merged, in.Captured, in.LastAskedKey)
		return ComposeResult{
			Reply:           fallback,
			Action:          ActionNone,
			Fallback:        fallback,
			NeedsGeneration: true,
		}
	}
}

const uploadPrompt = "Perfect! I have all the key information I need. Please upload your bank statement or ID proof to continue with document verification."

func composeProvidingInfo(in ComposeInput) ComposeResult {
	reply := acknowledge(in.Captured)

	next, ok := NextQuestion(in.Merged, in.LastAskedKey)
	if !ok {
		if in.DocsVerified && !in.Evaluated {
			return ComposeResult{
				Reply:  reply + "Excellent! I have enough information to check your loan eligibility. Let me analyze your application and see what options are available. This will just take a moment...",
				Action: ActionPredictEligibility,
			}
		}
		return ComposeResult{Reply: reply + uploadPrompt, Action: ActionRequestDocument}
	}

	return ComposeResult{
		Reply:           reply + next.Prompt,
		Action:          ActionCollectDetails,
		NextQuestionKey: next.Key,
	}
}

func composeEligibility(in ComposeInput) ComposeResult {
	missing := Missing(in.Merged)
	if len(missing) == 0 {
		if !in.DocsVerified {
			return ComposeResult{Reply: uploadPrompt, Action: ActionRequestDocument}
		}
		if in.Evaluated {
			return ComposeResult{
				Reply:  "Your eligibility has already been evaluated. Would you like me to generate your application report?",
				Action: ActionGenerateReport,
			}
		}
		return ComposeResult{
			Reply:  "Excellent! I have enough information to check your loan eligibility. Let me analyze your application and see what options are available. This will just take a moment...",
			Action: ActionPredictEligibility,
		}
	}

	reply := "I need a bit more information to check your eligibility. "
	next, _ := NextQuestion(in.Merged, in.LastAskedKey)
	switch next.Key {
	case FieldAnnualIncome:
		reply += "Could you tell me your annual income? This helps me determine suitable loan amounts."
	case FieldCreditScore:
		reply += "What's your current credit score? This is important for assessing your eligibility."
	case FieldLoanAmount:
		reply += "What loan amount are you interested in applying for?"
	case FieldNumDependents:
		reply += "How many dependents do you have? This affects your financial assessment."
	case FieldEmploymentStatus:
		reply += "What's your employment status? Are you salaried, self-employed, or in business?"
	default:
		reply += fmt.Sprintf("Could you please provide your %s?", next.Display)
	}
	return ComposeResult{Reply: reply, Action: ActionCollectDetails, NextQuestionKey: next.Key}
}

// acknowledge summarizes the values captured from this turn.
func acknowledge(captured Slots) string {
	var summary []string
	for _, key := range allFieldKeys() {
		if !captured.Has(key) {
			continue
		}
		switch key {
		case FieldAnnualIncome:
			summary = append(summary, fmt.Sprintf("annual income of ₹%s", formatThousands(captured.AnnualIncome)))
		case FieldLoanAmount:
			summary = append(summary, fmt.Sprintf("loan amount of ₹%s", formatThousands(captured.LoanAmount)))
		case FieldCreditScore:
			summary = append(summary, fmt.Sprintf("credit score of %d", captured.CreditScore))
		case FieldEmploymentStatus:
			summary = append(summary, fmt.Sprintf("employment as %s", captured.EmploymentStatus))
		case FieldNumDependents:
			plural := "s"
			if captured.NumDependents == 1 {
				plural = ""
			}
			summary = append(summary, fmt.Sprintf("%d dependent%s", captured.NumDependents, plural))
		default:
			summary = append(summary, fmt.Sprintf("%s: %v", key, captured.Get(key)))
		}
	}
	if len(summary) == 0 {
		return "Thank you for sharing that information. "
	}
	return fmt.Sprintf("Thank you for sharing that information. I've noted your %s. ", strings.Join(summary, ", "))
}

// FallbackReply is the deterministic answer used when generation is
// unavailable: acknowledge, then ask the single next missing field.
func FallbackReply(merged, captured Slots, lastAskedKey string) string {
	prefix := ""
	if captured.Count() > 0 {
		prefix = acknowledge(captured)
	}

	missing := Missing(merged)
	// An email without a name usually means the applicant is mid-form;
	// don't circle back to the name right away.
	if captured.Has(FieldEmail) && !merged.Has(FieldFullName) {
		for i, spec := range missing {
			if spec.Key == FieldFullName {
				missing = append(missing[:i], missing[i+1:]...)
				break
			}
		}
	}

	if len(missing) == 0 {
		return prefix + "How can I help you proceed with your application?"
	}
	return prefix + missing[0].Prompt
}

// EligibilityReply renders the prediction outcome for the chat.
func EligibilityReply(p *models.PredictionResult) string {
	scorePct := p.EligibilityScore * 100
	statusText := "not eligible"
	if p.Eligible() {
		statusText = "eligible"
	}
	reply := fmt.Sprintf("Your eligibility check is complete. Your score is %.1f%% and you are currently %s for this loan.", scorePct, statusText)
	if len(p.Recommendations) > 0 {
		reply += " Recommendations: " + strings.Join(p.Recommendations, "; ") + "."
	}
	reply += " I've sent the detailed result to your email."
	return reply
}

// Suggestions builds up to limit quick-reply chips for the response.
func Suggestions(message string, result ComposeResult, merged Slots, intent string, limit int) []Suggestion {
	if limit <= 0 {
		limit = 3
	}
	var labels []string
	missing := MissingDisplayNames(merged)

	if result.Action == ActionCollectDetails && len(missing) > 0 {
		labels = append(labels, "Provide your "+missing[0])
	}
	if result.Action == ActionPredictEligibility {
		labels = append(labels, "Check your loan eligibility score")
	}
	if result.Action == ActionRequestDocument {
		labels = append(labels, "Upload your identity document for verification")
	}
	if intent == IntentVerification {
		labels = append(labels, "Enter the OTP code sent to your email")
	}

	lower := strings.ToLower(message)
	if strings.Contains(lower, "document") || strings.Contains(lower, "verify") || strings.Contains(lower, "upload") {
		labels = appendUnique(labels, "Upload your identity document for verification")
	}
	if strings.Contains(lower, "eligib") || strings.Contains(lower, "qualify") {
		labels = appendUnique(labels, "Check your loan eligibility score")
	}
	if strings.Contains(lower, "interest") || strings.Contains(lower, "rate") || strings.Contains(lower, "term") || strings.Contains(lower, "payment") {
		labels = appendUnique(labels, "Review loan terms and calculate monthly payments")
	}

	if (intent == IntentProvidingInfo || intent == IntentLoanInquiry) && len(missing) == 0 {
		labels = append([]string{"Open detailed application form"}, labels...)
	}

	if len(labels) == 0 {
		labels = append(labels, "Continue with the application process")
	}
	if len(labels) > limit {
		labels = labels[:limit]
	}

	out := make([]Suggestion, 0, len(labels))
	for _, label := range labels {
		out = append(out, Suggestion{ID: suggestionID(label), Label: label})
	}
	return out
}

var suggestionIDs = map[string]string{
	"open detailed application form":                 "open_form",
	"check your loan eligibility score":              "check_eligibility",
	"upload your identity document for verification": "upload_document",
	"enter the otp code sent to your email":          "enter_otp",
	"continue with the application process":          "continue",
}

func suggestionID(label string) string {
	lower := strings.ToLower(strings.TrimSpace(label))
	if id, ok := suggestionIDs[lower]; ok {
		return id
	}
	if strings.HasPrefix(lower, "provide your ") {
		return "provide_" + strings.ReplaceAll(strings.TrimPrefix(lower, "provide your "), " ", "_")
	}
	return "other"
}

func appendUnique(labels []string, label string) []string {
	for _, l := range labels {
		if l == label {
			return labels
		}
	}
	return append(labels, label)
}

func formatThousands(v int64) string {
	s := fmt.Sprintf("%d", v)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return strings.Join(parts, ",")
}
