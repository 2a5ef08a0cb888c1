// internal/engine/composer_test.go
package engine

import (
	"strings"
	"testing"

	"loanassist/internal/models"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Reply Composition Tests
// ==========================

func TestCompose_Greeting(t *testing.T) {
	got := Compose(ComposeInput{Intent: IntentGreeting, Message: "hi"})

	assert.Contains(t, got.Reply, "AI loan assistant")
	assert.Contains(t, got.Reply, "full name")
	assert.Equal(t, ActionCollectDetails, got.Action)
	assert.Equal(t, FieldFullName, got.NextQuestionKey)
	assert.False(t, got.NeedsGeneration)
}

func TestCompose_ProvidingInfo(t *testing.T) {
	t.Run("acknowledges captured values and asks one question", func(t *testing.T) {
		var captured Slots
		captured.Set(FieldAnnualIncome, int64(750000))

		merged := Slots{FullName: "Rohan Gupta", Email: "rohan@example.com", Phone: "9876543210", AnnualIncome: 750000}
		got := Compose(ComposeInput{Intent: IntentProvidingInfo, Captured: captured, Merged: merged})

		assert.Contains(t, got.Reply, "annual income of ₹750,000")
		assert.Contains(t, got.Reply, "loan amount")
		assert.Equal(t, ActionCollectDetails, got.Action)
		assert.Equal(t, FieldLoanAmount, got.NextQuestionKey)
		assert.Equal(t, 1, strings.Count(got.Reply, "?"))
	})

	t.Run("complete slots request documents, never predict", func(t *testing.T) {
		got := Compose(ComposeInput{Intent: IntentProvidingInfo, Merged: completeSlots()})

		assert.Equal(t, ActionRequestDocument, got.Action)
		assert.Contains(t, got.Reply, "upload your bank statement or ID proof")
		assert.Empty(t, got.NextQuestionKey)
	})

	t.Run("complete slots with verified docs trigger prediction", func(t *testing.T) {
		got := Compose(ComposeInput{Intent: IntentProvidingInfo, Merged: completeSlots(), DocsVerified: true})

		assert.Equal(t, ActionPredictEligibility, got.Action)
	})
}

func TestCompose_LoanInquiry(t *testing.T) {
	t.Run("asks for income first", func(t *testing.T) {
		got := Compose(ComposeInput{Intent: IntentLoanInquiry})

		assert.Contains(t, got.Reply, "annual income")
		assert.Equal(t, FieldAnnualIncome, got.NextQuestionKey)
	})

	t.Run("moves on when income known", func(t *testing.T) {
		got := Compose(ComposeInput{Intent: IntentLoanInquiry, Merged: Slots{AnnualIncome: 750000}})

		assert.Equal(t, ActionCollectDetails, got.Action)
		assert.Equal(t, FieldFullName, got.NextQuestionKey)
	})
}

func TestCompose_Eligibility(t *testing.T) {
	t.Run("incomplete slots ask for the next field", func(t *testing.T) {
		got := Compose(ComposeInput{Intent: IntentEligibility, Merged: Slots{FullName: "Rohan Gupta", Email: "rohan@example.com", Phone: "9876543210"}})

		assert.Equal(t, ActionCollectDetails, got.Action)
		assert.Equal(t, FieldAnnualIncome, got.NextQuestionKey)
		assert.Contains(t, got.Reply, "annual income")
	})

	t.Run("complete but unverified requests documents", func(t *testing.T) {
		got := Compose(ComposeInput{Intent: IntentEligibility, Merged: completeSlots()})

		assert.Equal(t, ActionRequestDocument, got.Action)
	})

	t.Run("complete and verified predicts", func(t *testing.T) {
		got := Compose(ComposeInput{Intent: IntentEligibility, Merged: completeSlots(), DocsVerified: true})

		assert.Equal(t, ActionPredictEligibility, got.Action)
	})

	t.Run("already evaluated offers the report", func(t *testing.T) {
		got := Compose(ComposeInput{Intent: IntentEligibility, Merged: completeSlots(), DocsVerified: true, Evaluated: true})

		assert.Equal(t, ActionGenerateReport, got.Action)
	})
}

func TestCompose_Verification(t *testing.T) {
	got := Compose(ComposeInput{Intent: IntentVerification, Message: "send me the otp"})

	assert.Equal(t, ActionSendOTP, got.Action)
	assert.Contains(t, got.Reply, "6-digit code")
}

func TestCompose_GeneralInquiry(t *testing.T) {
	got := Compose(ComposeInput{Intent: IntentGeneralInquiry, Message: "what are your rates?", Merged: Slots{FullName: "Rohan Gupta"}})

	assert.True(t, got.NeedsGeneration)
	assert.NotEmpty(t, got.Fallback)
	assert.Equal(t, got.Fallback, got.Reply)
}

// ==========================
// Fallback Tests
// ==========================

func TestFallbackReply(t *testing.T) {
	t.Run("asks the first missing field", func(t *testing.T) {
		got := FallbackReply(Slots{}, Slots{}, "")
		assert.Equal(t, RequiredFields[0].Prompt, got)
	})

	t.Run("email without name skips the name question", func(t *testing.T) {
		var captured Slots
		captured.Set(FieldEmail, "rohan@example.com")
		merged := Slots{Email: "rohan@example.com"}

		got := FallbackReply(merged, captured, "")
		assert.NotContains(t, got, "full name")
		assert.Contains(t, got, "phone")
	})

	t.Run("complete slots get a generic continuation", func(t *testing.T) {
		got := FallbackReply(completeSlots(), Slots{}, "")
		assert.Contains(t, got, "How can I help you proceed")
	})
}

func TestEligibilityReply(t *testing.T) {
	t.Run("eligible result", func(t *testing.T) {
		got := EligibilityReply(&models.PredictionResult{
			EligibilityScore:  0.72,
			EligibilityStatus: "eligible",
			Recommendations:   []string{"Consider a shorter loan term"},
		})

		assert.Contains(t, got, "72.0%")
		assert.Contains(t, got, "you are currently eligible")
		assert.Contains(t, got, "Consider a shorter loan term")
	})

	t.Run("ineligible result", func(t *testing.T) {
		got := EligibilityReply(&models.PredictionResult{EligibilityScore: 0.31, EligibilityStatus: "not_eligible"})

		assert.Contains(t, got, "not eligible")
	})
}

// ==========================
// Suggestion Tests
// ==========================

func TestSuggestions(t *testing.T) {
	t.Run("never more than the limit", func(t *testing.T) {
		result := ComposeResult{Action: ActionCollectDetails}
		got := Suggestions("upload document to verify eligibility and interest rates", result, Slots{}, IntentProvidingInfo, 3)
		assert.LessOrEqual(t, len(got), 3)
	})

	t.Run("collect action suggests the next field", func(t *testing.T) {
		result := ComposeResult{Action: ActionCollectDetails}
		got := Suggestions("my name is Rohan", result, Slots{FullName: "Rohan"}, IntentProvidingInfo, 3)

		assert.Equal(t, "provide_email_address", got[0].ID)
		assert.Equal(t, "Provide your email address", got[0].Label)
	})

	t.Run("complete slots lead with the form chip", func(t *testing.T) {
		result := ComposeResult{Action: ActionRequestDocument}
		got := Suggestions("done", result, completeSlots(), IntentProvidingInfo, 3)

		assert.Equal(t, "open_form", got[0].ID)
	})

	t.Run("empty context falls back to continue", func(t *testing.T) {
		got := Suggestions("hmm", ComposeResult{Action: ActionNone}, Slots{}, IntentGeneralInquiry, 3)

		assert.Len(t, got, 1)
		assert.Equal(t, "continue", got[0].ID)
	})

	t.Run("no duplicate chips", func(t *testing.T) {
		result := ComposeResult{Action: ActionRequestDocument}
		got := Suggestions("I want to upload a document", result, Slots{}, IntentDocumentUpload, 3)

		seen := map[string]bool{}
		for _, s := range got {
			assert.False(t, seen[s.ID], "duplicate suggestion %s", s.ID)
			seen[s.ID] = true
		}
	})
}

func TestFormatThousands(t *testing.T) {
	assert.Equal(t, "500", formatThousands(500))
	assert.Equal(t, "75,000", formatThousands(75000))
	assert.Equal(t, "750,000", formatThousands(750000))
	assert.Equal(t, "10,000,000", formatThousands(10000000))
}
