// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loanassist/internal/common/config"
	commonerrors "loanassist/internal/common/errors"
	"loanassist/internal/common/logger"
	"loanassist/internal/common/metrics"
	"loanassist/internal/models"
)

// ConversationStore persists and replays the append-only turn log.
type ConversationStore interface {
	AppendTurn(ctx context.Context, turn *models.Turn) error
	RecentTurns(ctx context.Context, conversationKey string, limit int) ([]models.Turn, error)
}

// ApplicationStore persists loan applications.
type ApplicationStore interface {
	GetByID(ctx context.Context, id int64) (*models.LoanApplication, error)
	GetByUserKey(ctx context.Context, userKey string) (*models.LoanApplication, error)
	Create(ctx context.Context, app *models.LoanApplication) (int64, error)
	UpsertFields(ctx context.Context, id int64, fields map[string]interface{}) error
	UpdateStatus(ctx context.Context, id int64, status models.ApplicationStatus) error
	// ClaimEvaluation atomically flips the evaluation flag and reports
	// whether this caller won the claim.
	ClaimEvaluation(ctx context.Context, id int64) (bool, error)
	SaveEvaluation(ctx context.Context, id int64, p *models.PredictionResult) error
	// ReopenForUpdate drops an evaluated or decided application back to
	// collecting and clears the evaluation claim.
	ReopenForUpdate(ctx context.Context, id int64) error
}

// Generator produces free-text replies for general inquiries.
type Generator interface {
	Healthy(ctx context.Context) bool
	Generate(ctx context.Context, message string, history []models.Turn, appContext map[string]interface{}) (string, error)
}

// Predictor runs the eligibility evaluation.
type Predictor interface {
	Predict(ctx context.Context, features map[string]interface{}) (*models.PredictionResult, error)
}

// Notifier delivers result notifications. Implementations must never
// block the turn on delivery problems.
type Notifier interface {
	SendEligibilityResult(ctx context.Context, email, name string, score float64, status string)
}

// EventPublisher broadcasts application lifecycle events, best effort.
type EventPublisher interface {
	PublishApplicationEvent(ctx context.Context, applicationID int64, eventType string, payload map[string]interface{})
}

// Request is one incoming message, from chat or voice.
type Request struct {
	UserKey       string
	ApplicationID int64
	Message       string
	Channel       string
	VoicePayload  map[string]interface{}
}

// Response is the full per-turn result returned to the transport layer.
type Response struct {
	Reply         string                   `json:"reply"`
	Intent        string                   `json:"intent"`
	Action        string                   `json:"action"`
	State         models.ApplicationStatus `json:"state"`
	ApplicationID int64                    `json:"applicationId,omitempty"`
	MissingFields []string                 `json:"missingFields"`
	Collected     map[string]interface{}   `json:"collected"`
	Suggestions   []Suggestion             `json:"suggestions"`
	Prediction    *models.PredictionResult `json:"prediction,omitempty"`
}

// Engine is the per-turn slot-filling orchestrator. All cross-turn state
// lives in the stores; the engine itself is stateless and safe for
// concurrent use across conversations.
type Engine struct {
	conversations ConversationStore
	applications  ApplicationStore
	generator     Generator
	predictor     Predictor
	notifier      Notifier
	events        EventPublisher
	cfg           config.EngineConfig
	logger        logger.Logger
}

func New(
	conversations ConversationStore,
	applications ApplicationStore,
	generator Generator,
	predictor Predictor,
	notifier Notifier,
	events EventPublisher,
	cfg config.EngineConfig,
	log logger.Logger,
) *Engine {
	return &Engine{
		conversations: conversations,
		applications:  applications,
		generator:     generator,
		predictor:     predictor,
		notifier:      notifier,
		events:        events,
		cfg:           cfg,
		logger:        log,
	}
}

// HandleMessage processes one turn end to end: classify, extract,
// disambiguate, merge, resolve, compose, persist, and run side effects.
func (e *Engine) HandleMessage(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()

	convKey := conversationKey(req)
	app, err := e.loadApplication(ctx, req)
	if err != nil {
		return nil, err
	}

	turns, err := e.conversations.RecentTurns(ctx, convKey, e.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("loading conversation history: %w", err)
	}

	lastKey, lastPrompt := lastAssistantContext(turns)
	if lastKey == "" {
		lastKey = SniffQuestionKey(lastPrompt)
	}

	merged := foldHistory(turns)
	if app != nil {
		merged.Merge(FromMap(app.FieldMap()))
	}

	intent := ClassifyIntent(req.Message)

	captured := e.captureTurn(req, lastKey, merged)
	if captured.Count() > 0 && intent == IntentGeneralInquiry {
		intent = IntentProvidingInfo
	}
	merged.Merge(captured)

	composed := Compose(ComposeInput{
		Intent:       intent,
		Message:      req.Message,
		Captured:     captured,
		Merged:       merged,
		LastAskedKey: lastKey,
		DocsVerified: app != nil && app.DocumentVerified,
		Evaluated:    app != nil && app.EvaluationTriggered,
	})

	if composed.NeedsGeneration {
		composed.Reply = e.generateOrFallback(ctx, req.Message, turns, app, composed.Fallback)
	}

	app, err = e.persistApplication(ctx, app, req, captured, merged)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Reply:         composed.Reply,
		Intent:        intent,
		Action:        composed.Action,
		State:         models.StatusCollecting,
		MissingFields: MissingDisplayNames(merged),
		Collected:     merged.ToMap(),
		Suggestions:   Suggestions(req.Message, composed, merged, intent, e.cfg.SuggestionLimit),
	}

	if app != nil {
		resp.ApplicationID = app.ID
		resp.State = app.Status

		if composed.Action == ActionPredictEligibility {
			e.runEvaluation(ctx, app, resp)
		}
	}

	if err := e.persistTurns(ctx, convKey, req, resp, composed, captured); err != nil {
		return nil, err
	}

	metrics.ChatTurnsProcessed.WithLabelValues(intent).Inc()
	metrics.ChatTurnDuration.WithLabelValues(intent).Observe(time.Since(started).Seconds())

	return resp, nil
}

func conversationKey(req Request) string {
	if req.ApplicationID > 0 {
		return fmt.Sprintf("app:%d", req.ApplicationID)
	}
	return "user:" + req.UserKey
}

func (e *Engine) loadApplication(ctx context.Context, req Request) (*models.LoanApplication, error) {
	if req.ApplicationID > 0 {
		return e.applications.GetByID(ctx, req.ApplicationID)
	}
	if req.UserKey != "" {
		return e.applications.GetByUserKey(ctx, req.UserKey)
	}
	return nil, nil
}

// captureTurn runs the keyed disambiguator, then the extractor, then the
// voice normalizer. Keyed values win; bare-number fallbacks are skipped
// once the last-question context has claimed the utterance.
func (e *Engine) captureTurn(req Request, lastKey string, merged Slots) Slots {
	var keyed Slots
	keyedOK := false
	if lastKey != "" && req.Message != "" {
		keyed, keyedOK = ResolveKeyed(lastKey, req.Message, merged)
	}

	captured := Extract(req.Message, merged, ExtractOptions{SkipBare: keyedOK})
	if keyedOK {
		captured.Merge(keyed)
	}
	if req.VoicePayload != nil {
		captured.Merge(NormalizeVoicePayload(req.VoicePayload))
	}
	return captured
}

// generateOrFallback asks the generation collaborator for a reply and
// degrades to the deterministic fallback question on any failure.
func (e *Engine) generateOrFallback(ctx context.Context, message string, turns []models.Turn, app *models.LoanApplication, fallback string) string {
	if e.generator == nil || !e.generator.Healthy(ctx) {
		return fallback
	}

	history := turns
	if len(history) > e.cfg.GenerationHistory {
		history = history[len(history)-e.cfg.GenerationHistory:]
	}

	var appContext map[string]interface{}
	if app != nil {
		appContext = map[string]interface{}{
			"full_name":   app.FullName,
			"loan_amount": app.LoanAmount,
			"status":      app.ApprovalStatus,
		}
	}

	genCtx, cancel := context.WithTimeout(ctx, config.GetDuration(e.cfg.GenerationTimeout))
	defer cancel()

	reply, err := e.generator.Generate(genCtx, message, history, appContext)
	if err != nil || reply == "" {
		e.logger.Warn("generation failed, using fallback question", map[string]interface{}{
			"error": fmt.Sprint(err),
		})
		metrics.CollaboratorFailures.WithLabelValues("generation", failureCategory(err, commonerrors.ErrCodeGenerationFailed)).Inc()
		return fallback
	}
	return reply
}

// failureCategory labels a collaborator failure by its error category,
// falling back to the category of the given code when the error is not
// a StandardError.
func failureCategory(err error, fallback commonerrors.ErrorCode) string {
	var stdErr *commonerrors.StandardError
	if errors.As(err, &stdErr) {
		return commonerrors.GetErrorCategory(stdErr.Code)
	}
	return commonerrors.GetErrorCategory(fallback)
}

// persistApplication creates the application once an email is known and
// writes newly captured fields through the non-clobber upsert.
func (e *Engine) persistApplication(ctx context.Context, app *models.LoanApplication, req Request, captured, merged Slots) (*models.LoanApplication, error) {
	if app == nil {
		if !merged.Has(FieldEmail) {
			return nil, nil
		}
		newApp := &models.LoanApplication{
			UserKey:          req.UserKey,
			FullName:         merged.FullName,
			Email:            merged.Email,
			Phone:            merged.Phone,
			AnnualIncome:     merged.AnnualIncome,
			MonthlyIncome:    merged.MonthlyIncome,
			LoanAmount:       merged.LoanAmount,
			LoanTermMonths:   merged.LoanTermMonths,
			CreditScore:      merged.CreditScore,
			EmploymentStatus: merged.EmploymentStatus,
			NumDependents:    merged.NumDependents,
			LoanPurpose:      merged.LoanPurpose,
			ExistingEMI:      merged.ExistingEMI,
			ApprovalStatus:   "pending",
			Status:           models.StatusCollecting,
		}
		if len(Missing(merged)) == 0 {
			newApp.Status = models.StatusReadyForDocs
		}
		id, err := e.applications.Create(ctx, newApp)
		if err != nil {
			return nil, fmt.Errorf("creating application: %w", err)
		}
		newApp.ID = id
		e.publishEvent(ctx, id, "application_created", map[string]interface{}{"status": string(newApp.Status)})
		return newApp, nil
	}

	if captured.Count() > 0 {
		if app.Status == models.StatusEvaluated || app.Status == models.StatusDecided {
			if err := e.applications.ReopenForUpdate(ctx, app.ID); err != nil {
				return nil, fmt.Errorf("reopening application: %w", err)
			}
			app.Status = models.StatusCollecting
			app.EvaluationTriggered = false
		}
		if err := e.applications.UpsertFields(ctx, app.ID, captured.ToMap()); err != nil {
			return nil, fmt.Errorf("saving captured fields: %w", err)
		}
	}

	next := NextState(app.Status, merged, app.DocumentVerified, app.EvaluationTriggered, app.Status == models.StatusDecided)
	if next != app.Status {
		if err := e.applications.UpdateStatus(ctx, app.ID, next); err != nil {
			return nil, fmt.Errorf("updating application status: %w", err)
		}
		app.Status = next
		e.publishEvent(ctx, app.ID, "status_changed", map[string]interface{}{"status": string(next)})
	}

	return app, nil
}

// runEvaluation claims the evaluation flag and, when this turn wins the
// claim, runs prediction exactly once and notifies the applicant.
func (e *Engine) runEvaluation(ctx context.Context, app *models.LoanApplication, resp *Response) {
	if !CanEvaluate(app.Status) {
		return
	}

	claimed, err := e.applications.ClaimEvaluation(ctx, app.ID)
	if err != nil {
		e.logger.Error("evaluation claim failed", map[string]interface{}{
			"applicationId": app.ID, "error": err.Error(),
		})
		return
	}
	if !claimed {
		metrics.EvaluationsTriggered.WithLabelValues("duplicate").Inc()
		return
	}

	features := map[string]interface{}{
		"annual_income":     app.AnnualIncome,
		"credit_score":      app.CreditScore,
		"loan_amount":       app.LoanAmount,
		"loan_term_months":  app.LoanTermMonths,
		"num_dependents":    app.NumDependents,
		"employment_status": app.EmploymentStatus,
		"existing_emi":      app.ExistingEMI,
	}

	prediction, err := e.predictor.Predict(ctx, features)
	if err != nil {
		metrics.EvaluationsTriggered.WithLabelValues("failed").Inc()
		metrics.CollaboratorFailures.WithLabelValues("prediction", failureCategory(err, commonerrors.ErrCodePredictionFailed)).Inc()
		e.logger.Error("eligibility prediction failed", map[string]interface{}{
			"applicationId": app.ID, "error": err.Error(),
		})
		resp.Reply = "I ran into a problem while evaluating your application. Please try again in a moment."
		return
	}

	if err := e.applications.SaveEvaluation(ctx, app.ID, prediction); err != nil {
		e.logger.Error("saving evaluation failed", map[string]interface{}{
			"applicationId": app.ID, "error": err.Error(),
		})
	}

	app.Status = models.StatusEvaluated
	resp.State = models.StatusEvaluated
	resp.Prediction = prediction
	resp.Reply = EligibilityReply(prediction)
	metrics.EvaluationsTriggered.WithLabelValues("completed").Inc()

	if e.notifier != nil {
		e.notifier.SendEligibilityResult(ctx, app.Email, app.FullName, prediction.EligibilityScore, prediction.EligibilityStatus)
	}
	e.publishEvent(ctx, app.ID, "evaluated", map[string]interface{}{
		"eligibility_score":  prediction.EligibilityScore,
		"eligibility_status": prediction.EligibilityStatus,
	})
}

func (e *Engine) persistTurns(ctx context.Context, convKey string, req Request, resp *Response, composed ComposeResult, captured Slots) error {
	userTurn := &models.Turn{
		ConversationKey: convKey,
		Role:            models.RoleUser,
		Content:         req.Message,
	}
	if err := e.conversations.AppendTurn(ctx, userTurn); err != nil {
		return fmt.Errorf("recording user turn: %w", err)
	}

	assistantTurn := &models.Turn{
		ConversationKey: convKey,
		Role:            models.RoleAssistant,
		Content:         resp.Reply,
		Meta: &models.TurnMeta{
			LastQuestionKey: composed.NextQuestionKey,
			Captured:        captured.ToMap(),
			Intent:          resp.Intent,
			Action:          resp.Action,
			ApplicationID:   resp.ApplicationID,
		},
	}
	if err := e.conversations.AppendTurn(ctx, assistantTurn); err != nil {
		return fmt.Errorf("recording assistant turn: %w", err)
	}
	return nil
}

func (e *Engine) publishEvent(ctx context.Context, applicationID int64, eventType string, payload map[string]interface{}) {
	if e.events == nil {
		return
	}
	e.events.PublishApplicationEvent(ctx, applicationID, eventType, payload)
}

// lastAssistantContext returns the explicit question key and prompt text
// from the most recent assistant turn, if any.
func lastAssistantContext(turns []models.Turn) (string, string) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != models.RoleAssistant {
			continue
		}
		key := ""
		if turns[i].Meta != nil {
			key = turns[i].Meta.LastQuestionKey
		}
		return key, turns[i].Content
	}
	return "", ""
}

// foldHistory rebuilds the collected slots from the turn log, oldest
// first so newer corrections win.
func foldHistory(turns []models.Turn) Slots {
	var out Slots
	for _, t := range turns {
		if t.Role != models.RoleAssistant || t.Meta == nil || t.Meta.Captured == nil {
			continue
		}
		out.Merge(FromMap(t.Meta.Captured))
	}
	return out
}
