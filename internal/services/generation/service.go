// internal/services/generation/service.go
package generation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"loanassist/internal/common/config"
	"loanassist/internal/common/database"
	commonerrors "loanassist/internal/common/errors"
	"loanassist/internal/common/logger"
	"loanassist/internal/common/retry"
	"loanassist/internal/models"

	"github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are a helpful loan assistant for an Indian lending platform. ` +
	`Answer the applicant's question briefly and accurately. Amounts are in INR. ` +
	`If the question is about the applicant's own application, use the application context provided. ` +
	`Do not invent interest rates, approval decisions, or personal data.`

// failureThreshold consecutive failures mark the collaborator unhealthy
// for cooldown, so turns degrade to templated fallbacks immediately
// instead of waiting out a timeout each time.
const (
	failureThreshold = 3
	cooldown         = 30 * time.Second
)

// Service wraps the OpenAI-compatible generation endpoint with caching,
// retries and a health gate.
type Service struct {
	client *openai.Client
	model  string
	cache  *database.RedisClient
	cfg    config.EngineConfig
	logger logger.Logger

	mu           sync.Mutex
	failures     int
	unhealthyTil time.Time
}

func New(apiCfg config.APIsConfig, engineCfg config.EngineConfig, cache *database.RedisClient, log logger.Logger) (*Service, error) {
	if apiCfg.GenAI.BaseURL == "" {
		return nil, fmt.Errorf("genai base_url is required")
	}

	clientConfig := openai.DefaultConfig(apiCfg.GenAI.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(apiCfg.GenAI.BaseURL, "/")

	return &Service{
		client: openai.NewClientWithConfig(clientConfig),
		model:  apiCfg.GenAI.Model,
		cache:  cache,
		cfg:    engineCfg,
		logger: log.WithFields(map[string]interface{}{"collaborator": "generation"}),
	}, nil
}

// Healthy reports whether generation should be attempted this turn.
func (s *Service) Healthy(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures < failureThreshold || time.Now().After(s.unhealthyTil)
}

// Generate produces a reply for a general inquiry. The recent turn window
// and a compact application context ride along as conversation history.
func (s *Service) Generate(ctx context.Context, message string, history []models.Turn, appContext map[string]interface{}) (string, error) {
	cacheKey := s.cacheKey(message, history)
	if cached, ok := s.cachedReply(ctx, cacheKey); ok {
		return cached, nil
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: s.renderSystemPrompt(appContext)},
	}
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	attempts := s.cfg.GenerationRetries
	if attempts < 1 {
		attempts = 1
	}

	var reply string
	err := retry.Do(ctx, attempts, func(attempt int) error {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    s.model,
			Messages: messages,
		})
		if err != nil {
			s.logger.Warn("generation attempt failed", map[string]interface{}{
				"attempt": attempt, "error": err.Error(),
			})
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}
		reply = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		s.recordFailure()
		if ctx.Err() == context.DeadlineExceeded {
			return "", commonerrors.NewGenerationTimeoutError()
		}
		return "", commonerrors.NewGenerationFailedError(err)
	}

	s.recordSuccess()
	s.storeReply(ctx, cacheKey, reply)
	return reply, nil
}

func (s *Service) renderSystemPrompt(appContext map[string]interface{}) string {
	if len(appContext) == 0 {
		return systemPrompt
	}
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nApplication context:")
	for k, v := range appContext {
		if v == nil || v == "" {
			continue
		}
		fmt.Fprintf(&b, "\n- %s: %v", k, v)
	}
	return b.String()
}

func (s *Service) cacheKey(message string, history []models.Turn) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(message))))
	for _, turn := range history {
		h.Write([]byte{0})
		h.Write([]byte(turn.Content))
	}
	return "genai:reply:" + hex.EncodeToString(h.Sum(nil))
}

func (s *Service) cachedReply(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	cached, err := s.cache.Get(ctx, key)
	if err != nil || cached == "" {
		return "", false
	}
	return cached, true
}

func (s *Service) storeReply(ctx context.Context, key, reply string) {
	if s.cache == nil || reply == "" {
		return
	}
	ttl := time.Duration(s.cfg.ResponseCacheTTL) * time.Second
	if err := s.cache.Set(ctx, key, reply, ttl); err != nil {
		s.logger.Warn("response cache write failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	if s.failures >= failureThreshold {
		s.unhealthyTil = time.Now().Add(cooldown)
	}
}

func (s *Service) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = 0
}
