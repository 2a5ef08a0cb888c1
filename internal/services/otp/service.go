// internal/services/otp/service.go
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	commonerrors "loanassist/internal/common/errors"
	"loanassist/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "otp:"

// Service issues and verifies short-lived 6-digit codes. Codes live only
// in Redis; expiry is enforced by the key TTL.
type Service struct {
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func New(client *redis.Client, ttl time.Duration, log logger.Logger) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{
		redis:  client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"collaborator": "otp"}),
	}
}

// TTL returns the configured code lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue generates a fresh code for the recipient, replacing any code that
// is still outstanding.
func (s *Service) Issue(ctx context.Context, recipient string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}

	key := keyPrefix + normalizeRecipient(recipient)
	if err := s.redis.Set(ctx, key, code, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("storing otp: %w", err)
	}

	s.logger.Info("otp issued", map[string]interface{}{"recipient": recipient})
	return code, nil
}

// Verify checks a submitted code. A correct code is consumed so it cannot
// be replayed; a wrong code leaves the stored one intact for retry.
func (s *Service) Verify(ctx context.Context, recipient, submitted string) error {
	key := keyPrefix + normalizeRecipient(recipient)

	stored, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return commonerrors.NewOTPExpiredError()
	}
	if err != nil {
		return fmt.Errorf("loading otp: %w", err)
	}

	if stored != strings.TrimSpace(submitted) {
		return commonerrors.NewOTPInvalidError()
	}

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("otp cleanup failed", map[string]interface{}{
			"recipient": recipient, "error": err.Error(),
		})
	}
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func normalizeRecipient(recipient string) string {
	return strings.ToLower(strings.TrimSpace(recipient))
}
