// internal/services/otp/service_test.go
package otp

import (
	"context"
	"testing"
	"time"

	"loanassist/internal/common/errors"
	"loanassist/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, 10*time.Minute, logger.NewTestLogger(t)), mr
}

func TestService_IssueAndVerify(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, "rohan@example.com")
	require.NoError(t, err)
	assert.Len(t, code, 6)

	assert.NoError(t, svc.Verify(ctx, "rohan@example.com", code))
}

func TestService_VerifyConsumesCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, "rohan@example.com")
	require.NoError(t, err)
	require.NoError(t, svc.Verify(ctx, "rohan@example.com", code))

	// A consumed code cannot be replayed.
	err = svc.Verify(ctx, "rohan@example.com", code)
	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeOTPExpired, stdErr.Code)
}

func TestService_WrongCodeLeavesStoredOne(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, "rohan@example.com")
	require.NoError(t, err)

	err = svc.Verify(ctx, "rohan@example.com", "000000x")
	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeOTPInvalid, stdErr.Code)

	// The real code still works after a bad attempt.
	assert.NoError(t, svc.Verify(ctx, "rohan@example.com", code))
}

func TestService_ExpiredCode(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, "rohan@example.com")
	require.NoError(t, err)

	mr.FastForward(11 * time.Minute)

	err = svc.Verify(ctx, "rohan@example.com", code)
	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, errors.ErrCodeOTPExpired, stdErr.Code)
}

func TestService_ReissueReplacesCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Issue(ctx, "rohan@example.com")
	require.NoError(t, err)
	second, err := svc.Issue(ctx, "rohan@example.com")
	require.NoError(t, err)

	if first != second {
		assert.Error(t, svc.Verify(ctx, "rohan@example.com", first))
	}
	assert.NoError(t, svc.Verify(ctx, "rohan@example.com", second))
}

func TestService_RecipientNormalization(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, err := svc.Issue(ctx, "  Rohan@Example.com ")
	require.NoError(t, err)
	assert.NoError(t, svc.Verify(ctx, "rohan@example.com", code))
}
