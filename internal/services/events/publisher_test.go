// internal/services/events/publisher_test.go
package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"loanassist/internal/common/database"
	"loanassist/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(t *testing.T) *RedisPublisher {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisPublisher(&database.RedisClient{Client: client}, logger.NewTestLogger(t))
}

func TestRedisPublisher_RoundTrip(t *testing.T) {
	pub := newTestPublisher(t)
	ctx := context.Background()

	sub := pub.Subscribe(ctx)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub.PublishApplicationEvent(ctx, 42, "status_changed", map[string]interface{}{
		"status": "ready_for_docs",
	})

	select {
	case msg := <-sub.Channel():
		var event Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, int64(42), event.ApplicationID)
		assert.Equal(t, "status_changed", event.Type)
		assert.Equal(t, "ready_for_docs", event.Payload["status"])
		assert.False(t, event.At.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestFanout_ForwardsToAll(t *testing.T) {
	var first, second countingPublisher
	fanout := NewFanout(&first, nil, &second)

	fanout.PublishApplicationEvent(context.Background(), 7, "evaluated", nil)

	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

type countingPublisher struct {
	calls int
}

func (c *countingPublisher) PublishApplicationEvent(context.Context, int64, string, map[string]interface{}) {
	c.calls++
}
