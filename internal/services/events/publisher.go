// internal/services/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"time"

	"loanassist/internal/common/database"
	"loanassist/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// Channel carries every application lifecycle event. Subscribers filter
// by application_id client-side.
const Channel = "loanassist:application_events"

// Event is the wire shape published to Redis and relayed to websockets.
type Event struct {
	ApplicationID int64                  `json:"application_id"`
	Type          string                 `json:"type"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	At            time.Time              `json:"at"`
}

// RedisPublisher broadcasts lifecycle events over Redis pub/sub. Publish
// failures are logged and dropped; events are advisory.
type RedisPublisher struct {
	redis  *database.RedisClient
	logger logger.Logger
}

func NewRedisPublisher(client *database.RedisClient, log logger.Logger) *RedisPublisher {
	return &RedisPublisher{
		redis:  client,
		logger: log.WithFields(map[string]interface{}{"collaborator": "events"}),
	}
}

func (p *RedisPublisher) PublishApplicationEvent(ctx context.Context, applicationID int64, eventType string, payload map[string]interface{}) {
	body, err := json.Marshal(Event{
		ApplicationID: applicationID,
		Type:          eventType,
		Payload:       payload,
		At:            time.Now().UTC(),
	})
	if err != nil {
		p.logger.Error("marshaling event failed", map[string]interface{}{
			"applicationId": applicationID, "type": eventType, "error": err.Error(),
		})
		return
	}

	if err := p.redis.GetClient().Publish(ctx, Channel, body).Err(); err != nil {
		p.logger.Warn("event publish failed", map[string]interface{}{
			"applicationId": applicationID, "type": eventType, "error": err.Error(),
		})
	}
}

// Subscribe opens a pub/sub subscription on the event channel. The caller
// owns the returned subscription and must Close it.
func (p *RedisPublisher) Subscribe(ctx context.Context) *redis.PubSub {
	return p.redis.GetClient().Subscribe(ctx, Channel)
}

// Publisher is the hook the engine fires on lifecycle transitions.
type Publisher interface {
	PublishApplicationEvent(ctx context.Context, applicationID int64, eventType string, payload map[string]interface{})
}

// Fanout forwards each event to every registered publisher.
type Fanout []Publisher

func NewFanout(publishers ...Publisher) Fanout {
	return Fanout(publishers)
}

func (f Fanout) PublishApplicationEvent(ctx context.Context, applicationID int64, eventType string, payload map[string]interface{}) {
	for _, p := range f {
		if p != nil {
			p.PublishApplicationEvent(ctx, applicationID, eventType, payload)
		}
	}
}
