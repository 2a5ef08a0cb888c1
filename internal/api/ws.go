// internal/api/ws.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"loanassist/internal/services/events"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleApplicationEvents relays the Redis event stream to a websocket
// client. An application_id query narrows the stream to one application;
// without it the client sees every event.
func (s *Server) handleApplicationEvents(w http.ResponseWriter, r *http.Request) {
	var filterID int64
	if raw := r.URL.Query().Get("application_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			writeError(w, http.StatusBadRequest, "invalid application_id")
			return
		}
		filterID = id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pubsub := s.subscriber.Subscribe(ctx)
	defer pubsub.Close()

	if err := conn.WriteJSON(map[string]interface{}{
		"type":           "connected",
		"application_id": filterID,
	}); err != nil {
		return
	}

	// Drain client frames so close and ping control messages are
	// processed; inbound data frames are ignored.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.Warn("dropping unreadable event", map[string]interface{}{"error": err.Error()})
				continue
			}
			if filterID != 0 && event.ApplicationID != filterID {
				continue
			}
			if err := conn.WriteJSON(event); err != nil {
				cancel()
				return
			}
		}
	}
}
