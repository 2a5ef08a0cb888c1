// internal/store/conversations.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"loanassist/internal/common/logger"
	"loanassist/internal/models"
)

// ConversationStore persists the append-only turn log in Postgres. Meta is
// stored as JSONB so the disambiguation context survives restarts.
type ConversationStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewConversationStore(db *sql.DB, log logger.Logger) *ConversationStore {
	return &ConversationStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"store": "conversations"}),
	}
}

// AppendTurn inserts one turn and fills in its generated ID and timestamp.
func (s *ConversationStore) AppendTurn(ctx context.Context, turn *models.Turn) error {
	var meta []byte
	if turn.Meta != nil {
		var err error
		meta, err = json.Marshal(turn.Meta)
		if err != nil {
			return fmt.Errorf("marshaling turn meta: %w", err)
		}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO conversation_turns (conversation_key, role, content, meta)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		turn.ConversationKey, turn.Role, turn.Content, nullableJSON(meta),
	).Scan(&turn.ID, &turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit turns for a conversation, oldest first.
func (s *ConversationStore) RecentTurns(ctx context.Context, conversationKey string, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_key, role, content, meta, created_at
		FROM (
			SELECT id, conversation_key, role, content, meta, created_at
			FROM conversation_turns
			WHERE conversation_key = $1
			ORDER BY id DESC
			LIMIT $2
		) recent
		ORDER BY id ASC`,
		conversationKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var turn models.Turn
		var meta sql.NullString
		if err := rows.Scan(&turn.ID, &turn.ConversationKey, &turn.Role, &turn.Content, &meta, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		if meta.Valid && meta.String != "" {
			parsed := &models.TurnMeta{}
			if err := json.Unmarshal([]byte(meta.String), parsed); err != nil {
				// A corrupt meta row degrades to sniffing, it must not
				// break history loading.
				s.logger.Warn("dropping unreadable turn meta", map[string]interface{}{
					"turnId": turn.ID, "error": err.Error(),
				})
			} else {
				turn.Meta = parsed
			}
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}
	return turns, nil
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
