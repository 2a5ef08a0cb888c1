// internal/models/turn.go
package models

import "time"

// TurnRole distinguishes user and assistant turns.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// TurnMeta carries the machine-readable context an assistant turn leaves
// behind for the next turn's disambiguation.
type TurnMeta struct {
	LastQuestionKey string                 `json:"last_question_key,omitempty"`
	Captured        map[string]interface{} `json:"captured,omitempty"`
	Intent          string                 `json:"intent,omitempty"`
	Action          string                 `json:"action,omitempty"`
	ApplicationID   int64                  `json:"application_id,omitempty"`
}

// Turn is one message in a conversation, user or assistant.
type Turn struct {
	ID              int64     `json:"id" db:"id"`
	ConversationKey string    `json:"conversationKey" db:"conversation_key"`
	Role            TurnRole  `json:"role" db:"role"`
	Content         string    `json:"content" db:"content"`
	Meta            *TurnMeta `json:"meta,omitempty" db:"meta"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}
