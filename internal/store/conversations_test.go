// internal/store/conversations_test.go
package store

import (
	"context"
	"testing"
	"time"

	"loanassist/internal/common/logger"
	"loanassist/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedConversationStore(t *testing.T) (*ConversationStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewConversationStore(db, logger.NewTestLogger(t)), mock
}

func TestConversationStore_AppendTurn(t *testing.T) {
	t.Run("user turn without meta", func(t *testing.T) {
		store, mock := newMockedConversationStore(t)
		mock.ExpectQuery("INSERT INTO conversation_turns").
			WithArgs("user:u1", string(models.RoleUser), "hi", nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

		turn := &models.Turn{ConversationKey: "user:u1", Role: models.RoleUser, Content: "hi"}
		require.NoError(t, store.AppendTurn(context.Background(), turn))
		assert.Equal(t, int64(1), turn.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("assistant turn serializes meta", func(t *testing.T) {
		store, mock := newMockedConversationStore(t)
		mock.ExpectQuery("INSERT INTO conversation_turns").
			WithArgs("user:u1", string(models.RoleAssistant), "What's your full name?",
				[]byte(`{"last_question_key":"full_name","intent":"greeting"}`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(2), time.Now()))

		turn := &models.Turn{
			ConversationKey: "user:u1",
			Role:            models.RoleAssistant,
			Content:         "What's your full name?",
			Meta:            &models.TurnMeta{LastQuestionKey: "full_name", Intent: "greeting"},
		}
		require.NoError(t, store.AppendTurn(context.Background(), turn))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConversationStore_RecentTurns(t *testing.T) {
	columns := []string{"id", "conversation_key", "role", "content", "meta", "created_at"}

	t.Run("returns turns oldest first with parsed meta", func(t *testing.T) {
		store, mock := newMockedConversationStore(t)
		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM conversation_turns").
			WithArgs("user:u1", 50).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(int64(1), "user:u1", "user", "hi", nil, now).
				AddRow(int64(2), "user:u1", "assistant", "What's your full name?",
					`{"last_question_key":"full_name","captured":{}}`, now))

		turns, err := store.RecentTurns(context.Background(), "user:u1", 50)
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, models.RoleUser, turns[0].Role)
		assert.Nil(t, turns[0].Meta)
		require.NotNil(t, turns[1].Meta)
		assert.Equal(t, "full_name", turns[1].Meta.LastQuestionKey)
	})

	t.Run("corrupt meta degrades to nil instead of failing", func(t *testing.T) {
		store, mock := newMockedConversationStore(t)
		mock.ExpectQuery("SELECT (.+) FROM conversation_turns").
			WithArgs("user:u1", 50).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(int64(1), "user:u1", "assistant", "ok", `{not json`, time.Now()))

		turns, err := store.RecentTurns(context.Background(), "user:u1", 50)
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Nil(t, turns[0].Meta)
	})

	t.Run("zero limit defaults to fifty", func(t *testing.T) {
		store, mock := newMockedConversationStore(t)
		mock.ExpectQuery("SELECT (.+) FROM conversation_turns").
			WithArgs("user:u1", 50).
			WillReturnRows(sqlmock.NewRows(columns))

		turns, err := store.RecentTurns(context.Background(), "user:u1", 0)
		require.NoError(t, err)
		assert.Empty(t, turns)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
