// internal/store/applications_test.go
package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"loanassist/internal/common/logger"
	"loanassist/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func newMockedApplicationStore(t *testing.T) (*ApplicationStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewApplicationStore(db, logger.NewTestLogger(t)), mock
}

func applicationRow(id int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "user_key", "full_name", "email", "phone",
		"annual_income", "monthly_income", "loan_amount", "loan_term_months",
		"credit_score", "employment_status", "num_dependents", "loan_purpose", "existing_emi",
		"document_verified", "evaluation_triggered", "eligibility_score", "eligibility_status",
		"risk_level", "credit_tier", "approval_status", "manager_notes", "report_path",
		"status", "created_at", "updated_at",
	}).AddRow(
		id, "u1", "Rohan Gupta", "rohan@example.com", "9876543210",
		int64(750000), int64(0), int64(500000), 12,
		720, "salaried", 2, "", 0.0,
		false, false, 0.0, "",
		"", "", "pending", "", "",
		string(models.StatusCollecting), now, now,
	)
}

// ==========================
// Read Path Tests
// ==========================

func TestApplicationStore_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		store, mock := newMockedApplicationStore(t)
		mock.ExpectQuery("SELECT (.+) FROM loan_applications WHERE id").
			WithArgs(int64(7)).
			WillReturnRows(applicationRow(7))

		app, err := store.GetByID(context.Background(), 7)
		require.NoError(t, err)
		require.NotNil(t, app)
		assert.Equal(t, "Rohan Gupta", app.FullName)
		assert.Equal(t, int64(750000), app.AnnualIncome)
		assert.Equal(t, models.StatusCollecting, app.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is not an error", func(t *testing.T) {
		store, mock := newMockedApplicationStore(t)
		mock.ExpectQuery("SELECT (.+) FROM loan_applications WHERE id").
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		app, err := store.GetByID(context.Background(), 99)
		assert.NoError(t, err)
		assert.Nil(t, app)
	})
}

func TestApplicationStore_GetByUserKey(t *testing.T) {
	store, mock := newMockedApplicationStore(t)
	mock.ExpectQuery("SELECT (.+) FROM loan_applications\\s+WHERE user_key = \\$1 ORDER BY id DESC LIMIT 1").
		WithArgs("u1").
		WillReturnRows(applicationRow(7))

	app, err := store.GetByUserKey(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, int64(7), app.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationStore_FindByName(t *testing.T) {
	store, mock := newMockedApplicationStore(t)
	mock.ExpectQuery("SELECT (.+) FROM loan_applications\\s+WHERE full_name ILIKE").
		WithArgs("%Rohan%", 20).
		WillReturnRows(applicationRow(7))

	apps, err := store.FindByName(context.Background(), "Rohan", 0)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "Rohan Gupta", apps[0].FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Write Path Tests
// ==========================

func TestApplicationStore_Create(t *testing.T) {
	store, mock := newMockedApplicationStore(t)
	now := time.Now()
	mock.ExpectQuery("INSERT INTO loan_applications").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(42), now, now))

	app := &models.LoanApplication{
		UserKey: "u1", FullName: "Rohan Gupta", Email: "rohan@example.com",
		ApprovalStatus: "pending", Status: models.StatusCollecting,
	}
	id, err := store.Create(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int64(42), app.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationStore_UpsertFields(t *testing.T) {
	t.Run("updates only known columns in sorted order", func(t *testing.T) {
		store, mock := newMockedApplicationStore(t)
		mock.ExpectExec(regexp.QuoteMeta(
			"UPDATE loan_applications SET annual_income = $1, credit_score = $2, updated_at = NOW() WHERE id = $3")).
			WithArgs(int64(750000), 720, int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.UpsertFields(context.Background(), 7, map[string]interface{}{
			"credit_score":   720,
			"annual_income":  int64(750000),
			"favorite_color": "blue",
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		store, mock := newMockedApplicationStore(t)

		assert.NoError(t, store.UpsertFields(context.Background(), 7, nil))
		assert.NoError(t, store.UpsertFields(context.Background(), 7, map[string]interface{}{"favorite_color": "blue"}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing application", func(t *testing.T) {
		store, mock := newMockedApplicationStore(t)
		mock.ExpectExec("UPDATE loan_applications SET").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.UpsertFields(context.Background(), 99, map[string]interface{}{"credit_score": 720})
		assert.ErrorIs(t, err, ErrApplicationNotFound)
	})
}

func TestApplicationStore_ClaimEvaluation(t *testing.T) {
	t.Run("first claim wins", func(t *testing.T) {
		store, mock := newMockedApplicationStore(t)
		mock.ExpectExec("UPDATE loan_applications\\s+SET evaluation_triggered = TRUE").
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		claimed, err := store.ClaimEvaluation(context.Background(), 7)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("second claim loses", func(t *testing.T) {
		store, mock := newMockedApplicationStore(t)
		mock.ExpectExec("UPDATE loan_applications\\s+SET evaluation_triggered = TRUE").
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		claimed, err := store.ClaimEvaluation(context.Background(), 7)
		require.NoError(t, err)
		assert.False(t, claimed)
	})
}

func TestApplicationStore_SaveDecision(t *testing.T) {
	store, mock := newMockedApplicationStore(t)
	mock.ExpectExec("UPDATE loan_applications\\s+SET approval_status").
		WithArgs("approved", "clean profile", string(models.StatusDecided), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SaveDecision(context.Background(), 7, "approved", "clean profile")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationStore_ReopenForUpdate(t *testing.T) {
	store, mock := newMockedApplicationStore(t)
	mock.ExpectExec("UPDATE loan_applications\\s+SET status = \\$1, evaluation_triggered = FALSE").
		WithArgs(string(models.StatusCollecting), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, store.ReopenForUpdate(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}
