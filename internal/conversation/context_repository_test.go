package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresContextRepository_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresContextRepository(mock)
	updated := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	intent := IntentOrderStatus
	mock.ExpectQuery("SELECT history::text, last_intent, updated_at(.|\\n)*FROM conversation_contexts").
		WithArgs("C1").
		WillReturnRows(pgxmock.NewRows([]string{"history", "last_intent", "updated_at"}).
			AddRow(`[{"role":"user","content":"where is my order?","timestamp":"2025-06-01T12:00:00Z"}]`, &intent, updated))

	c, err := repo.Load(context.Background(), "C1")
	require.NoError(t, err)
	require.Len(t, c.Turns, 1)
	assert.Equal(t, "where is my order?", c.Turns[0].Content)
	assert.Equal(t, IntentOrderStatus, c.LastIntent)
	assert.Equal(t, updated, c.LastUpdated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresContextRepository_LoadNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresContextRepository(mock)
	mock.ExpectQuery("FROM conversation_contexts").WithArgs("C404").WillReturnError(pgx.ErrNoRows)

	_, err = repo.Load(context.Background(), "C404")
	assert.ErrorIs(t, err, ErrContextNotFound)
}

func TestPostgresContextRepository_LoadNullIntentAndEmptyHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresContextRepository(mock)
	mock.ExpectQuery("FROM conversation_contexts").
		WithArgs("C1").
		WillReturnRows(pgxmock.NewRows([]string{"history", "last_intent", "updated_at"}).
			AddRow("null", (*string)(nil), time.Now()))

	c, err := repo.Load(context.Background(), "C1")
	require.NoError(t, err)
	assert.NotNil(t, c.Turns)
	assert.Empty(t, c.LastIntent)
}

func TestPostgresContextRepository_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresContextRepository(mock)
	stamp := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO conversation_contexts(.|\\n)*ON CONFLICT \\(customer_id\\) DO UPDATE").
		WithArgs("C1", "[]", "", stamp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Upsert(context.Background(), &Context{CustomerID: "C1", LastUpdated: stamp}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresContextRepository_InsertLogWrapsErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresContextRepository(mock)
	mock.ExpectExec("INSERT INTO conversation_logs").
		WithArgs(pgxmock.AnyArg(), "C1", "hi", "hello", IntentGeneralInquiry, "api", pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err = repo.InsertLog(context.Background(), LogEntry{
		CustomerID: "C1",
		Message:    "hi",
		Response:   "hello",
		Intent:     IntentGeneralInquiry,
		Channel:    "api",
		CreatedAt:  time.Now(),
	})
	assert.ErrorContains(t, err, "conversation: insert log")
	require.NoError(t, mock.ExpectationsWereMet())
}
