package forex

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRateStore_LatestRate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresRateStore(mock)
	id := uuid.New()
	date := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM exchange_rates\s+ORDER BY rate_date DESC, id DESC\s+LIMIT 1`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "rate_value", "rate_date", "source"}).
			AddRow(id, "24.7512", date, SourceAPI))

	r, err := store.LatestRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, r.ID)
	assert.True(t, r.Value.Equal(decimal.RequireFromString("24.7512")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRateStore_LatestRate_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM exchange_rates`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "rate_value", "rate_date", "source"}))

	_, err = NewPostgresRateStore(mock).LatestRate(context.Background())
	assert.ErrorIs(t, err, ErrRateUnavailable)
}

func TestPostgresRateStore_SaveRate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := Rate{ID: uuid.New(), Value: decimal.RequireFromString("26.4730"), Date: time.Now(), Source: SourceManual}

	mock.ExpectExec(`INSERT INTO exchange_rates`).
		WithArgs(r.ID, "26.473", r.Date, SourceManual).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewPostgresRateStore(mock).SaveRate(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}
