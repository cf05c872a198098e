package db

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/damon-houk/nbp-currency-exchange/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRateStore(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2010, 1, 11, 0, 0, 0, 0, time.UTC)

	selectQuery := regexp.QuoteMeta(selectRateQuery)
	insertQuery := regexp.QuoteMeta(insertRateQuery)

	t.Run("Get resolved rate", func(t *testing.T) {
		mockDb, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDb.Close()
		store := NewPostgresRateStore(mockDb)

		mock.ExpectQuery(selectQuery).
			WithArgs(date, "USD").
			WillReturnRows(sqlmock.NewRows([]string{"rate"}).AddRow("3.5"))

		lookup, err := store.Get(ctx, date, entity.USD)
		require.NoError(t, err)
		assert.Equal(t, entity.Resolved, lookup.State)
		assert.Equal(t, "3.5", lookup.Rate.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Get null rate is confirmed absent", func(t *testing.T) {
		mockDb, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDb.Close()
		store := NewPostgresRateStore(mockDb)

		mock.ExpectQuery(selectQuery).
			WithArgs(date, "JPY").
			WillReturnRows(sqlmock.NewRows([]string{"rate"}).AddRow(nil))

		lookup, err := store.Get(ctx, date, entity.JPY)
		require.NoError(t, err)
		assert.Equal(t, entity.ConfirmedAbsent, lookup.State)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Get missing row is not found", func(t *testing.T) {
		mockDb, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDb.Close()
		store := NewPostgresRateStore(mockDb)

		mock.ExpectQuery(selectQuery).
			WithArgs(date, "EUR").
			WillReturnRows(sqlmock.NewRows([]string{"rate"}))

		lookup, err := store.Get(ctx, date, entity.EUR)
		require.NoError(t, err)
		assert.Equal(t, entity.NotFound, lookup.State)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Get query failure", func(t *testing.T) {
		mockDb, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDb.Close()
		store := NewPostgresRateStore(mockDb)

		mock.ExpectQuery(selectQuery).
			WithArgs(date, "CHF").
			WillReturnError(errors.New("connection reset"))

		_, err = store.Get(ctx, date, entity.CHF)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to retrieve rate")
	})

	t.Run("Put inserts rate and null marker", func(t *testing.T) {
		mockDb, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDb.Close()
		store := NewPostgresRateStore(mockDb)

		mock.ExpectExec(insertQuery).
			WithArgs(date, "USD", "3.5").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(insertQuery).
			WithArgs(date, "JPY", nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.Put(ctx, date, entity.USD, decimal.NewNullDecimal(decimal.RequireFromString("3.5"))))
		require.NoError(t, store.Put(ctx, date, entity.JPY, decimal.NullDecimal{}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Put on existing row is a no-op success", func(t *testing.T) {
		mockDb, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDb.Close()
		store := NewPostgresRateStore(mockDb)

		mock.ExpectExec(insertQuery).
			WithArgs(date, "EUR", "4.1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, store.Put(ctx, date, entity.EUR, decimal.NewNullDecimal(decimal.RequireFromString("4.1"))))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Put failure", func(t *testing.T) {
		mockDb, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDb.Close()
		store := NewPostgresRateStore(mockDb)

		mock.ExpectExec(insertQuery).
			WithArgs(date, "EUR", sqlmock.AnyArg()).
			WillReturnError(errors.New("read-only transaction"))

		err = store.Put(ctx, date, entity.EUR, decimal.NewNullDecimal(decimal.RequireFromString("4.1")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to store rate")
	})
}
