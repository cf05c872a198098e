package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/nbp-currency-exchange/internal/domain/entity"
	"github.com/shopspring/decimal"

	// registers the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	selectRateQuery = `SELECT rate FROM exchange_rates WHERE rate_date = $1 AND currency = $2`
	insertRateQuery = `INSERT INTO exchange_rates (rate_date, currency, rate) VALUES ($1, $2, $3)
ON CONFLICT (rate_date, currency) DO NOTHING`
)

// PostgresRateStore implements the rate store interface on the exchange_rates table
type PostgresRateStore struct {
	db *sql.DB
}

// NewPostgresRateStore creates a new Postgres rate store
func NewPostgresRateStore(db *sql.DB) *PostgresRateStore {
	return &PostgresRateStore{db: db}
}

// OpenPostgres opens a connection pool with the pgx driver and checks it is reachable
func OpenPostgres(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// Get returns the stored outcome for a (date, currency) pair
func (s *PostgresRateStore) Get(ctx context.Context, date time.Time, currency entity.Currency) (entity.RateLookup, error) {
	var rate decimal.NullDecimal

	err := s.db.QueryRowContext(ctx, selectRateQuery, date, currency.String()).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.LookupNotFound(), nil
	}
	if err != nil {
		return entity.LookupNotFound(), fmt.Errorf("failed to retrieve rate: %w", err)
	}

	return entity.LookupFromRecord(rate), nil
}

// Put records the outcome for a pair unless a row already exists
func (s *PostgresRateStore) Put(ctx context.Context, date time.Time, currency entity.Currency, rate decimal.NullDecimal) error {
	if _, err := s.db.ExecContext(ctx, insertRateQuery, date, currency.String(), rate); err != nil {
		return fmt.Errorf("failed to store rate: %w", err)
	}
	return nil
}
