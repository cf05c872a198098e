// Package repository internal/domain/repository/rate_store.go
package repository

import (
	"context"
	"time"

	"github.com/damon-houk/nbp-currency-exchange/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// RateStore defines the persisted mapping from (date, currency) to an optional rate
type RateStore interface {
	// Get looks up the record for a currency and date
	Get(ctx context.Context, date time.Time, currency entity.Currency) (entity.RateLookup, error)

	// Put records a rate, or confirmed unavailability when rate is not valid.
	// It never overwrites an existing record and succeeds if one is already present.
	Put(ctx context.Context, date time.Time, currency entity.Currency, rate decimal.NullDecimal) error
}
