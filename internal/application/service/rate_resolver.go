package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/nbp-currency-exchange/internal/domain/entity"
	"github.com/damon-houk/nbp-currency-exchange/internal/domain/repository"
	domainsvc "github.com/damon-houk/nbp-currency-exchange/internal/domain/service"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/logger"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/metrics"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/middleware"
	"github.com/shopspring/decimal"
)

// RateResolver is a read-through, write-back cache of exchange rates in front of the
// remote rate source. Unpublished rates are memoized as confirmed absent; transport
// failures are not memoized, so the next call fetches again.
//
// Concurrent resolutions of the same pair may both fetch and both write; the store's
// insert-if-absent Put absorbs the duplicate.
type RateResolver struct {
	store   repository.RateStore
	source  domainsvc.RateSource
	logger  logger.Logger
	metrics *metrics.RateMetrics
}

// NewRateResolver creates a new rate resolver
func NewRateResolver(store repository.RateStore, source domainsvc.RateSource, log logger.Logger, m *metrics.RateMetrics) *RateResolver {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if m == nil {
		m = metrics.Nop()
	}

	return &RateResolver{
		store:   store,
		source:  source,
		logger:  log,
		metrics: m,
	}
}

// Resolve returns the rate of a foreign currency against the home currency on date.
// It fails with entity.ErrRateUnavailable when no rate is known.
func (r *RateResolver) Resolve(ctx context.Context, date time.Time, currency entity.Currency) (decimal.Decimal, error) {
	date = entity.NormalizeDate(date)
	fields := map[string]interface{}{
		"request_id": middleware.GetRequestID(ctx),
		"currency":   currency.String(),
		"date":       date.Format(entity.DateLayout),
	}

	lookup, err := r.store.Get(ctx, date, currency)
	if err != nil {
		r.record(currency, metrics.OutcomeStoreError)
		r.logger.Error("Failed to read rate store", with(fields, "error", err.Error()))
		return decimal.Zero, fmt.Errorf("failed to read rate store: %w", err)
	}

	switch lookup.State {
	case entity.Resolved:
		r.record(currency, metrics.OutcomeCacheHit)
		r.logger.Debug("Rate served from store", with(fields, "rate", lookup.Rate.String()))
		return lookup.Rate, nil

	case entity.ConfirmedAbsent:
		r.record(currency, metrics.OutcomeNegativeCacheHit)
		r.logger.Debug("Rate confirmed unavailable in store", fields)
		return decimal.Zero, fmt.Errorf("%w: %s on %s", entity.ErrRateUnavailable, currency, date.Format(entity.DateLayout))
	}

	r.logger.Debug("Rate not in store, fetching from source", fields)

	rate, err := r.source.FetchRate(ctx, date, currency)
	switch {
	case err == nil:
		r.record(currency, metrics.OutcomeFetched)
		r.write(ctx, date, currency, decimal.NewNullDecimal(rate), fields)
		r.logger.Info("Rate fetched from source", with(fields, "rate", rate.String()))
		return rate, nil

	case errors.Is(err, domainsvc.ErrNoRatePublished):
		return decimal.Zero, r.memoizeUnavailable(ctx, date, currency, fields)

	default:
		r.record(currency, metrics.OutcomeTransientFailure)
		r.logger.Warn("Rate source unavailable, not caching", with(fields, "error", err.Error()))
		return decimal.Zero, fmt.Errorf("%w: %s on %s: %v", entity.ErrRateUnavailable, currency, date.Format(entity.DateLayout), err)
	}
}

// memoizeUnavailable stores the confirmed-absent marker and returns the error the caller
// must surface; the two steps are one transition of the resolver.
func (r *RateResolver) memoizeUnavailable(ctx context.Context, date time.Time, currency entity.Currency, fields map[string]interface{}) error {
	r.record(currency, metrics.OutcomeUnpublished)
	r.write(ctx, date, currency, decimal.NullDecimal{}, fields)
	r.logger.Info("No rate published, recorded as unavailable", fields)
	return fmt.Errorf("%w: %s on %s: %v", entity.ErrRateUnavailable, currency, date.Format(entity.DateLayout), domainsvc.ErrNoRatePublished)
}

// write persists a resolution. A failed write is logged and does not change the result.
func (r *RateResolver) write(ctx context.Context, date time.Time, currency entity.Currency, rate decimal.NullDecimal, fields map[string]interface{}) {
	if err := r.store.Put(ctx, date, currency, rate); err != nil {
		r.metrics.StoreWriteErrorsTotal.WithLabelValues(currency.String()).Inc()
		r.logger.Error("Failed to write rate store", with(fields, "error", err.Error()))
	}
}

func (r *RateResolver) record(currency entity.Currency, outcome string) {
	r.metrics.ResolutionsTotal.WithLabelValues(currency.String(), outcome).Inc()
}

// with returns a copy of fields with one more entry
func with(fields map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[key] = value
	return out
}
