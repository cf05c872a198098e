// Package service internal/application/service/conversion_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/damon-houk/nbp-currency-exchange/internal/domain/entity"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/logger"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/metrics"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/middleware"
	"github.com/shopspring/decimal"
)

// Resolver resolves the rate of a foreign currency against the home currency
type Resolver interface {
	Resolve(ctx context.Context, date time.Time, currency entity.Currency) (decimal.Decimal, error)
}

// ConversionService converts amounts between the home currency and a foreign currency
type ConversionService struct {
	resolver Resolver
	logger   logger.Logger
	metrics  *metrics.RateMetrics
}

// NewConversionService creates a new conversion service
func NewConversionService(resolver Resolver, log logger.Logger, m *metrics.RateMetrics) *ConversionService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if m == nil {
		m = metrics.Nop()
	}

	return &ConversionService{
		resolver: resolver,
		logger:   log,
		metrics:  m,
	}
}

// Convert converts amount from inCurrency to outCurrency using the rate published for date.
// Exactly one side must be the home currency. The arithmetic is done in decimal and only
// the result is converted to float64.
func (s *ConversionService) Convert(ctx context.Context, amount float64, inCurrency, outCurrency entity.Currency, date time.Time) (float64, error) {
	requestID := middleware.GetRequestID(ctx)

	foreign, err := foreignSide(inCurrency, outCurrency)
	if err != nil {
		s.logger.Warn("Rejected conversion request", map[string]interface{}{
			"request_id":   requestID,
			"in_currency":  inCurrency.String(),
			"out_currency": outCurrency.String(),
			"error":        err.Error(),
		})
		return 0, err
	}

	if amount < 0 {
		return 0, fmt.Errorf("%w: amount must not be negative", entity.ErrInvalidRequest)
	}

	rate, err := s.resolver.Resolve(ctx, date, foreign)
	if err != nil {
		return 0, err
	}

	value := decimal.NewFromFloat(amount)
	var result decimal.Decimal
	if inCurrency.IsHome() {
		result = value.DivRound(rate, divisionPlaces(value, rate))
	} else {
		result = value.Mul(rate)
	}

	converted := result.InexactFloat64()
	s.metrics.ConversionsTotal.WithLabelValues(inCurrency.String(), outCurrency.String()).Inc()

	s.logger.Info("Conversion completed", map[string]interface{}{
		"request_id":       requestID,
		"in_currency":      inCurrency.String(),
		"out_currency":     outCurrency.String(),
		"date":             date.Format(entity.DateLayout),
		"original_amount":  amount,
		"exchange_rate":    rate.String(),
		"converted_amount": converted,
	})

	return converted, nil
}

// ResolveRate returns the rate of a foreign currency against the home currency on date
func (s *ConversionService) ResolveRate(ctx context.Context, currency entity.Currency, date time.Time) (decimal.Decimal, error) {
	if !currency.IsForeign() {
		return decimal.Zero, fmt.Errorf("%w: %q is not a foreign currency", entity.ErrInvalidRequest, currency)
	}
	return s.resolver.Resolve(ctx, date, currency)
}

// significantDigits is the number of significant digits kept in a quotient
const significantDigits = 24

// divisionPlaces returns the decimal places that keep significantDigits of a/b
// whatever the magnitude of the operands.
func divisionPlaces(a, b decimal.Decimal) int32 {
	magnitude := func(d decimal.Decimal) int32 {
		return int32(d.NumDigits()) + d.Exponent()
	}
	places := significantDigits - magnitude(a) + magnitude(b)
	if places < int32(decimal.DivisionPrecision) {
		places = int32(decimal.DivisionPrecision)
	}
	return places
}

// foreignSide validates that exactly one side is the home currency and returns the other
func foreignSide(inCurrency, outCurrency entity.Currency) (entity.Currency, error) {
	for _, c := range []entity.Currency{inCurrency, outCurrency} {
		if _, err := entity.ParseCurrency(c.String()); err != nil {
			return "", err
		}
	}

	switch {
	case inCurrency.IsHome() && outCurrency.IsHome():
		return "", fmt.Errorf("%w: %s must appear on only one side", entity.ErrInvalidRequest, entity.HomeCurrency)
	case inCurrency.IsHome():
		return outCurrency, nil
	case outCurrency.IsHome():
		return inCurrency, nil
	default:
		return "", fmt.Errorf("%w: one of in_currency, out_currency has to be %s", entity.ErrInvalidRequest, entity.HomeCurrency)
	}
}
