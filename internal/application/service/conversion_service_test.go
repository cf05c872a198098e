// internal/application/service/conversion_service_test.go
package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/damon-houk/nbp-currency-exchange/internal/domain/entity"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/logger"
	"github.com/damon-houk/nbp-currency-exchange/internal/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	ctx := context.Background()
	log := logger.NewJSONLogger(nil, logger.ErrorLevel)
	date := time.Date(2010, 1, 10, 0, 0, 0, 0, time.UTC)

	t.Run("Foreign to home multiplies and home to foreign divides", func(t *testing.T) {
		resolver := new(mocks.MockResolver)
		service := NewConversionService(resolver, log, nil)

		resolver.On("Resolve", ctx, date, entity.USD).Return(decimal.RequireFromString("3.5"), nil)

		toHome, err := service.Convert(ctx, 1000, entity.USD, entity.PLN, date)
		require.NoError(t, err)
		assert.Equal(t, 3500.0, toHome)

		fromHome, err := service.Convert(ctx, 1000, entity.PLN, entity.USD, date)
		require.NoError(t, err)
		assert.InDelta(t, 285.714285714285714, fromHome, 1e-12)

		resolver.AssertNumberOfCalls(t, "Resolve", 2)
	})

	t.Run("Direction symmetry", func(t *testing.T) {
		tests := []struct {
			currency entity.Currency
			rate     string
			amount   float64
		}{
			{entity.EUR, "1.6", 1000},
			{entity.USD, "9.3", 0.5},
			{entity.JPY, "0.01", 123456789},
			{entity.CHF, "3.865", 0.1},
		}

		for _, tc := range tests {
			t.Run(fmt.Sprintf("%s@%s", tc.currency, tc.rate), func(t *testing.T) {
				resolver := new(mocks.MockResolver)
				service := NewConversionService(resolver, log, nil)
				rate := decimal.RequireFromString(tc.rate)
				resolver.On("Resolve", ctx, date, tc.currency).Return(rate, nil)

				amount := decimal.NewFromFloat(tc.amount)

				toHome, err := service.Convert(ctx, tc.amount, tc.currency, entity.PLN, date)
				require.NoError(t, err)
				assert.Equal(t, amount.Mul(rate).InexactFloat64(), toHome)

				fromHome, err := service.Convert(ctx, tc.amount, entity.PLN, tc.currency, date)
				require.NoError(t, err)
				assert.InEpsilon(t, amount.DivRound(rate, 40).InexactFloat64(), fromHome, 1e-15)
			})
		}
	})

	t.Run("Round trip recovers the amount", func(t *testing.T) {
		resolver := new(mocks.MockResolver)
		service := NewConversionService(resolver, log, nil)
		resolver.On("Resolve", ctx, date, entity.EUR).Return(decimal.RequireFromString("4.1082"), nil)

		for _, amount := range []float64{0, 0.01, 1, 1000, 987654.321} {
			inHome, err := service.Convert(ctx, amount, entity.EUR, entity.PLN, date)
			require.NoError(t, err)

			back, err := service.Convert(ctx, inHome, entity.PLN, entity.EUR, date)
			require.NoError(t, err)
			assert.InDelta(t, amount, back, 1e-9, "amount %v", amount)
		}
	})

	t.Run("Small amounts keep their significant digits", func(t *testing.T) {
		resolver := new(mocks.MockResolver)
		service := NewConversionService(resolver, log, nil)
		resolver.On("Resolve", ctx, date, entity.USD).Return(decimal.RequireFromString("3.5"), nil)

		for _, amount := range []float64{1e-10, 1e-14, 1e-17, 3e-25} {
			fromHome, err := service.Convert(ctx, amount, entity.PLN, entity.USD, date)
			require.NoError(t, err)
			assert.InEpsilon(t, amount/3.5, fromHome, 1e-15, "amount %v", amount)
		}
	})

	t.Run("Large rates keep their significant digits", func(t *testing.T) {
		resolver := new(mocks.MockResolver)
		service := NewConversionService(resolver, log, nil)
		resolver.On("Resolve", ctx, date, entity.EUR).Return(decimal.RequireFromString("4567.891"), nil)

		fromHome, err := service.Convert(ctx, 0.003, entity.PLN, entity.EUR, date)
		require.NoError(t, err)
		assert.InEpsilon(t, 0.003/4567.891, fromHome, 1e-15)
	})

	t.Run("Invalid requests perform no lookup", func(t *testing.T) {
		tests := []struct {
			name   string
			in     entity.Currency
			out    entity.Currency
			amount float64
		}{
			{"Neither side home", entity.USD, entity.EUR, 1},
			{"Both sides home", entity.PLN, entity.PLN, 1},
			{"Unsupported currency", entity.Currency("GBP"), entity.PLN, 1},
			{"Lower-case code", entity.Currency("usd"), entity.PLN, 1},
			{"Negative amount", entity.USD, entity.PLN, -5},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				resolver := new(mocks.MockResolver)
				service := NewConversionService(resolver, log, nil)

				_, err := service.Convert(ctx, tc.amount, tc.in, tc.out, date)
				assert.ErrorIs(t, err, entity.ErrInvalidRequest)
				resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("Rate unavailable propagates unchanged", func(t *testing.T) {
		resolver := new(mocks.MockResolver)
		service := NewConversionService(resolver, log, nil)
		unavailable := fmt.Errorf("%w: JPY on 2010-01-10", entity.ErrRateUnavailable)
		resolver.On("Resolve", ctx, date, entity.JPY).Return(decimal.Zero, unavailable).Once()

		_, err := service.Convert(ctx, 1, entity.JPY, entity.PLN, date)
		assert.Same(t, unavailable, err)
		assert.ErrorIs(t, err, entity.ErrRateUnavailable)
	})
}

func TestResolveRate(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	resolver := new(mocks.MockResolver)
	service := NewConversionService(resolver, nil, nil)

	resolver.On("Resolve", ctx, date, entity.CHF).Return(decimal.RequireFromString("4.6924"), nil).Once()

	rate, err := service.ResolveRate(ctx, entity.CHF, date)
	require.NoError(t, err)
	assert.Equal(t, "4.6924", rate.String())

	_, err = service.ResolveRate(ctx, entity.PLN, date)
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)

	_, err = service.ResolveRate(ctx, entity.Currency("XYZ"), date)
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)

	resolver.AssertExpectations(t)
}

func TestDivisionPlaces(t *testing.T) {
	tests := []struct {
		a, b string
		want int32
	}{
		{"1000", "3.5", 21},
		{"0.0000000001", "3.5", 34},
		{"1", "0.030827", 22},
		{"123456789", "0.01", 16},
	}

	for _, tc := range tests {
		t.Run(tc.a+"/"+tc.b, func(t *testing.T) {
			a := decimal.RequireFromString(tc.a)
			b := decimal.RequireFromString(tc.b)
			assert.Equal(t, tc.want, divisionPlaces(a, b))
		})
	}
}
