// internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/damon-houk/nbp-currency-exchange/internal/domain/entity"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockRateStore mocks the RateStore interface
type MockRateStore struct {
	mock.Mock
}

func (m *MockRateStore) Get(ctx context.Context, date time.Time, currency entity.Currency) (entity.RateLookup, error) {
	args := m.Called(ctx, date, currency)
	return args.Get(0).(entity.RateLookup), args.Error(1)
}

func (m *MockRateStore) Put(ctx context.Context, date time.Time, currency entity.Currency, rate decimal.NullDecimal) error {
	args := m.Called(ctx, date, currency, rate)
	return args.Error(0)
}

// MockRateSource mocks the RateSource interface
type MockRateSource struct {
	mock.Mock
}

func (m *MockRateSource) FetchRate(ctx context.Context, date time.Time, currency entity.Currency) (decimal.Decimal, error) {
	args := m.Called(ctx, date, currency)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockResolver mocks the conversion service's Resolver interface
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, date time.Time, currency entity.Currency) (decimal.Decimal, error) {
	args := m.Called(ctx, date, currency)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockLogger mocks the logger interface
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Info(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Warn(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Error(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Fatal(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) WithField(key string, value interface{}) logger.Logger {
	args := m.Called(key, value)
	return args.Get(0).(logger.Logger)
}

func (m *MockLogger) WithFields(fields map[string]interface{}) logger.Logger {
	args := m.Called(fields)
	return args.Get(0).(logger.Logger)
}
