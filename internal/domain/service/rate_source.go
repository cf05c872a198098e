package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/nbp-currency-exchange/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ErrNoRatePublished is a definitive miss: the publisher has no rate for the date
var ErrNoRatePublished = errors.New("no exchange rate published for date")

// TransportError is a transient failure talking to the publisher
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a TransportError
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// RateSource defines the interface for fetching rates from the remote publisher
type RateSource interface {
	// FetchRate returns the rate for a currency on a date, or fails with
	// ErrNoRatePublished or a *TransportError
	FetchRate(ctx context.Context, date time.Time, currency entity.Currency) (decimal.Decimal, error)
}
