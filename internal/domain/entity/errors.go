package entity

import "errors"

// ErrRateUnavailable means no rate is known for a (date, currency) pair.
// Callers above the rate resolver only ever see this error for a missing rate,
// whether the cause was definitive or transient.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// ErrInvalidRequest means a conversion request was rejected before any I/O
var ErrInvalidRequest = errors.New("invalid conversion request")
