package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used in keys, columns and requests
const DateLayout = "2006-01-02"

// RateRecord is the persisted outcome of resolving a rate for one (date, currency).
// An invalid Rate marks the pair as confirmed unavailable.
type RateRecord struct {
	Currency Currency            `json:"currency"`
	Date     time.Time           `json:"date"`
	Rate     decimal.NullDecimal `json:"rate"`
}

// LookupState tells a missing record apart from a record holding no value
type LookupState int

const (
	// NotFound means the pair has never been resolved
	NotFound LookupState = iota
	// Resolved means a numeric rate is stored
	Resolved
	// ConfirmedAbsent means the publisher has no rate for the pair
	ConfirmedAbsent
)

func (s LookupState) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case ConfirmedAbsent:
		return "confirmed_absent"
	default:
		return "not_found"
	}
}

// RateLookup is the result of a rate store lookup
type RateLookup struct {
	State LookupState
	Rate  decimal.Decimal
}

// LookupNotFound returns the lookup result for a missing record
func LookupNotFound() RateLookup {
	return RateLookup{State: NotFound}
}

// LookupFromRecord converts a stored rate value into a lookup result
func LookupFromRecord(rate decimal.NullDecimal) RateLookup {
	if !rate.Valid {
		return RateLookup{State: ConfirmedAbsent}
	}
	return RateLookup{State: Resolved, Rate: rate.Decimal}
}

// NormalizeDate truncates t to its calendar date at midnight UTC
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
