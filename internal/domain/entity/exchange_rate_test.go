package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupFromRecord(t *testing.T) {
	rate := decimal.RequireFromString("3.5")

	lookup := LookupFromRecord(decimal.NewNullDecimal(rate))
	assert.Equal(t, Resolved, lookup.State)
	assert.True(t, rate.Equal(lookup.Rate))

	lookup = LookupFromRecord(decimal.NullDecimal{})
	assert.Equal(t, ConfirmedAbsent, lookup.State)

	assert.Equal(t, NotFound, LookupNotFound().State)
	assert.Equal(t, "not_found", NotFound.String())
	assert.Equal(t, "resolved", Resolved.String())
	assert.Equal(t, "confirmed_absent", ConfirmedAbsent.String())
}

func TestNormalizeDate(t *testing.T) {
	want := time.Date(2010, 1, 10, 0, 0, 0, 0, time.UTC)

	tests := []time.Time{
		want,
		time.Date(2010, 1, 10, 23, 59, 59, 999, time.UTC),
		time.Date(2010, 1, 10, 0, 30, 0, 0, time.FixedZone("CET", 3600)),
		time.Date(2010, 1, 10, 20, 0, 0, 0, time.FixedZone("EST", -5*3600)),
	}

	for _, in := range tests {
		got := NormalizeDate(in)
		assert.True(t, want.Equal(got), "input %s gave %s", in, got)
		assert.Equal(t, time.UTC, got.Location())
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2023-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2023-03-01", d.Format(DateLayout))

	for _, s := range []string{"", "2023-3-1", "01-03-2023", "2023-02-30"} {
		_, err := ParseDate(s)
		assert.Error(t, err, "date %q", s)
	}
}
