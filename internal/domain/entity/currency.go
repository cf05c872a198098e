package entity

import (
	"fmt"
	"strings"
)

// Currency is one of the currency codes the service can convert
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	CHF Currency = "CHF"
	JPY Currency = "JPY"
	PLN Currency = "PLN"
)

// HomeCurrency must appear on exactly one side of every conversion
const HomeCurrency = PLN

// Currencies lists every supported code
var Currencies = []Currency{USD, EUR, CHF, JPY, PLN}

// ParseCurrency returns the Currency for an upper-case ISO code
func ParseCurrency(code string) (Currency, error) {
	for _, c := range Currencies {
		if string(c) == code {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported currency %q (expected one of %s)",
		ErrInvalidRequest, code, strings.Join(CurrencyCodes(), ", "))
}

// CurrencyCodes returns the supported codes as strings
func CurrencyCodes() []string {
	codes := make([]string, len(Currencies))
	for i, c := range Currencies {
		codes[i] = string(c)
	}
	return codes
}

// IsHome reports whether c is the home currency
func (c Currency) IsHome() bool {
	return c == HomeCurrency
}

// IsForeign reports whether c is a supported currency other than the home currency
func (c Currency) IsForeign() bool {
	if c.IsHome() {
		return false
	}
	_, err := ParseCurrency(string(c))
	return err == nil
}

func (c Currency) String() string {
	return string(c)
}
