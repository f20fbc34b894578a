package domain

import (
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits carried by every amount.
const MoneyPlaces = 2

// MinimumAmount is the smallest transactable amount, enforced at charge creation.
var MinimumAmount = decimal.NewFromInt(500)

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds an amount half-away-from-zero to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// HasValidPrecision reports whether d has at most MoneyPlaces fractional digits.
func HasValidPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyPlaces))
}

// Percent returns pct% of amount.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred)
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
