package models

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds to cents, half away from zero
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// DiscountAmount is subtotal * pct / 100 rounded to cents
func DiscountAmount(subtotal, pct decimal.Decimal) decimal.Decimal {
	if pct.IsZero() {
		return decimal.Zero
	}
	return RoundMoney(subtotal.Mul(pct).Div(hundred))
}

// ValidDiscount reports whether pct lies in [0, 100] with at most two
// decimal places, the precision of orders.discount_percentage.
func ValidDiscount(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(hundred) && pct.Equal(pct.Round(2))
}

// ParseMoney parses a decimal string as stored in the database
func ParseMoney(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
