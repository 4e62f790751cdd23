// Package money implements fixed-precision marketplace arithmetic. Amounts
// are carried as integer cents; rates are decimals. Rounding is always
// half-away-from-zero to two fractional digits.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// FromCents converts integer cents into a two-place decimal.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ToCents rounds the amount half-away-from-zero to two places and returns
// integer cents.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Round(2).Mul(hundred).IntPart()
}

// ApplyRate multiplies a cent amount by a rate and rounds back to cents.
func ApplyRate(cents int64, rate decimal.Decimal) int64 {
	return ToCents(FromCents(cents).Mul(rate))
}

// Percentage returns pct percent of the cent amount, rounded to cents.
func Percentage(cents int64, pct decimal.Decimal) int64 {
	return ToCents(FromCents(cents).Mul(pct).Div(hundred))
}

// ProRata splits value in proportion part/whole, rounded to cents. A zero
// whole yields zero.
func ProRata(valueCents, partCents, wholeCents int64) int64 {
	if wholeCents == 0 {
		return 0
	}
	ratio := FromCents(partCents).Div(FromCents(wholeCents))
	return ToCents(FromCents(valueCents).Mul(ratio))
}

// Min returns the smaller of two cent amounts.
func Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Clamp keeps the amount non-negative.
func Clamp(cents int64) int64 {
	if cents < 0 {
		return 0
	}
	return cents
}
