// Package money holds cent-level rounding helpers shared by the calculators.
package money

import "github.com/shopspring/decimal"

// CentPlaces is the precision of every emitted monetary amount.
const CentPlaces = 2

var hundred = decimal.NewFromInt(100)

// Round2 rounds d to cents, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(CentPlaces)
}

// Sum adds values without intermediate rounding.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Ratio returns num/den, or zero when den is zero.
func Ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.DivRound(den, 6)
}

// ToCents converts a rounded amount into integer cents for transfer instructions.
func ToCents(d decimal.Decimal) int64 {
	return Round2(d).Mul(hundred).IntPart()
}
