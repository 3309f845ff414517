// Package tax holds the pure per-line tax computation.
package tax

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineTax returns the tax amount for a single sale line:
// unitPrice * quantity * ratePercent / 100, rounded half-up to two
// fractional digits. Rounding happens here, once per line, so that the
// sale totals accumulate already-rounded line amounts. A zero or
// negative rate means the line is exempt and yields exactly zero.
func LineTax(unitPrice decimal.Decimal, quantity int, ratePercent decimal.Decimal) decimal.Decimal {
	if ratePercent.Sign() <= 0 {
		return decimal.Zero
	}
	subtotal := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	return subtotal.Mul(ratePercent).Div(hundred).Round(2)
}
