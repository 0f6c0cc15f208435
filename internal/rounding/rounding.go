package rounding

import "github.com/shopspring/decimal"

// zeroPrecision: amounts strictly inside (-1e-3, 1e-3) are treated as zero.
const zeroPrecision = 3

// roundOffPlaces is the decimal-place cap applied to amounts before they
// leave the engine.
const roundOffPlaces = 6

// Zeroed clamps floating-point dust to zero.
func Zeroed(amount decimal.Decimal) decimal.Decimal {
	if amount.Abs().LessThan(decimal.New(1, -zeroPrecision)) {
		return decimal.Zero
	}
	return amount
}

// RoundOff caps an amount at six decimal places, rounding any residue up so
// dues are never silently shrunk.
func RoundOff(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundUp(roundOffPlaces)
}
