package model

import "math"

// Price floors applied to every window.
const (
	MinPriceFloor = 20.0
	// DongleFloor admits very cheap signal-chain devices on tiny budgets.
	DongleFloor           = 5.0
	DongleBudgetThreshold = 150.0
)

// WindowFor returns the acceptable price window for a category given its
// sub-budget, the request total and the tolerance fractions.
func WindowFor(c Category, sub, total float64, tol Tolerance) PriceWindow {
	floor := MinPriceFloor
	if c.IsSignalChain() && total < DongleBudgetThreshold {
		floor = DongleFloor
	}
	return PriceWindow{
		Low:  math.Max(floor, sub*(1-tol.Below)),
		High: sub * (1 + tol.Above),
	}
}

// RoundCents rounds v to two decimals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
