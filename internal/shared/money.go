package shared

import "math"

// Round2 rounds a monetary amount to two decimals. Intermediate line values
// are rounded before summation so repeated recomputation yields stable totals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round1 rounds to one decimal (tow distance).
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
