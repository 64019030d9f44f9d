package emissions

import "math"

// Rounding is round-half-up (towards +Inf on ties) everywhere a value is
// persisted or returned, so every client sees the same digits.

// RoundKg rounds a CO2 mass to 3 decimals.
func RoundKg(v float64) float64 {
	return roundHalfUp(v, 3)
}

// RoundKcal rounds calories to 1 decimal.
func RoundKcal(v float64) float64 {
	return roundHalfUp(v, 1)
}

// RoundMinutes rounds a duration in minutes to 1 decimal.
func RoundMinutes(v float64) float64 {
	return roundHalfUp(v, 1)
}

// Precisions of the aggregated dashboard totals. Per-journey values keep the
// finer RoundKg/RoundKcal/RoundMinutes precisions.
const (
	TotalDistanceDecimals = 1
	TotalKgDecimals       = 2
	TotalKcalDecimals     = 0
	TotalMinutesDecimals  = 0
	TotalTreesDecimals    = 1
	BoardValueDecimals    = 1
)

// Round rounds to the given number of decimals. Used for display totals.
func Round(v float64, decimals int) float64 {
	return roundHalfUp(v, decimals)
}

// RoundInt rounds to the nearest integer, ties towards +Inf. Values outside
// the int range saturate; NaN rounds to 0.
func RoundInt(v float64) int {
	r := math.Floor(v + 0.5)
	switch {
	case math.IsNaN(r):
		return 0
	case r >= math.MaxInt:
		return math.MaxInt
	case r <= math.MinInt:
		return math.MinInt
	}
	return int(r)
}

func roundHalfUp(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	r := math.Floor(v*scale+0.5) / scale
	if r == 0 {
		return 0 // no negative zero
	}
	return r
}
