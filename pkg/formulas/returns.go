package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Round rounds x to the given number of decimal places, halves away from zero.
func Round(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(x*scale) / scale
}

// PercentChange returns (newValue - oldValue) / oldValue * 100.
// Callers must guard oldValue == 0.
func PercentChange(oldValue, newValue float64) float64 {
	return (newValue - oldValue) / oldValue * 100
}

// Sum adds all values; 0 for an empty slice.
func Sum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values)
}

// WeightedSum returns Σ weights[i] * values[i].
// Both slices must have the same length.
func WeightedSum(weights, values []float64) float64 {
	if len(weights) == 0 {
		return 0
	}
	return floats.Dot(weights, values)
}
