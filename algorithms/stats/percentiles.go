package stats

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Median returns the middle value of data, averaging the two middle values
// when len(data) is even. data is not modified. Empty input yields 0.
func Median(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return 0.0
	}

	sorted := slices.Clone(data)
	slices.Sort(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Mean calculates the arithmetic mean using gonum. Empty input yields 0.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// MeanStdDev returns the mean and population standard deviation of data
func MeanStdDev(data []float64) (mean, std float64) {
	if len(data) == 0 {
		return 0, 0
	}
	mean, variance := stat.PopMeanVariance(data, nil)
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}
