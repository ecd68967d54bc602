// Package stats holds the small numeric helpers shared by the analysis
// blocks. Means and variances come from gonum; percentiles follow the
// linear-interpolation definition so thresholds are reproducible.
package stats

import (
	"math"
	"slices"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Finite returns x, or 0 when x is NaN or infinite.
func Finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

func Sum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values)
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// MeanStd returns the mean and population standard deviation.
func MeanStd(values []float64) (float64, float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}
	if n == 1 {
		return values[0], 0
	}
	mean, variance := stat.MeanVariance(values, nil)
	pop := variance * float64(n-1) / float64(n)
	if pop < 0 || math.IsNaN(pop) {
		pop = 0
	}
	return mean, math.Sqrt(pop)
}

// Percentile returns the p-th quantile (0 <= p <= 1), interpolating linearly
// between the two nearest order statistics at rank p*(n-1).
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	p = math.Max(0, math.Min(1, p))
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func Median(values []float64) float64 {
	return Percentile(values, 0.5)
}

// Distance is the Euclidean distance between two equal-length vectors.
func Distance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// Round rounds half away from zero to the given decimal places. Non-finite
// input yields 0.
func Round(x float64, places int32) float64 {
	x = Finite(x)
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

// Money rounds a currency amount to cents.
func Money(x float64) float64 {
	return Round(x, 2)
}
