package usecase

import (
	"slices"

	"github.com/montanaflynn/stats"
)

// outlierFactor is the IQR multiplier outside of which a sample is an outlier.
const outlierFactor = 1.5

// Summary is the mean of a sample with and without its outliers.
type Summary struct {
	Mean                float64
	MeanWithoutOutliers float64
}

// Summarize computes the mean of samples and the mean after dropping samples
// outside [q1 - 1.5*iqr, q3 + 1.5*iqr]. The quartiles are taken positionally from
// the sorted samples, q1 at index n/4 and q3 at index 3n/4. Both means are rounded
// to two decimals; an empty sample yields zeros.
func Summarize(samples []float64) Summary {
	if len(samples) == 0 {
		return Summary{}
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	n := len(sorted)
	q1 := sorted[n/4]
	q3 := sorted[(3*n)/4]
	iqr := q3 - q1
	lower, upper := q1-outlierFactor*iqr, q3+outlierFactor*iqr

	retained := make([]float64, 0, n)
	for _, x := range sorted {
		if x >= lower && x <= upper {
			retained = append(retained, x)
		}
	}

	return Summary{
		Mean:                Mean(sorted),
		MeanWithoutOutliers: Mean(retained),
	}
}

// Mean returns the arithmetic mean rounded to two decimals, or 0 for an empty sample.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	mean, err := stats.Mean(samples)
	if err != nil {
		return 0
	}
	return round2(mean)
}

func round2(v float64) float64 {
	rounded, err := stats.Round(v, 2)
	if err != nil {
		return 0
	}
	return rounded
}
