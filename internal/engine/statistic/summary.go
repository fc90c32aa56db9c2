package statistic

import (
	"math"
	"slices"

	"Go2NetProfile/internal/model"
)

// MinSamples is the smallest sample a summary or density is computed for.
const MinSamples = 2

// Summarize computes descriptive statistics over sample. Quantiles are given
// as fractions in [0,1]. Samples smaller than MinSamples yield an unavailable
// summary that still reports Count.
func Summarize(sample []float64, quantiles []float64) model.DistributionSummary {
	n := len(sample)
	if n < MinSamples {
		return model.DistributionSummary{
			Count:  n,
			Reason: model.ErrInsufficientSamples.Error(),
		}
	}

	sorted := slices.Clone(sample)
	slices.Sort(sorted)

	mean, std := MeanStd(sorted)
	summary := model.DistributionSummary{
		Count:     n,
		Mean:      mean,
		Std:       std,
		Min:       sorted[0],
		Max:       sorted[n-1],
		Quantiles: make([]model.Quantile, len(quantiles)),
		Available: true,
	}
	for i, q := range quantiles {
		summary.Quantiles[i] = model.Quantile{P: q, Value: Quantile(sorted, q)}
	}
	return summary
}

// MeanStd returns the mean and the sample standard deviation (n-1 denominator).
func MeanStd(sample []float64) (float64, float64) {
	n := len(sample)
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range sample {
		sum += v
	}
	mean := sum / float64(n)
	if n < 2 {
		return mean, 0
	}

	// two-pass variance keeps precision for large timestamps
	var ss float64
	for _, v := range sample {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(n-1))
}

// Quantile returns the q-quantile of an ascending sample using linear
// interpolation between closest ranks. sorted must not be empty.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// PooledPercentile computes the pct-th percentile (0-100) over the union of
// all samples. It is absent when every sample is empty.
func PooledPercentile(samples [][]float64, pct float64) model.Field[float64] {
	var pooled []float64
	for _, s := range samples {
		pooled = append(pooled, s...)
	}
	if len(pooled) == 0 {
		return model.None[float64]()
	}
	slices.Sort(pooled)
	return model.Some(Quantile(pooled, pct/100))
}
