package statistic

import (
	"math"

	"Go2NetProfile/internal/model"
)

// densityCut extends the evaluation grid this many bandwidths past the data range.
const densityCut = 3.0

// Density estimates a Gaussian kernel density over sample and evaluates it on
// a grid of the given number of points. The bandwidth follows Scott's rule.
// Degenerate samples (fewer than MinSamples values, or no spread) are reported
// as unavailable.
func Density(sample []float64, points int) model.Density {
	n := len(sample)
	if n < MinSamples {
		return model.Density{Reason: model.ErrInsufficientSamples.Error()}
	}

	_, std := MeanStd(sample)
	if std == 0 || math.IsNaN(std) {
		return model.Density{Reason: "zero variance"}
	}
	if points < 2 {
		points = 2
	}

	bw := std * math.Pow(float64(n), -1.0/5.0)
	lo, hi := sample[0], sample[0]
	for _, v := range sample[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	lo -= densityCut * bw
	hi += densityCut * bw

	step := (hi - lo) / float64(points-1)
	norm := 1.0 / (float64(n) * bw * math.Sqrt(2*math.Pi))

	d := model.Density{
		Available: true,
		Bandwidth: bw,
		X:         make([]float64, points),
		Y:         make([]float64, points),
	}
	for i := 0; i < points; i++ {
		x := lo + step*float64(i)
		var acc float64
		for _, v := range sample {
			z := (x - v) / bw
			acc += math.Exp(-0.5 * z * z)
		}
		d.X[i] = x
		d.Y[i] = acc * norm
	}
	return d
}
