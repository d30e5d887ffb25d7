package liveness

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// percentile returns the p-th percentile of vs, interpolating linearly on
// the empirical distribution. vs is not modified.
func percentile(vs []float64, p float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sorted := make([]float64, len(vs))
	copy(sorted, vs)
	sort.Float64s(sorted)
	return stat.Quantile(p/100, stat.LinInterp, sorted, nil)
}

// intervalStats returns the mean interval and the coefficient of variation
// (population standard deviation over mean).
func intervalStats(ds []time.Duration) (time.Duration, float64) {
	if len(ds) == 0 {
		return 0, 0
	}
	secs := make([]float64, len(ds))
	for i, d := range ds {
		secs[i] = d.Seconds()
	}
	mean, std := stat.PopMeanStdDev(secs, nil)

	cv := 0.0
	if mean > 0 {
		cv = std / mean
	}
	return time.Duration(mean * float64(time.Second)), cv
}
