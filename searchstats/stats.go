// Package searchstats provides the running-aggregate and confidence-interval
// helpers backup uses to maintain WAvg/DAvg/LAvg/MAvg/VVariance, grounded on
// the teacher's montecarlo.Statistic (Welford's online algorithm) and
// stats.ZVal (gonum-backed normal quantile).
package searchstats

import "math"

// Accumulator tracks a running mean and variance via Welford's algorithm,
// the same incremental approach as the teacher's montecarlo.Statistic, but
// exposed per-outcome (one Accumulator each for value, draw-rate, loss-rate
// and moves-left) since backup needs more than one running statistic per
// node.
type Accumulator struct {
	count int64

	oldM, newM float64
	oldS, newS float64
}

// Push folds val into the running mean/variance.
func (a *Accumulator) Push(val float64) {
	a.count++
	if a.count == 1 {
		a.oldM, a.newM = val, val
		a.oldS = 0
		return
	}
	a.newM = a.oldM + (val-a.oldM)/float64(a.count)
	a.newS = a.oldS + (val-a.oldM)*(val-a.newM)
	a.oldM, a.oldS = a.newM, a.newS
}

// Mean returns the running mean, or 0 if nothing has been pushed.
func (a *Accumulator) Mean() float64 {
	if a.count > 0 {
		return a.newM
	}
	return 0
}

// Variance returns the running sample variance, or 0 with fewer than two
// samples.
func (a *Accumulator) Variance() float64 {
	if a.count <= 1 {
		return 0
	}
	return a.newS / float64(a.count-1)
}

// Stdev returns the running sample standard deviation.
func (a *Accumulator) Stdev() float64 {
	return math.Sqrt(a.Variance())
}

// Count returns the number of samples pushed so far.
func (a *Accumulator) Count() int64 {
	return a.count
}
