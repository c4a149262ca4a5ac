package searchstats

import "gonum.org/v1/gonum/stat/distuv"

// ZValue returns the two-tailed Z-value for a confidence interval given as
// a percentage (0-100), exactly as the teacher's stats.ZVal does. Used by
// the search manager to report a confidence band around a node's Q when
// logging search progress.
func ZValue(confidenceInterval float64) float64 {
	dist := distuv.Normal{Mu: 0, Sigma: 1}
	area := (1 + confidenceInterval/100) / 2
	return dist.Quantile(area)
}
