package searchstats

import (
	"math"
	"testing"

	"github.com/matryer/is"
)

func fuzzyEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestAccumulator(t *testing.T) {
	is := is.New(t)
	type tc struct {
		scores []float64
		mean   float64
		stdev  float64
	}
	cases := []tc{
		{[]float64{10, 12, 23, 23, 16, 23, 21, 16}, 18, 5.2372293656638},
		{[]float64{1}, 1, 0},
		{[]float64{}, 0, 0},
		{[]float64{1, 1}, 1, 0},
	}
	for _, c := range cases {
		a := &Accumulator{}
		for _, v := range c.scores {
			a.Push(v)
		}
		is.True(fuzzyEqual(a.Mean(), c.mean))
		is.True(fuzzyEqual(a.Stdev(), c.stdev))
		is.Equal(a.Count(), int64(len(c.scores)))
	}
}

func TestAccumulatorVarianceRequiresTwoSamples(t *testing.T) {
	is := is.New(t)
	a := &Accumulator{}
	is.Equal(a.Variance(), 0.0)
	a.Push(5)
	is.Equal(a.Variance(), 0.0)
	a.Push(7)
	is.True(a.Variance() > 0)
}

func TestZValue(t *testing.T) {
	is := is.New(t)
	// The 95% two-tailed Z-value is the familiar ~1.96.
	z := ZValue(95)
	is.True(fuzzyEqual(math.Round(z*100)/100, 1.96))
}
