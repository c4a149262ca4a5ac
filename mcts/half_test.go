package mcts

import (
	"testing"

	"github.com/matryer/is"
)

func TestFloat16RoundTrip(t *testing.T) {
	is := is.New(t)
	for _, f := range []float32{0, 1, -1, 0.5, 0.25, 0.999, 0.001, 3.14159} {
		got := unpackFloat16(packFloat16(f))
		diff := got - f
		if diff < 0 {
			diff = -diff
		}
		is.True(diff < 0.01) // half-precision loses mantissa bits; this is expected
	}
}

func TestFloat16Zero(t *testing.T) {
	is := is.New(t)
	is.Equal(unpackFloat16(packFloat16(0)), float32(0))
}

func TestFloat16Saturates(t *testing.T) {
	is := is.New(t)
	got := unpackFloat16(packFloat16(1e10))
	is.True(got > 60000) // overflow saturates to the largest finite half magnitude or +Inf
}
