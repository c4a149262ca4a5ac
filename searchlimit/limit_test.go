package searchlimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	_, err := New(NodesPerMove, -1, 0)
	require.ErrorIs(t, err, ErrInvalidLimit)

	_, err = New(NodesPerMove, 100, 5)
	require.ErrorIs(t, err, ErrInvalidLimit, "nonzero increment on a per-move type must be rejected")

	l, err := New(NodesForAllMoves, 100000, 1000)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, l.Value)
}

// P7: scalar multiplication is associative.
func TestScaleAssociative(t *testing.T) {
	l, err := New(SecondsForAllMoves, 60, 1)
	require.NoError(t, err)

	a, b := 2.0, 3.0
	lhs := l.Scale(a).Scale(b)
	rhs := l.Scale(a * b)
	assert.InEpsilon(t, rhs.Value, lhs.Value, 1e-9)
	assert.InEpsilon(t, rhs.ValueIncrement, lhs.ValueIncrement, 1e-9)
}

// P8: ConvertedGameToMoveLimit is idempotent and a no-op on per-move types.
func TestConvertedGameToMoveLimitIdempotent(t *testing.T) {
	perMove, err := New(NodesPerMove, 5000, 0)
	require.NoError(t, err)
	assert.Equal(t, perMove, perMove.ConvertedGameToMoveLimit())

	perGame, err := New(NodesForAllMoves, 100000, 0)
	require.NoError(t, err)
	once := perGame.ConvertedGameToMoveLimit()
	twice := once.ConvertedGameToMoveLimit()
	assert.Equal(t, once, twice)
	assert.Equal(t, NodesPerMove, once.Type)
	assert.Equal(t, 100000.0/movesToGoHorizon, once.Value)
}

func TestConvertedGameToMoveLimitRespectsMaxMovesToGo(t *testing.T) {
	l, err := New(SecondsForAllMoves, 60, 0)
	require.NoError(t, err)
	l.MaxMovesToGo = 10
	converted := l.ConvertedGameToMoveLimit()
	assert.Equal(t, 6.0, converted.Value)
}

func TestWithIncrementApplied(t *testing.T) {
	l, err := New(SecondsForAllMoves, 60, 2)
	require.NoError(t, err)
	assert.Equal(t, 62.0, l.WithIncrementApplied().Value)

	perMove, err := New(SecondsPerMove, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, perMove, perMove.WithIncrementApplied())
}

func TestEstimateNodes(t *testing.T) {
	l, err := New(SecondsPerMove, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, l.EstimateNodes(1000, true))

	nodeLimit, err := New(NodesPerMove, 5000, 0)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, nodeLimit.EstimateNodes(1000, true))
}

func TestEstimateNodesDampensSubHundredMsAssumedPrior(t *testing.T) {
	l, err := New(SecondsPerMove, 0.05, 0)
	require.NoError(t, err)
	assumed := l.EstimateNodes(1000, false)
	observed := l.EstimateNodes(1000, true)
	assert.Less(t, assumed, observed)
}

func TestString(t *testing.T) {
	l, err := New(NodesForAllMoves, 100000, 1000)
	require.NoError(t, err)
	l.MaxMovesToGo = 30
	l.SearchMoves = []string{"e2e4", "d2d4"}
	s := l.String()
	assert.Contains(t, s, "NG")
	assert.Contains(t, s, "Moves 30")
	assert.Contains(t, s, "e2e4")
}
