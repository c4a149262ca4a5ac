package chessmove

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	from, err := ParseSquare("e2")
	require.NoError(t, err)
	to, err := ParseSquare("e4")
	require.NoError(t, err)

	mv := NewEncodedMove(from, to, PromoNone, FlagDoublePush)
	assert.Equal(t, from, mv.From())
	assert.Equal(t, to, mv.To())
	assert.Equal(t, PromoNone, mv.Promo())
	assert.True(t, mv.IsDoublePush())
	assert.False(t, mv.IsCastle())
	assert.False(t, mv.IsEnPassant())
	assert.Equal(t, "e2e4", mv.String())
}

func TestPromotionString(t *testing.T) {
	from, _ := ParseSquare("e7")
	to, _ := ParseSquare("e8")
	mv := NewEncodedMove(from, to, PromoQueen, 0)
	assert.Equal(t, "e7e8q", mv.String())
}

func TestParseUCI(t *testing.T) {
	mv, err := ParseUCI("e7e8q")
	require.NoError(t, err)
	assert.Equal(t, PromoQueen, mv.Promo())

	plain, err := ParseUCI("e2e4")
	require.NoError(t, err)
	assert.Equal(t, PromoNone, plain.Promo())

	_, err = ParseUCI("bogus")
	assert.Error(t, err)
}

func TestSameMoveIgnoresFlags(t *testing.T) {
	from, _ := ParseSquare("e2")
	to, _ := ParseSquare("e4")
	withFlag := NewEncodedMove(from, to, PromoNone, FlagDoublePush)
	withoutFlag := NewEncodedMove(from, to, PromoNone, 0)
	assert.True(t, withFlag.SameMove(withoutFlag))

	other, _ := ParseUCI("d2d4")
	assert.False(t, withFlag.SameMove(other))
}

func TestNullMove(t *testing.T) {
	assert.Equal(t, "0000", NullMove.String())
}

func TestParseSquareInvalid(t *testing.T) {
	_, err := ParseSquare("z9")
	assert.Error(t, err)
	_, err = ParseSquare("e")
	assert.Error(t, err)
}
