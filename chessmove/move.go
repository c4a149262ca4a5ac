// Package chessmove defines the encoded-move representation and the
// position-facing contracts that the mcts package depends on but does not
// implement: the board representation, legal move generation, and the
// neural evaluator all live outside this package.
package chessmove

import "fmt"

// EncodedMove packs a chess move into a single uint32, the way the teacher's
// tinymove.TinyMove packs a Scrabble play into a 64-bit value: a from-square,
// a to-square, a promotion piece, and a handful of flag bits, all decodable
// without a lookup table. Chess needs far fewer bits than a 7-tile Scrabble
// play, so this fits in 32 instead of 64.
type EncodedMove uint32

// Square is a 0-63 board index, a1=0 .. h8=63.
type Square uint8

const (
	fromShift  = 0
	toShift    = 6
	promoShift = 12
	flagShift  = 15

	squareMask = 0x3F
	promoMask  = 0x7
	flagMask   = 0x7
)

// Promotion piece codes stored in an EncodedMove's promotion nibble.
const (
	PromoNone Promotion = iota
	PromoKnight
	PromoBishop
	PromoRook
	PromoQueen
)

// Promotion identifies the piece a pawn promotes to, or PromoNone.
type Promotion uint8

// Flag bits, OR'd together in an EncodedMove's flag field.
const (
	FlagEnPassant uint8 = 1 << 0
	FlagCastle    uint8 = 1 << 1
	FlagDoublePush uint8 = 1 << 2
)

// NullMove is the zero value: from==to==a1, never a legal move, used as the
// default priorMove on the root node.
const NullMove EncodedMove = 0

// NewEncodedMove packs a move's fields into an EncodedMove.
func NewEncodedMove(from, to Square, promo Promotion, flags uint8) EncodedMove {
	return EncodedMove(uint32(from&squareMask)<<fromShift |
		uint32(to&squareMask)<<toShift |
		uint32(promo&promoMask)<<promoShift |
		uint32(flags&flagMask)<<flagShift)
}

// From returns the move's origin square.
func (m EncodedMove) From() Square { return Square(m >> fromShift & squareMask) }

// To returns the move's destination square.
func (m EncodedMove) To() Square { return Square(m >> toShift & squareMask) }

// Promo returns the promotion piece, or PromoNone.
func (m EncodedMove) Promo() Promotion { return Promotion(m >> promoShift & promoMask) }

// Flags returns the move's flag bits.
func (m EncodedMove) Flags() uint8 { return uint8(m >> flagShift & flagMask) }

// IsEnPassant reports whether the move is an en passant capture.
func (m EncodedMove) IsEnPassant() bool { return m.Flags()&FlagEnPassant != 0 }

// IsCastle reports whether the move is a castling move.
func (m EncodedMove) IsCastle() bool { return m.Flags()&FlagCastle != 0 }

// IsDoublePush reports whether the move is a two-square pawn push.
func (m EncodedMove) IsDoublePush() bool { return m.Flags()&FlagDoublePush != 0 }

func (s Square) String() string {
	file := rune('a' + int(s%8))
	rank := rune('1' + int(s/8))
	return string([]rune{file, rank})
}

func (m EncodedMove) String() string {
	if m == NullMove {
		return "0000"
	}
	promo := ""
	switch m.Promo() {
	case PromoKnight:
		promo = "n"
	case PromoBishop:
		promo = "b"
	case PromoRook:
		promo = "r"
	case PromoQueen:
		promo = "q"
	}
	return fmt.Sprintf("%s%s%s", m.From(), m.To(), promo)
}

// ParseUCI parses a UCI-style move string ("e2e4", "e7e8q") into its
// from/to/promotion fields. The result never has flag bits set (castle /
// en passant / double-push are move-generator properties, not something
// recoverable from the string alone); callers matching this against a
// PositionSource.LegalMoves() result should compare only From/To/Promo.
func ParseUCI(s string) (EncodedMove, error) {
	if len(s) != 4 && len(s) != 5 {
		return 0, fmt.Errorf("chessmove: invalid UCI move %q", s)
	}
	from, err := ParseSquare(s[0:2])
	if err != nil {
		return 0, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return 0, err
	}
	promo := PromoNone
	if len(s) == 5 {
		switch s[4] {
		case 'n':
			promo = PromoKnight
		case 'b':
			promo = PromoBishop
		case 'r':
			promo = PromoRook
		case 'q':
			promo = PromoQueen
		default:
			return 0, fmt.Errorf("chessmove: invalid promotion piece %q", s)
		}
	}
	return NewEncodedMove(from, to, promo, 0), nil
}

// SameMove reports whether m and other share the same from/to/promo,
// ignoring flag bits — the comparison a searchMoves restriction needs
// since its UCI strings don't carry flag information.
func (m EncodedMove) SameMove(other EncodedMove) bool {
	return m.From() == other.From() && m.To() == other.To() && m.Promo() == other.Promo()
}

// ParseSquare parses algebraic notation ("e4") into a Square.
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("chessmove: invalid square %q", s)
	}
	file := s[0]
	rank := s[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return 0, fmt.Errorf("chessmove: invalid square %q", s)
	}
	return Square(int(rank-'1')*8 + int(file-'a')), nil
}
