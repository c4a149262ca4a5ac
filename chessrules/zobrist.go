// Package chessrules is the concrete chessmove.PositionSource: board
// representation, legal move generation, FEN parsing, and zobrist hashing.
// Nothing in mcts depends on this package directly; it is wired in only by
// cmd/searchctl and by tests that need a real move generator.
package chessrules

import (
	"lukechampine.com/frand"

	"github.com/domino14/puctcore/chessmove"
)

// zobristTable holds the random XOR keys used to hash a Position, the same
// random-table approach as the teacher's zobrist.Zobrist.Initialize: one
// random uint64 per (square, piece) pair, plus a handful of single keys for
// side-to-move/castling-rights/en-passant-file, all drawn once at package
// init with lukechampine.com/frand rather than math/rand so the sequence
// isn't reproducible across runs (the teacher's own rationale for frand
// over math/rand, grounded in its go.mod already pulling in frand).
type zobristTable struct {
	pieceSquare [64][2][7]uint64 // [square][color][pieceType], NoPiece unused
	sideToMove  uint64
	castle      [2][2]uint64 // [color][kingside/queenside]
	enPassant   [8]uint64    // by file
}

var zTable = newZobristTable()

func newZobristTable() *zobristTable {
	src := frand.NewSource()
	t := &zobristTable{}
	for sq := 0; sq < 64; sq++ {
		for c := 0; c < 2; c++ {
			for pt := 1; pt <= 6; pt++ {
				t.pieceSquare[sq][c][pt] = src.Uint64()
			}
		}
	}
	t.sideToMove = src.Uint64()
	for c := 0; c < 2; c++ {
		t.castle[c][0] = src.Uint64()
		t.castle[c][1] = src.Uint64()
	}
	for f := 0; f < 8; f++ {
		t.enPassant[f] = src.Uint64()
	}
	return t
}

// Hash implements chessmove.PositionSource.Hash: a stable zobrist hash of
// pos's logical state (board, side to move, castling rights, en passant
// file) so that two move orders reaching the same position hash equal,
// the foundation of transposition detection (spec §4.2).
func (b Board) Hash(pos chessmove.Position) uint64 {
	var key uint64
	for sq := 0; sq < 64; sq++ {
		p := pos.Board[sq]
		if p.Type == chessmove.NoPiece {
			continue
		}
		key ^= zTable.pieceSquare[sq][p.Color][p.Type]
	}
	if pos.SideToMove == chessmove.Black {
		key ^= zTable.sideToMove
	}
	for c := 0; c < 2; c++ {
		for side := 0; side < 2; side++ {
			if pos.CastleRights[c][side] {
				key ^= zTable.castle[c][side]
			}
		}
	}
	if pos.EnPassantSquare != chessmove.NoEnPassant {
		key ^= zTable.enPassant[int(pos.EnPassantSquare)%8]
	}
	return key
}
