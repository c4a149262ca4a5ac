package chessrules

import (
	"github.com/domino14/puctcore/chessmove"
)

// Board is the stateless chessmove.PositionSource implementation: every
// method takes a chessmove.Position by value and returns a new value,
// matching the teacher's pure endgame/negamax.GameRepr contract ("movegen
// never touches mutable shared state").
type Board struct{}

// NewBoard returns a Board, a zero-size stateless value receiver for the
// PositionSource interface.
func NewBoard() Board { return Board{} }

// LegalMoves returns every legal move in pos: pseudo-legal generation
// followed by a check-safety filter (makeMove then test "is my own king
// attacked").
func (b Board) LegalMoves(pos chessmove.Position) []chessmove.EncodedMove {
	pseudo := pseudoLegalMoves(pos)
	legal := make([]chessmove.EncodedMove, 0, len(pseudo))
	for _, mv := range pseudo {
		next := applyMove(pos, mv)
		if !squareAttacked(next, kingSquare(next, pos.SideToMove), pos.SideToMove.Opponent()) {
			legal = append(legal, mv)
		}
	}
	return legal
}

// MakeMove applies mv to pos and returns the resulting position. mv must
// be one of LegalMoves(pos)'s results; MakeMove does not itself validate
// legality.
func (b Board) MakeMove(pos chessmove.Position, mv chessmove.EncodedMove) chessmove.Position {
	return applyMove(pos, mv)
}

// Outcome reports whether pos is terminal: checkmate, stalemate, the
// 50-move rule, or insufficient mating material. legalMoves is the
// caller's already-computed LegalMoves(pos), passed in so Outcome doesn't
// redo that work (spec's PositionSource.Outcome signature takes it as a
// parameter for exactly this reason).
func (b Board) Outcome(pos chessmove.Position, legalMoves []chessmove.EncodedMove) (bool, chessmove.TerminalResult) {
	if len(legalMoves) == 0 {
		if inCheck(pos) {
			return true, chessmove.Loss
		}
		return true, chessmove.Draw
	}
	if pos.HalfmoveClock >= 100 {
		return true, chessmove.Draw
	}
	if insufficientMaterial(pos) {
		return true, chessmove.Draw
	}
	return false, chessmove.NonTerminal
}

func inCheck(pos chessmove.Position) bool {
	return squareAttacked(pos, kingSquare(pos, pos.SideToMove), pos.SideToMove.Opponent())
}

func kingSquare(pos chessmove.Position, c chessmove.Color) chessmove.Square {
	for sq := 0; sq < 64; sq++ {
		p := pos.Board[sq]
		if p.Type == chessmove.King && p.Color == c {
			return chessmove.Square(sq)
		}
	}
	return chessmove.NoEnPassant // unreachable for a legal position
}

// insufficientMaterial reports king-vs-king, king+minor-vs-king, the draw
// conditions cheap enough to check without a full material-counting engine
// (bishop-pair-vs-lone-king same-color-bishop edge cases are left to the
// 50-move/repetition rules instead of being detected here).
func insufficientMaterial(pos chessmove.Position) bool {
	var minorCount int
	for sq := 0; sq < 64; sq++ {
		p := pos.Board[sq]
		switch p.Type {
		case chessmove.NoPiece, chessmove.King:
			continue
		case chessmove.Knight, chessmove.Bishop:
			minorCount++
		default:
			return false
		}
	}
	return minorCount <= 1
}
