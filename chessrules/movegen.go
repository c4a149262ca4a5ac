package chessrules

import "github.com/domino14/puctcore/chessmove"

func file(sq int) int { return sq % 8 }
func rank(sq int) int { return sq / 8 }

var knightOffsets = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
var kingOffsets = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
var bishopDirs = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
var rookDirs = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

func onBoard(f, r int) bool { return f >= 0 && f < 8 && r >= 0 && r < 8 }

func sqAt(f, r int) chessmove.Square { return chessmove.Square(r*8 + f) }

// pseudoLegalMoves generates every move that respects piece movement rules
// and board occupancy, without checking whether the mover's own king ends
// up attacked (LegalMoves layers that filter on top).
func pseudoLegalMoves(pos chessmove.Position) []chessmove.EncodedMove {
	var moves []chessmove.EncodedMove
	us := pos.SideToMove
	for sq := 0; sq < 64; sq++ {
		p := pos.Board[sq]
		if p.Type == chessmove.NoPiece || p.Color != us {
			continue
		}
		f, r := file(sq), rank(sq)
		switch p.Type {
		case chessmove.Pawn:
			moves = append(moves, pawnMoves(pos, chessmove.Square(sq), f, r)...)
		case chessmove.Knight:
			moves = append(moves, jumpMoves(pos, chessmove.Square(sq), f, r, knightOffsets[:])...)
		case chessmove.King:
			moves = append(moves, jumpMoves(pos, chessmove.Square(sq), f, r, kingOffsets[:])...)
			moves = append(moves, castleMoves(pos, chessmove.Square(sq))...)
		case chessmove.Bishop:
			moves = append(moves, slideMoves(pos, chessmove.Square(sq), f, r, bishopDirs[:])...)
		case chessmove.Rook:
			moves = append(moves, slideMoves(pos, chessmove.Square(sq), f, r, rookDirs[:])...)
		case chessmove.Queen:
			moves = append(moves, slideMoves(pos, chessmove.Square(sq), f, r, bishopDirs[:])...)
			moves = append(moves, slideMoves(pos, chessmove.Square(sq), f, r, rookDirs[:])...)
		}
	}
	return moves
}

func pawnMoves(pos chessmove.Position, from chessmove.Square, f, r int) []chessmove.EncodedMove {
	var moves []chessmove.EncodedMove
	us := pos.SideToMove
	forward := 1
	startRank := 1
	promoRank := 7
	if us == chessmove.Black {
		forward = -1
		startRank = 6
		promoRank = 0
	}

	// Single push.
	if onBoard(f, r+forward) && pos.Board[sqAt(f, r+forward)].Type == chessmove.NoPiece {
		to := sqAt(f, r+forward)
		moves = append(moves, promoOrPlain(from, to, r+forward == promoRank, 0)...)

		// Double push, only from the start rank and only if the single
		// push square was itself empty.
		if r == startRank && pos.Board[sqAt(f, r+2*forward)].Type == chessmove.NoPiece {
			moves = append(moves, chessmove.NewEncodedMove(from, sqAt(f, r+2*forward), chessmove.PromoNone, chessmove.FlagDoublePush))
		}
	}

	// Captures (including en passant).
	for _, df := range [2]int{-1, 1} {
		nf := f + df
		nr := r + forward
		if !onBoard(nf, nr) {
			continue
		}
		to := sqAt(nf, nr)
		target := pos.Board[to]
		if target.Type != chessmove.NoPiece && target.Color != us {
			moves = append(moves, promoOrPlain(from, to, nr == promoRank, 0)...)
		} else if to == pos.EnPassantSquare && pos.EnPassantSquare != chessmove.NoEnPassant {
			moves = append(moves, chessmove.NewEncodedMove(from, to, chessmove.PromoNone, chessmove.FlagEnPassant))
		}
	}
	return moves
}

func promoOrPlain(from, to chessmove.Square, isPromo bool, flags uint8) []chessmove.EncodedMove {
	if !isPromo {
		return []chessmove.EncodedMove{chessmove.NewEncodedMove(from, to, chessmove.PromoNone, flags)}
	}
	promos := [4]chessmove.Promotion{chessmove.PromoQueen, chessmove.PromoRook, chessmove.PromoBishop, chessmove.PromoKnight}
	out := make([]chessmove.EncodedMove, 0, 4)
	for _, pr := range promos {
		out = append(out, chessmove.NewEncodedMove(from, to, pr, flags))
	}
	return out
}

func jumpMoves(pos chessmove.Position, from chessmove.Square, f, r int, offsets [][2]int) []chessmove.EncodedMove {
	var moves []chessmove.EncodedMove
	us := pos.SideToMove
	for _, o := range offsets {
		nf, nr := f+o[0], r+o[1]
		if !onBoard(nf, nr) {
			continue
		}
		to := sqAt(nf, nr)
		target := pos.Board[to]
		if target.Type == chessmove.NoPiece || target.Color != us {
			moves = append(moves, chessmove.NewEncodedMove(from, to, chessmove.PromoNone, 0))
		}
	}
	return moves
}

func slideMoves(pos chessmove.Position, from chessmove.Square, f, r int, dirs [][2]int) []chessmove.EncodedMove {
	var moves []chessmove.EncodedMove
	us := pos.SideToMove
	for _, d := range dirs {
		nf, nr := f+d[0], r+d[1]
		for onBoard(nf, nr) {
			to := sqAt(nf, nr)
			target := pos.Board[to]
			if target.Type == chessmove.NoPiece {
				moves = append(moves, chessmove.NewEncodedMove(from, to, chessmove.PromoNone, 0))
			} else {
				if target.Color != us {
					moves = append(moves, chessmove.NewEncodedMove(from, to, chessmove.PromoNone, 0))
				}
				break
			}
			nf += d[0]
			nr += d[1]
		}
	}
	return moves
}

func castleMoves(pos chessmove.Position, kingSq chessmove.Square) []chessmove.EncodedMove {
	us := pos.SideToMove
	them := us.Opponent()
	if squareAttacked(pos, kingSq, them) {
		return nil
	}
	var moves []chessmove.EncodedMove
	homeRank := 0
	if us == chessmove.Black {
		homeRank = 7
	}
	// Kingside: f and g empty, f and g not attacked.
	if pos.CastleRights[us][0] {
		f1, g1 := sqAt(5, homeRank), sqAt(6, homeRank)
		if pos.Board[f1].Type == chessmove.NoPiece && pos.Board[g1].Type == chessmove.NoPiece &&
			!squareAttacked(pos, f1, them) && !squareAttacked(pos, g1, them) {
			moves = append(moves, chessmove.NewEncodedMove(kingSq, g1, chessmove.PromoNone, chessmove.FlagCastle))
		}
	}
	// Queenside: b, c, d empty; c and d not attacked.
	if pos.CastleRights[us][1] {
		b1, c1, d1 := sqAt(1, homeRank), sqAt(2, homeRank), sqAt(3, homeRank)
		if pos.Board[b1].Type == chessmove.NoPiece && pos.Board[c1].Type == chessmove.NoPiece && pos.Board[d1].Type == chessmove.NoPiece &&
			!squareAttacked(pos, c1, them) && !squareAttacked(pos, d1, them) {
			moves = append(moves, chessmove.NewEncodedMove(kingSq, c1, chessmove.PromoNone, chessmove.FlagCastle))
		}
	}
	return moves
}

// squareAttacked reports whether sq is attacked by any piece of color by
// in pos. Used both for check detection and for castle-through-check
// safety.
func squareAttacked(pos chessmove.Position, sq chessmove.Square, by chessmove.Color) bool {
	f, r := file(int(sq)), rank(int(sq))

	pawnDir := -1 // attacker's pawns move in -forward direction relative to target, so look one rank "behind" from by's push direction
	if by == chessmove.Black {
		pawnDir = 1
	}
	for _, df := range [2]int{-1, 1} {
		nf, nr := f+df, r-pawnDir
		if onBoard(nf, nr) {
			p := pos.Board[sqAt(nf, nr)]
			if p.Type == chessmove.Pawn && p.Color == by {
				return true
			}
		}
	}

	for _, o := range knightOffsets {
		nf, nr := f+o[0], r+o[1]
		if onBoard(nf, nr) {
			p := pos.Board[sqAt(nf, nr)]
			if p.Type == chessmove.Knight && p.Color == by {
				return true
			}
		}
	}

	for _, o := range kingOffsets {
		nf, nr := f+o[0], r+o[1]
		if onBoard(nf, nr) {
			p := pos.Board[sqAt(nf, nr)]
			if p.Type == chessmove.King && p.Color == by {
				return true
			}
		}
	}

	for _, d := range bishopDirs {
		nf, nr := f+d[0], r+d[1]
		for onBoard(nf, nr) {
			p := pos.Board[sqAt(nf, nr)]
			if p.Type != chessmove.NoPiece {
				if p.Color == by && (p.Type == chessmove.Bishop || p.Type == chessmove.Queen) {
					return true
				}
				break
			}
			nf += d[0]
			nr += d[1]
		}
	}

	for _, d := range rookDirs {
		nf, nr := f+d[0], r+d[1]
		for onBoard(nf, nr) {
			p := pos.Board[sqAt(nf, nr)]
			if p.Type != chessmove.NoPiece {
				if p.Color == by && (p.Type == chessmove.Rook || p.Type == chessmove.Queen) {
					return true
				}
				break
			}
			nf += d[0]
			nr += d[1]
		}
	}
	return false
}

// applyMove returns the position after mv, handling captures, en passant,
// castling rook movement, castling-rights updates, the halfmove clock, and
// the fullmove counter.
func applyMove(pos chessmove.Position, mv chessmove.EncodedMove) chessmove.Position {
	next := pos
	us := pos.SideToMove
	from, to := mv.From(), mv.To()
	moving := pos.Board[from]

	isCapture := next.Board[to].Type != chessmove.NoPiece
	next.Board[from] = chessmove.Piece{}
	next.Board[to] = moving

	if mv.IsEnPassant() {
		capturedRank := rank(int(to)) - 1
		if us == chessmove.Black {
			capturedRank = rank(int(to)) + 1
		}
		next.Board[sqAt(file(int(to)), capturedRank)] = chessmove.Piece{}
		isCapture = true
	}

	if mv.Promo() != chessmove.PromoNone {
		var pt chessmove.PieceType
		switch mv.Promo() {
		case chessmove.PromoKnight:
			pt = chessmove.Knight
		case chessmove.PromoBishop:
			pt = chessmove.Bishop
		case chessmove.PromoRook:
			pt = chessmove.Rook
		case chessmove.PromoQueen:
			pt = chessmove.Queen
		}
		next.Board[to] = chessmove.Piece{Type: pt, Color: us}
	}

	if mv.IsCastle() {
		homeRank := rank(int(from))
		if file(int(to)) == 6 { // kingside
			rookFrom, rookTo := sqAt(7, homeRank), sqAt(5, homeRank)
			next.Board[rookTo] = next.Board[rookFrom]
			next.Board[rookFrom] = chessmove.Piece{}
		} else { // queenside
			rookFrom, rookTo := sqAt(0, homeRank), sqAt(3, homeRank)
			next.Board[rookTo] = next.Board[rookFrom]
			next.Board[rookFrom] = chessmove.Piece{}
		}
	}

	// Castling rights: moving the king forfeits both; moving/capturing a
	// rook forfeits that side.
	if moving.Type == chessmove.King {
		next.CastleRights[us][0] = false
		next.CastleRights[us][1] = false
	}
	clearRookRights(&next, from)
	clearRookRights(&next, to)

	if mv.IsDoublePush() {
		epRank := rank(int(from)) + 1
		if us == chessmove.Black {
			epRank = rank(int(from)) - 1
		}
		next.EnPassantSquare = sqAt(file(int(from)), epRank)
	} else {
		next.EnPassantSquare = chessmove.NoEnPassant
	}

	if moving.Type == chessmove.Pawn || isCapture {
		next.HalfmoveClock = 0
	} else {
		next.HalfmoveClock = pos.HalfmoveClock + 1
	}

	if us == chessmove.Black {
		next.FullmoveNum = pos.FullmoveNum + 1
	}
	next.SideToMove = us.Opponent()
	return next
}

func clearRookRights(pos *chessmove.Position, sq chessmove.Square) {
	switch sq {
	case sqAt(0, 0):
		pos.CastleRights[chessmove.White][1] = false
	case sqAt(7, 0):
		pos.CastleRights[chessmove.White][0] = false
	case sqAt(0, 7):
		pos.CastleRights[chessmove.Black][1] = false
	case sqAt(7, 7):
		pos.CastleRights[chessmove.Black][0] = false
	}
}
