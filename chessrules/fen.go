package chessrules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/domino14/puctcore/chessmove"
)

// StartingPosition returns the standard chess starting position.
func StartingPosition() chessmove.Position {
	pos, err := ParseFEN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	if err != nil {
		panic(err) // unreachable: the starting FEN is a compile-time constant
	}
	return pos
}

// ParseFEN parses a Forsyth-Edwards Notation string into a Position.
func ParseFEN(fen string) (chessmove.Position, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return chessmove.Position{}, fmt.Errorf("chessrules: invalid FEN %q: need at least 4 fields", fen)
	}

	var pos chessmove.Position
	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return chessmove.Position{}, fmt.Errorf("chessrules: invalid FEN board %q", fields[0])
	}
	for i, rankStr := range ranks {
		r := 7 - i
		f := 0
		for _, ch := range rankStr {
			if ch >= '1' && ch <= '8' {
				f += int(ch - '0')
				continue
			}
			pt, color, err := pieceFromFEN(ch)
			if err != nil {
				return chessmove.Position{}, err
			}
			if f >= 8 {
				return chessmove.Position{}, fmt.Errorf("chessrules: invalid FEN rank %q overflows", rankStr)
			}
			pos.Board[sqAt(f, r)] = chessmove.Piece{Type: pt, Color: color}
			f++
		}
	}

	switch fields[1] {
	case "w":
		pos.SideToMove = chessmove.White
	case "b":
		pos.SideToMove = chessmove.Black
	default:
		return chessmove.Position{}, fmt.Errorf("chessrules: invalid side to move %q", fields[1])
	}

	if fields[2] != "-" {
		for _, ch := range fields[2] {
			switch ch {
			case 'K':
				pos.CastleRights[chessmove.White][0] = true
			case 'Q':
				pos.CastleRights[chessmove.White][1] = true
			case 'k':
				pos.CastleRights[chessmove.Black][0] = true
			case 'q':
				pos.CastleRights[chessmove.Black][1] = true
			}
		}
	}

	if fields[3] == "-" {
		pos.EnPassantSquare = chessmove.NoEnPassant
	} else {
		sq, err := chessmove.ParseSquare(fields[3])
		if err != nil {
			return chessmove.Position{}, fmt.Errorf("chessrules: invalid en passant square: %w", err)
		}
		pos.EnPassantSquare = sq
	}

	pos.HalfmoveClock = 0
	pos.FullmoveNum = 1
	if len(fields) >= 5 {
		if n, err := strconv.Atoi(fields[4]); err == nil {
			pos.HalfmoveClock = n
		}
	}
	if len(fields) >= 6 {
		if n, err := strconv.Atoi(fields[5]); err == nil {
			pos.FullmoveNum = n
		}
	}
	return pos, nil
}

func pieceFromFEN(ch rune) (chessmove.PieceType, chessmove.Color, error) {
	color := chessmove.White
	lower := ch
	if ch >= 'a' && ch <= 'z' {
		color = chessmove.Black
	} else {
		lower = ch + ('a' - 'A')
	}
	var pt chessmove.PieceType
	switch lower {
	case 'p':
		pt = chessmove.Pawn
	case 'n':
		pt = chessmove.Knight
	case 'b':
		pt = chessmove.Bishop
	case 'r':
		pt = chessmove.Rook
	case 'q':
		pt = chessmove.Queen
	case 'k':
		pt = chessmove.King
	default:
		return 0, 0, fmt.Errorf("chessrules: invalid FEN piece %q", ch)
	}
	return pt, color, nil
}

// FEN renders pos back into Forsyth-Edwards Notation.
func FEN(pos chessmove.Position) string {
	var sb strings.Builder
	for r := 7; r >= 0; r-- {
		empty := 0
		for f := 0; f < 8; f++ {
			p := pos.Board[sqAt(f, r)]
			if p.Type == chessmove.NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteRune(pieceToFEN(p))
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if r > 0 {
			sb.WriteByte('/')
		}
	}

	sb.WriteByte(' ')
	if pos.SideToMove == chessmove.White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	sb.WriteByte(' ')
	castle := ""
	if pos.CastleRights[chessmove.White][0] {
		castle += "K"
	}
	if pos.CastleRights[chessmove.White][1] {
		castle += "Q"
	}
	if pos.CastleRights[chessmove.Black][0] {
		castle += "k"
	}
	if pos.CastleRights[chessmove.Black][1] {
		castle += "q"
	}
	if castle == "" {
		castle = "-"
	}
	sb.WriteString(castle)

	sb.WriteByte(' ')
	if pos.EnPassantSquare == chessmove.NoEnPassant {
		sb.WriteByte('-')
	} else {
		sb.WriteString(pos.EnPassantSquare.String())
	}

	fmt.Fprintf(&sb, " %d %d", pos.HalfmoveClock, pos.FullmoveNum)
	return sb.String()
}

func pieceToFEN(p chessmove.Piece) rune {
	var ch rune
	switch p.Type {
	case chessmove.Pawn:
		ch = 'p'
	case chessmove.Knight:
		ch = 'n'
	case chessmove.Bishop:
		ch = 'b'
	case chessmove.Rook:
		ch = 'r'
	case chessmove.Queen:
		ch = 'q'
	case chessmove.King:
		ch = 'k'
	}
	if p.Color == chessmove.White {
		ch = ch - ('a' - 'A')
	}
	return ch
}
