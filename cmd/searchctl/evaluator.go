package main

import (
	"context"
	"math"

	"github.com/domino14/puctcore/chessmove"
	"github.com/domino14/puctcore/chessrules"
)

// materialEvaluator is a standalone, non-neural chessmove.Evaluator: a
// piece-count heuristic squashed through tanh for a value estimate, and a
// uniform prior over legal moves. It exists purely so searchctl can drive
// a full search end to end without a real network attached; it is not
// part of the engine core and carries no grounding claim beyond "something
// that implements the Evaluator interface".
type materialEvaluator struct {
	board chessrules.Board
}

func newMaterialEvaluator(board chessrules.Board) *materialEvaluator {
	return &materialEvaluator{board: board}
}

var pieceValue = map[chessmove.PieceType]float64{
	chessmove.Pawn:   1,
	chessmove.Knight: 3,
	chessmove.Bishop: 3,
	chessmove.Rook:   5,
	chessmove.Queen:  9,
}

func (e *materialEvaluator) Evaluate(ctx context.Context, batch []chessmove.Position) ([]chessmove.EvalResult, error) {
	out := make([]chessmove.EvalResult, len(batch))
	for i, pos := range batch {
		out[i] = e.evaluateOne(pos)
	}
	return out, nil
}

func (e *materialEvaluator) evaluateOne(pos chessmove.Position) chessmove.EvalResult {
	var material float64
	for sq := 0; sq < 64; sq++ {
		p := pos.Board[sq]
		v := pieceValue[p.Type]
		if p.Color == pos.SideToMove {
			material += v
		} else {
			material -= v
		}
	}
	value := math.Tanh(material / 12)

	legalMoves := e.board.LegalMoves(pos)
	priors := make([]chessmove.MovePrior, len(legalMoves))
	p := float32(0)
	if len(legalMoves) > 0 {
		p = 1 / float32(len(legalMoves))
	}
	for i, mv := range legalMoves {
		priors[i] = chessmove.MovePrior{Move: mv, P: p}
	}

	winP := float32(math.Max(0, value))
	lossP := float32(math.Max(0, -value))
	drawP := 1 - winP - lossP

	return chessmove.EvalResult{
		WinP:      winP,
		DrawP:     drawP,
		LossP:     lossP,
		MovesLeft: 40,
		Priors:    priors,
	}
}
