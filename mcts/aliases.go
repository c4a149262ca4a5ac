package mcts

import "github.com/domino14/puctcore/chessmove"

// Re-exported so the rest of this package can write Position/EncodedMove
// instead of chessmove.Position/chessmove.EncodedMove throughout; these
// are the same types, not copies.
type (
	Position       = chessmove.Position
	EncodedMove    = chessmove.EncodedMove
	Evaluator      = chessmove.Evaluator
	PositionSource = chessmove.PositionSource
	EvalResult     = chessmove.EvalResult
	MovePrior      = chessmove.MovePrior
	TerminalResult = chessmove.TerminalResult
)

const (
	NonTerminal = chessmove.NonTerminal
	TerminalWin  = chessmove.Win
	TerminalLoss = chessmove.Loss
	TerminalDraw = chessmove.Draw
)
