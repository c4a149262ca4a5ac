package mcts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/domino14/puctcore/chessmove"
	"github.com/domino14/puctcore/chessrules"
	"github.com/domino14/puctcore/engineconfig"
	"github.com/domino14/puctcore/searchlimit"
)

// nullEvaluator backs every position with a flat draw-ish value and a
// uniform policy over its legal moves, so a search driven by it can only
// find a forced mate via terminal-node backup propagation, never via
// evaluator signal -- exactly the property this end-to-end test wants to
// exercise.
type nullEvaluator struct {
	board chessrules.Board
}

func (e nullEvaluator) Evaluate(ctx context.Context, batch []chessmove.Position) ([]chessmove.EvalResult, error) {
	out := make([]chessmove.EvalResult, len(batch))
	for i, pos := range batch {
		moves := e.board.LegalMoves(pos)
		priors := make([]chessmove.MovePrior, len(moves))
		p := float32(1)
		if len(moves) > 0 {
			p = 1.0 / float32(len(moves))
		}
		for j, mv := range moves {
			priors[j] = chessmove.MovePrior{Move: mv, P: p}
		}
		out[i] = chessmove.EvalResult{WinP: 0, DrawP: 1, LossP: 0, MovesLeft: 10, Priors: priors}
	}
	return out, nil
}

func TestSolverFindsBackRankMateInOne(t *testing.T) {
	board := chessrules.NewBoard()
	evaluator := nullEvaluator{board: board}

	cfg := engineconfig.Default()
	cfg.Search.NumSelectors = 1
	cfg.Search.MaxBatchSize = 1
	cfg.Store.NodeCapacity = 4000
	cfg.Store.EdgeCapacity = 40000

	solver := NewSolver(board, evaluator, cfg)

	pos, err := chessrules.ParseFEN("6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	require.NoError(t, err)

	limit, err := searchlimit.New(searchlimit.NodesPerMove, 300, 0)
	require.NoError(t, err)

	ctx := context.Background()
	handle, err := solver.NewSearch(ctx, pos, nil, limit)
	require.NoError(t, err)

	for {
		progress, err := handle.Step(ctx)
		require.NoError(t, err)
		if progress.StopRequested {
			break
		}
	}

	info, err := handle.Best()
	require.NoError(t, err)

	want, err := chessmove.ParseUCI("a1a8")
	require.NoError(t, err)
	require.True(t, info.BestMove.SameMove(want), "expected a1a8 (the only mating move), got %s", info.BestMove)
}

func TestSolverRootIsTerminalStalemate(t *testing.T) {
	board := chessrules.NewBoard()
	evaluator := nullEvaluator{board: board}
	cfg := engineconfig.Default()
	cfg.Search.NumSelectors = 1
	cfg.Search.MaxBatchSize = 1

	solver := NewSolver(board, evaluator, cfg)

	// Black to move, stalemated.
	pos, err := chessrules.ParseFEN("k7/1Q6/1K6/8/8/8/8/8 b - - 0 1")
	require.NoError(t, err)

	limit, err := searchlimit.New(searchlimit.NodesPerMove, 10, 0)
	require.NoError(t, err)

	ctx := context.Background()
	handle, err := solver.NewSearch(ctx, pos, nil, limit)
	require.NoError(t, err)

	rootIdx, store := handle.Root()
	rec := store.NodeAt(rootIdx)
	require.True(t, rec.IsTerminal())
	require.Equal(t, TerminalDraw, rec.Terminal)
}

func TestRootConfidenceCollapsesBeforeTwoVisits(t *testing.T) {
	board := chessrules.NewBoard()
	evaluator := nullEvaluator{board: board}
	cfg := engineconfig.Default()
	cfg.Search.NumSelectors = 1
	cfg.Search.MaxBatchSize = 1

	solver := NewSolver(board, evaluator, cfg)
	pos := chessrules.StartingPosition()
	limit, err := searchlimit.New(searchlimit.NodesPerMove, 1, 0)
	require.NoError(t, err)

	ctx := context.Background()
	handle, err := solver.NewSearch(ctx, pos, nil, limit)
	require.NoError(t, err)

	low, high := handle.RootConfidence(95)
	require.Equal(t, low, high) // no variance sample yet: band has zero width

	_, err = handle.Step(ctx)
	require.NoError(t, err)

	low, high = handle.RootConfidence(95)
	require.Equal(t, low, high) // exactly one visit: still below the two-sample floor
}
