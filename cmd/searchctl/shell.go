package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog/log"

	"github.com/domino14/puctcore/chessmove"
	"github.com/domino14/puctcore/chessrules"
	"github.com/domino14/puctcore/engineconfig"
	"github.com/domino14/puctcore/mcts"
	"github.com/domino14/puctcore/searchlimit"
)

// ShellController is an interactive read-eval-print loop over mcts.Solver,
// the same readline-driven shape as the teacher's shell.ShellController:
// one long-lived readline.Instance, a mutable "current position" the user
// steers with "position" commands, and a line-prefix-dispatched command
// switch.
type ShellController struct {
	l *readline.Instance

	board  chessrules.Board
	solver *mcts.Solver

	pos     chessmove.Position
	history []chessmove.EncodedMove
	handle  *mcts.SearchHandle
}

func filterInput(r rune) (rune, bool) {
	if r == readline.CharCtrlZ {
		return r, false
	}
	return r, true
}

// NewShellController builds a ShellController wired to the built-in
// materialEvaluator and chessrules.Board, starting from the standard
// chess position.
func NewShellController() (*ShellController, error) {
	l, err := readline.NewEx(&readline.Config{
		Prompt:              "\033[32msearchctl>\033[0m ",
		HistoryFile:         "/tmp/searchctl_readline.tmp",
		EOFPrompt:           "exit",
		InterruptPrompt:     "^C",
		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return nil, err
	}

	board := chessrules.NewBoard()
	evaluator := newMaterialEvaluator(board)
	cfg := engineconfig.Default()
	solver := mcts.NewSolver(board, evaluator, cfg)

	return &ShellController{
		l:      l,
		board:  board,
		solver: solver,
		pos:    chessrules.StartingPosition(),
	}, nil
}

func (sc *ShellController) showMessage(msg string) {
	io.WriteString(sc.l.Stdout(), msg+"\n")
}

func (sc *ShellController) showError(err error) {
	io.WriteString(sc.l.Stderr(), "Error: "+err.Error()+"\n")
}

// Loop runs the read-eval-print cycle until EOF, Ctrl-D, or a "quit"
// command, mirroring the teacher's Loop(sig chan os.Signal) structure
// (minus the signal-channel plumbing, which belonged to macondo's
// surrounding bot/server process, not this standalone CLI).
func (sc *ShellController) Loop() {
	defer sc.l.Close()

	for {
		line, err := sc.l.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				break
			}
			continue
		} else if errors.Is(err, io.EOF) {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := sc.dispatch(line); err != nil {
			if errors.Is(err, errQuit) {
				break
			}
			sc.showError(err)
		}
	}
	log.Debug().Msg("exiting searchctl readline loop")
}

var errQuit = errors.New("quit")

func (sc *ShellController) dispatch(line string) error {
	switch {
	case line == "quit" || line == "exit":
		return errQuit

	case line == "position startpos":
		sc.pos = chessrules.StartingPosition()
		sc.history = nil
		sc.showMessage("position set to startpos")
		return nil

	case strings.HasPrefix(line, "position fen "):
		fen := strings.TrimPrefix(line, "position fen ")
		pos, err := chessrules.ParseFEN(fen)
		if err != nil {
			return err
		}
		sc.pos = pos
		sc.history = nil
		sc.showMessage("position set: " + chessrules.FEN(sc.pos))
		return nil

	case line == "d" || line == "show":
		sc.showMessage(chessrules.FEN(sc.pos))
		return nil

	case strings.HasPrefix(line, "go nodes "):
		n, err := strconv.Atoi(strings.TrimPrefix(line, "go nodes "))
		if err != nil {
			return err
		}
		limit, err := searchlimit.New(searchlimit.NodesPerMove, float64(n), 0)
		if err != nil {
			return err
		}
		return sc.runSearch(limit)

	case strings.HasPrefix(line, "go movetime "):
		ms, err := strconv.Atoi(strings.TrimPrefix(line, "go movetime "))
		if err != nil {
			return err
		}
		limit, err := searchlimit.New(searchlimit.SecondsPerMove, float64(ms)/1000.0, 0)
		if err != nil {
			return err
		}
		return sc.runSearch(limit)

	case line == "best":
		return sc.printBest()

	default:
		return fmt.Errorf("unrecognized command %q", line)
	}
}

// runSearch drives handle.Step in a loop until the SearchLimit is
// reached, then reports the best move found, in the shape of the
// teacher's sim loop driving montecarlo.Simmer.Simulate to completion
// under a ticker-free, synchronous "just block until done" discipline
// (searchctl has no background ticker since, unlike macondo's sim command,
// it is not meant to be interrupted mid-flight from another input line).
func (sc *ShellController) runSearch(limit searchlimit.SearchLimit) error {
	ctx := context.Background()
	handle, err := sc.solver.NewSearch(ctx, sc.pos, sc.history, limit)
	if err != nil {
		return err
	}
	sc.handle = handle

	for {
		progress, err := handle.Step(ctx)
		if err != nil {
			return err
		}
		if progress.StopRequested {
			break
		}
	}

	if err := handle.MaterializeAllTranspositionLinks(); err != nil {
		return err
	}
	return sc.printBest()
}

func (sc *ShellController) printBest() error {
	if sc.handle == nil {
		return errors.New("no search has been run yet")
	}
	best, err := sc.handle.Best()
	if err != nil {
		return err
	}
	low, high := sc.handle.RootConfidence(95)
	sc.showMessage(fmt.Sprintf("bestmove %s  N=%d Q=%.4f [95%% %.4f,%.4f] bestN=%d bestQ=%.4f topMovesNRatio=%.3f mlhBonus=%v",
		best.BestMove, best.N, best.Q, low, high, best.BestN, best.BestQ, best.TopMovesNRatio, best.MLHBonusApplied))
	return nil
}
