// Command searchctl is an interactive driver over mcts.Solver, in the
// shape of the teacher's shell/shell.go readline loop: load a FEN, run a
// search under a node or time limit, and inspect the resulting best move.
// It wires chessrules.Board as the PositionSource and a small built-in
// material evaluator so the engine core is exercisable end to end without
// a real neural network.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	sc, err := NewShellController()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start searchctl")
	}
	sc.Loop()
}
