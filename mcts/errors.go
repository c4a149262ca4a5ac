package mcts

import "errors"

// Sentinel error kinds per spec §7, wrapped with fmt.Errorf("...: %w", ...)
// at call sites in the manner of the teacher's ErrNoEndgameSolution.
var (
	// ErrInvalidLimit: negative value, or increment supplied for a
	// per-move limit type. Surfaced by the searchlimit package itself;
	// re-exported here isn't necessary since callers import searchlimit
	// directly, but the kind is named here for symmetry with the other
	// three the core itself raises.

	// ErrStoreExhausted: node or edge arena capacity reached and
	// expansion is disallowed (or growth itself failed).
	ErrStoreExhausted = errors.New("mcts: store exhausted")

	// ErrEvaluatorFailure: the evaluator returned an error, or returned
	// output inconsistent with the batch it was given (wrong length,
	// fewer priors than legal moves, etc).
	ErrEvaluatorFailure = errors.New("mcts: evaluator failure")

	// ErrInconsistent: an invariant check failed. Only ever returned
	// from debug-build invariant checks (see debug_checks.go); fatal
	// when it occurs.
	ErrInconsistent = errors.New("mcts: inconsistent tree state")
)
