package mcts

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/domino14/puctcore/engineconfig"
)

// Dispatcher collects leaves emitted by every selector into one batch,
// calls the external Evaluator once, writes results back, and backs up
// values from leaf to root (spec §4.4). Its batching loop and the
// per-selector fan-out are grounded on the teacher's
// iterativelyDeepenLazySMP / montecarlo.Simulate use of
// golang.org/x/sync/errgroup for fixed worker fan-out against a shared
// cancellable context.Context.
type Dispatcher struct {
	tree      *TreeIndex
	source    PositionSource
	evaluator Evaluator
	selectors []*Selector
	cfg       engineconfig.SearchConfig

	// rootIdx and searchMovesFilter implement spec §8's searchMoves
	// boundary behavior: when non-nil, applyEvaluation suppresses every
	// root-level edge whose move isn't in the filter, set once by
	// Solver.NewSearch and never touched again.
	rootIdx           NodeIndex
	searchMovesFilter map[EncodedMove]bool
}

// NewDispatcher builds a Dispatcher driving the given selectors against
// tree, sourcing moves from source and evaluations from evaluator.
func NewDispatcher(tree *TreeIndex, source PositionSource, evaluator Evaluator, selectors []*Selector, cfg engineconfig.SearchConfig) *Dispatcher {
	return &Dispatcher{tree: tree, source: source, evaluator: evaluator, selectors: selectors, cfg: cfg}
}

// RunBatch performs one full selection/evaluation/backup cycle ("one
// step", spec §6's step(handle)): every selector descends up to
// MaxBatchSize times (concurrently, O3: no cross-selector ordering
// guaranteed beyond virtual-loss increment-before-emit /
// decrement-during-backup), the resulting leaves are deduplicated and
// merged, the evaluator is called once for every genuinely new position,
// and every leaf is backed up from leaf to root before RunBatch returns —
// the happens-before boundary spec's O1 requires.
func (d *Dispatcher) RunBatch(ctx context.Context, rootIdx NodeIndex, rootPos Position) error {
	scratch := newSelectionScratch()

	perSelector := make([][]PendingLeaf, len(d.selectors))
	g, gctx := errgroup.WithContext(ctx)
	for i, sel := range d.selectors {
		i, sel := i, sel
		g.Go(func() error {
			leaves, err := d.collectSelectorBatch(gctx, sel, rootIdx, rootPos, scratch)
			if err != nil {
				return err
			}
			perSelector[i] = leaves
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	merged := mergeLeaves(perSelector)

	var newLeaves []PendingLeaf
	var positions []Position
	for _, l := range merged {
		if l.Kind == leafKindNew {
			newLeaves = append(newLeaves, l)
			positions = append(positions, l.Pos)
		}
	}

	if len(positions) > 0 {
		results, err := d.evaluator.Evaluate(ctx, positions)
		if err != nil {
			d.releaseVirtualLoss(merged)
			d.releaseVirtualLoss(scratch.drainAllWaiters())
			return fmt.Errorf("%w: %v", ErrEvaluatorFailure, err)
		}
		if len(results) != len(positions) {
			d.releaseVirtualLoss(merged)
			d.releaseVirtualLoss(scratch.drainAllWaiters())
			return fmt.Errorf("%w: evaluator returned %d results for %d positions", ErrEvaluatorFailure, len(results), len(positions))
		}
		for i, leaf := range newLeaves {
			if err := d.applyEvaluation(leaf.NodeIndex, results[i]); err != nil {
				d.releaseVirtualLoss(merged)
				d.releaseVirtualLoss(scratch.drainAllWaiters())
				return err
			}
			for _, w := range scratch.resolve(leaf.NodeIndex) {
				waiter := w.leaf
				waiter.Kind = leafKindDeferredLink
				waiter.V = results[i].WinP - results[i].LossP
				waiter.M = results[i].MovesLeft
				merged = append(merged, waiter)
			}
		}
	}

	for _, leaf := range merged {
		if err := d.resolveAndBackup(leaf); err != nil {
			return err
		}
	}
	log.Debug().Int("leaves", len(merged)).Int("new", len(newLeaves)).Msg("batch-complete")
	return nil
}

// collectSelectorBatch runs one selector up to MaxBatchSize times,
// deduplicating repeat hits on the same not-yet-resolved node within this
// selector's own contribution (the "two selectors targeting a single very
// attractive child" boundary behavior, spec §8): repeats fold into the
// first occurrence's NumVisitsReserved rather than becoming independent
// evaluator requests.
func (d *Dispatcher) collectSelectorBatch(ctx context.Context, sel *Selector, rootIdx NodeIndex, rootPos Position, scratch *selectionScratch) ([]PendingLeaf, error) {
	var leaves []PendingLeaf
	seen := make(map[NodeIndex]int)

	for i := 0; i < d.cfg.MaxBatchSize; i++ {
		select {
		case <-ctx.Done():
			return leaves, nil
		default:
		}

		leaf, err := sel.Descend(rootIdx, rootPos)
		if err != nil {
			return nil, err
		}

		if pos, ok := seen[leaf.NodeIndex]; ok {
			leaves[pos].NumVisitsReserved += leaf.NumVisitsReserved
			continue
		}

		if leaf.Kind == leafKindNew && scratch.isOutstanding(leaf.NodeIndex) {
			if scratch.deferOn(leaf.NodeIndex, leaf) {
				continue
			}
		}

		seen[leaf.NodeIndex] = len(leaves)
		leaves = append(leaves, leaf)
		if leaf.Kind == leafKindNew {
			scratch.markOutstanding(leaf.NodeIndex)
		}
	}
	return leaves, nil
}

// mergeLeaves combines every selector's contribution into one slice,
// folding duplicate NodeIndex hits across selectors the same way
// collectSelectorBatch folds duplicates within one selector.
func mergeLeaves(perSelector [][]PendingLeaf) []PendingLeaf {
	var merged []PendingLeaf
	index := make(map[NodeIndex]int)
	for _, leaves := range perSelector {
		for _, leaf := range leaves {
			if pos, ok := index[leaf.NodeIndex]; ok {
				merged[pos].NumVisitsReserved += leaf.NumVisitsReserved
				continue
			}
			index[leaf.NodeIndex] = len(merged)
			merged = append(merged, leaf)
		}
	}
	return merged
}

// applyEvaluation writes a freshly-evaluated leaf's (V, policy) into its
// node record: value/win/draw/loss, the moves-left estimate, and the
// sorted-by-P-descending, capped edge block (spec §4.1's invariant I2 and
// §6's "core sorts by p descending and truncates").
func (d *Dispatcher) applyEvaluation(idx NodeIndex, result EvalResult) error {
	store := d.tree.Store()
	rec := store.NodeAt(idx)

	priors := result.Priors
	if idx == d.rootIdx && d.searchMovesFilter != nil {
		priors = filterPriors(priors, d.searchMovesFilter)
	}
	priors = sortedTruncatedPriors(priors, store.MaxPolicyMovesPerNode())

	offset, err := store.AllocateChildren(uint16(len(priors)))
	if err != nil {
		return err
	}
	for i, p := range priors {
		e := store.EdgeAt(offset, uint16(i))
		e.Move = p.Move
		e.P = p.P
		e.ExpandedChildIndex = NullNode
	}

	rec.mu.Lock()
	rec.WinP = result.WinP
	rec.DrawP = result.DrawP
	rec.LossP = result.LossP
	rec.MPosition = result.MovesLeft
	rec.V = result.WinP - result.LossP
	if len(priors) == 0 {
		rec.childStart = childrenNone
	} else {
		rec.childStart = offset
	}
	rec.NumPolicyMoves = uint16(len(priors))
	rec.mu.Unlock()
	return nil
}

// filterPriors keeps only the moves present in filter (spec §8: "searchMoves
// restricts root expansion to exactly that set; all other root edges are
// suppressed"), matching on from/to/promo only since SameMove ignores flags.
func filterPriors(priors []MovePrior, filter map[EncodedMove]bool) []MovePrior {
	out := make([]MovePrior, 0, len(priors))
	for _, p := range priors {
		for allowed := range filter {
			if p.Move.SameMove(allowed) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// sortedTruncatedPriors sorts priors by P descending and truncates to cap.
func sortedTruncatedPriors(priors []MovePrior, cap uint16) []MovePrior {
	out := make([]MovePrior, len(priors))
	copy(out, priors)
	// Insertion sort: policy lists are small (a few dozen legal moves),
	// so this avoids pulling in sort.Slice's reflection-based comparator
	// for what is, in practice, a tiny fixed-size list.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].P > out[j-1].P; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if int(cap) < len(out) {
		out = out[:cap]
	}
	return out
}

// resolveAndBackup resolves any remaining leaf kind that doesn't already
// carry a value (transposition-backup leaves draw theirs from their
// canonical root) and then backs it up from leaf to root.
func (d *Dispatcher) resolveAndBackup(leaf PendingLeaf) error {
	switch leaf.Kind {
	case leafKindTranspositionBackup:
		v, m, err := d.tree.NextTranspositionValue(leaf.NodeIndex)
		if err == errTranspositionExhausted {
			// Materialized mid-flight: treat as if freshly evaluated next
			// batch. Release this batch's virtual loss for it now so it
			// doesn't get double-released, and skip backup this round.
			d.releaseVirtualLoss([]PendingLeaf{leaf})
			return nil
		}
		if err != nil {
			return err
		}
		leaf.V, leaf.M = v, m
	case leafKindNew:
		// Resolved just above in RunBatch via applyEvaluation; re-read V
		// from the node record itself.
		rec := d.tree.Store().NodeAt(leaf.NodeIndex)
		rec.mu.Lock()
		leaf.V = rec.V
		leaf.M = rec.MPosition
		rec.mu.Unlock()
	}
	d.backup(leaf)
	return nil
}

// backup walks leaf.Path from leaf to root, adding leaf.V (sign-flipped
// at every parent step since each ply alternates side to move),
// incrementing N by NumVisitsReserved, releasing that many virtual-loss
// visits, and pushing the running aggregates (spec §4.4).
func (d *Dispatcher) backup(leaf PendingLeaf) {
	store := d.tree.Store()
	v := float64(leaf.V)
	drawP := 0.0
	lossP := 0.0
	movesLeft := float64(leaf.M)

	if leaf.Kind == leafKindNew || leaf.Kind == leafKindDeferredLink {
		rec := store.NodeAt(leaf.NodeIndex)
		rec.mu.Lock()
		drawP = float64(rec.DrawP)
		lossP = float64(rec.LossP)
		rec.mu.Unlock()
	}

	for i := len(leaf.Path) - 1; i >= 0; i-- {
		idx := leaf.Path[i]
		rec := store.NodeAt(idx)
		rec.mu.Lock()
		wasFirstVisit := rec.N == 0
		rec.W += v
		rec.N += leaf.NumVisitsReserved
		rec.addInFlightLocked(leaf.SelectorID, -int32(leaf.NumVisitsReserved))
		rec.pushAggregatesLocked(v, drawP, lossP, movesLeft)
		rec.mu.Unlock()

		if i > 0 && wasFirstVisit {
			recordVisitToChild(store, leaf.Path[i-1], idx)
		}
		v = -v
	}
}
