package mcts

import (
	"math"
	"sort"

	"github.com/domino14/puctcore/engineconfig"
)

// BestMoveInfo is the search's final answer (spec §6).
type BestMoveInfo struct {
	BestMoveNode    NodeIndex
	BestMove        EncodedMove
	N               uint32
	Q               float64
	BestQ           float64
	BestN           uint32
	TopMovesNRatio  float64
	MLHBonusApplied bool
}

type rootCandidate struct {
	slot  uint16
	idx   NodeIndex
	move  EncodedMove
	n     uint32
	q     float64
	mAvg  float64
}

// decisiveQThreshold is how close to ±1 a candidate's Q must be before the
// MLH bonus considers trading N-rank for a shorter win / longer loss.
const decisiveQThreshold = 0.8

// ChooseBestMove ranks root's expanded children (primarily by N, tie-break
// Q), optionally substitutes a near-tied, more-decisive-looking child
// under the MLH bonus, and reports BestMoveInfo. Grounded on the
// teacher's Simmer.sortPlaysByWinRate/WinningPlay (rank by a primary
// statistic with a secondary tie-break), generalized from
// win-rate-then-equity to N-then-Q; the MLH bonus itself has no teacher
// analogue and is built directly from spec §4.5's formula.
func ChooseBestMove(store *NodeStore, rootIdx NodeIndex, cfg engineconfig.PUCTConfig) (BestMoveInfo, error) {
	root := store.NodeAt(rootIdx)
	root.mu.Lock()
	start := root.childStart
	numExpanded := root.NumChildrenExpanded
	rootN := root.N
	rootQ := root.qLocked()
	root.mu.Unlock()

	candidates := make([]rootCandidate, 0, numExpanded)
	for i := uint16(0); i < numExpanded; i++ {
		e := store.EdgeAt(start, i)
		if e.ExpandedChildIndex == NullNode {
			continue
		}
		child := store.NodeAt(e.ExpandedChildIndex)
		child.mu.Lock()
		n := child.N
		q := -child.qLocked() // child's Q is from its own side-to-move; negate to view from root's mover's perspective
		mAvg := child.MAvg
		child.mu.Unlock()
		candidates = append(candidates, rootCandidate{
			slot: i, idx: e.ExpandedChildIndex, move: e.Move, n: n, q: q, mAvg: mAvg,
		})
	}

	if len(candidates) == 0 {
		return BestMoveInfo{N: rootN, Q: rootQ}, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].n != candidates[j].n {
			return candidates[i].n > candidates[j].n
		}
		return candidates[i].q > candidates[j].q
	})

	topN := candidates[0].n
	var topMovesNRatio float64
	if len(candidates) > 1 && candidates[1].n > 0 {
		topMovesNRatio = float64(topN) / float64(candidates[1].n)
	} else {
		topMovesNRatio = math.Inf(1)
	}

	best := candidates[0]
	mlhApplied := false
	if cfg.MLHBonusFactor > 0 && math.Abs(best.q) >= decisiveQThreshold {
		for _, c := range candidates[1:] {
			if best.n == 0 || float64(c.n)/float64(best.n) < 0.99 {
				break // candidates are N-sorted; once the gap widens, stop looking
			}
			preferShorter := best.q > 0
			var better bool
			if preferShorter {
				better = c.mAvg < best.mAvg
			} else {
				better = c.mAvg > best.mAvg
			}
			bonus := cfg.MLHBonusFactor * math.Abs(best.mAvg-c.mAvg)
			if better && bonus > 0 {
				best = c
				mlhApplied = true
			}
		}
	}

	return BestMoveInfo{
		BestMoveNode:    best.idx,
		BestMove:        best.move,
		N:               rootN,
		Q:               rootQ,
		BestQ:           best.q,
		BestN:           best.n,
		TopMovesNRatio:  topMovesNRatio,
		MLHBonusApplied: mlhApplied,
	}, nil
}
