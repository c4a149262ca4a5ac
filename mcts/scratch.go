package mcts

import "sync"

// PendingLeaf describes one leaf a selector emitted during a single batch:
// the path from root to leaf (for backup), which selector claimed it, how
// many virtual-loss visits it reserved, and what still needs to happen
// before backup can proceed.
type PendingLeaf struct {
	Kind              leafKind
	NodeIndex         NodeIndex
	SelectorID        int
	NumVisitsReserved uint32
	Path              []NodeIndex

	// Pos is only populated for leafKindNew; it is what gets sent to the
	// evaluator.
	Pos Position

	// V/M are pre-resolved values for everything except leafKindNew:
	// terminal outcomes, transposition-root draws, and deferred-link
	// copies all already know their value before backup runs.
	V float32
	M float32
}

type leafKind uint8

const (
	leafKindNew leafKind = iota
	leafKindTerminal
	leafKindTranspositionBackup
	leafKindDeferredLink
)

// deferredWaiter is a pending leaf that turned out to match a position
// still awaiting its own evaluator result in an earlier, not-yet-backed-up
// batch; it cannot be resolved until that earlier node's result lands.
type deferredWaiter struct {
	leaf PendingLeaf
}

// selectionScratch is the per-search "mutable state on node wrappers"
// design note (spec §9) externalized into its own structure keyed by node
// index rather than stored on the node record itself: which canonical
// nodes currently have an evaluator call outstanding, and which pending
// leaves are waiting on one of those calls to land (deferred-link
// pairing, spec §4.4). It is discarded and rebuilt fresh at the start of
// each batch's selection phase — nothing here outlives one dispatch
// cycle.
type selectionScratch struct {
	mu sync.Mutex

	// outstanding is the set of canonical node indices whose evaluator
	// result has been requested in the current or an earlier in-flight
	// batch but not yet backed up.
	outstanding map[NodeIndex]bool

	// waiters maps a canonical node index to every pending leaf deferred
	// on its result.
	waiters map[NodeIndex][]deferredWaiter
}

func newSelectionScratch() *selectionScratch {
	return &selectionScratch{
		outstanding: make(map[NodeIndex]bool),
		waiters:     make(map[NodeIndex][]deferredWaiter),
	}
}

// markOutstanding records idx as having an evaluator call in flight.
func (s *selectionScratch) markOutstanding(idx NodeIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outstanding[idx] = true
}

// isOutstanding reports whether idx's evaluator result is still pending.
func (s *selectionScratch) isOutstanding(idx NodeIndex) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outstanding[idx]
}

// deferOn records leaf as waiting on canonical idx's pending result,
// rather than emitting it as its own evaluator-bound leaf. Returns true
// if idx was in fact still outstanding at the time of the call (the
// caller must re-check under the lock to avoid a race against idx's
// backup completing concurrently).
func (s *selectionScratch) deferOn(idx NodeIndex, leaf PendingLeaf) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.outstanding[idx] {
		return false
	}
	s.waiters[idx] = append(s.waiters[idx], deferredWaiter{leaf: leaf})
	return true
}

// resolve marks idx's evaluator result as landed and returns every leaf
// that had deferred on it, clearing both the outstanding flag and the
// waiter list.
func (s *selectionScratch) resolve(idx NodeIndex) []deferredWaiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	waiters := s.waiters[idx]
	delete(s.waiters, idx)
	delete(s.outstanding, idx)
	return waiters
}

// drainAllWaiters returns every still-pending deferred leaf across every
// outstanding node and clears the scratch entirely. Used when a batch is
// abandoned mid-flight (evaluator failure): those leaves' virtual loss was
// already reserved during Descend but, being deferred rather than merged,
// would otherwise never be released once this RunBatch call returns and
// scratch is discarded.
func (s *selectionScratch) drainAllWaiters() []PendingLeaf {
	s.mu.Lock()
	defer s.mu.Unlock()
	var leaves []PendingLeaf
	for _, ws := range s.waiters {
		for _, w := range ws {
			leaves = append(leaves, w.leaf)
		}
	}
	s.waiters = make(map[NodeIndex][]deferredWaiter)
	s.outstanding = make(map[NodeIndex]bool)
	return leaves
}
