package mcts

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/domino14/puctcore/chessmove"
)

// TranspositionTable maps a position's zobrist-style hash to the arena
// index of its canonical subtree root. Grounded on the teacher's
// TranspositionTable: the same "store the top bytes of the hash, derive
// the rest from the bucket" compression (here top 32 bits, bucket from the
// low bits) and the same atomic hit/lookup/collision counters for
// observability — but insert-once/first-wins (spec §4.2) instead of the
// teacher's always-overwrite policy, since two logical positions sharing a
// subtree is the entire point here rather than a replaced stale entry.
//
// Each bucket packs (top32Bits, NodeIndex) into a single uint64 so the
// insert-once race can be resolved with one atomic CompareAndSwap instead
// of a per-bucket lock.
type TranspositionTable struct {
	entries  []atomic.Uint64
	sizeMask uint64

	lookups    atomic.Uint64
	hits       atomic.Uint64
	inserts    atomic.Uint64
	collisions atomic.Uint64
}

// NewTranspositionTable creates a table with 2^sizePowerOf2 buckets.
func NewTranspositionTable(sizePowerOf2 int) *TranspositionTable {
	n := uint64(1) << uint(sizePowerOf2)
	return &TranspositionTable{
		entries:  make([]atomic.Uint64, n),
		sizeMask: n - 1,
	}
}

func (t *TranspositionTable) pack(topBits uint32, idx NodeIndex) uint64 {
	return uint64(topBits)<<32 | uint64(uint32(idx))
}

// RecordPosition inserts (hash -> idx) iff no entry exists at hash's
// bucket yet; otherwise the existing canonical index wins (spec §4.2's
// first-wins tie-break) and is returned instead. The caller compares the
// returned index against idx to discover whether its new node became
// canonical or got linked to an existing one.
func (t *TranspositionTable) RecordPosition(hash uint64, idx NodeIndex) NodeIndex {
	bucket := hash & t.sizeMask
	top := uint32(hash >> 32)
	newVal := t.pack(top, idx)

	for {
		cur := t.entries[bucket].Load()
		if cur == 0 {
			if t.entries[bucket].CompareAndSwap(0, newVal) {
				t.inserts.Add(1)
				return idx
			}
			continue
		}
		curTop := uint32(cur >> 32)
		if curTop != top {
			t.collisions.Add(1)
		}
		return NodeIndex(uint32(cur))
	}
}

// LookupPosition returns the canonical index for hash, if any.
func (t *TranspositionTable) LookupPosition(hash uint64) (NodeIndex, bool) {
	t.lookups.Add(1)
	bucket := hash & t.sizeMask
	cur := t.entries[bucket].Load()
	if cur == 0 {
		return NullNode, false
	}
	top := uint32(hash >> 32)
	if uint32(cur>>32) != top {
		return NullNode, false
	}
	t.hits.Add(1)
	return NodeIndex(uint32(cur)), true
}

// errTranspositionExhausted signals that a linked node's cursor has caught
// up to its root's current subtree size; the caller (dispatch) must treat
// the node as a fresh leaf needing its own evaluator call. Materialization
// (which clears TranspositionRootIndex) has already happened by the time
// this is returned.
var errTranspositionExhausted = errors.New("mcts: transposition root exhausted, materialized")

// TreeIndex wraps a NodeStore and TranspositionTable with the navigation
// and linking operations spec §4.2 describes. It is the teacher's GameNode
// wrapper translated from pointer/move/parent fields to operations over
// arena indices.
type TreeIndex struct {
	store    *NodeStore
	tt       *TranspositionTable
	source   chessmove.PositionSource
}

// NewTreeIndex builds a TreeIndex over store, using source for hashing new
// positions during transposition linking.
func NewTreeIndex(store *NodeStore, tt *TranspositionTable, source chessmove.PositionSource) *TreeIndex {
	return &TreeIndex{store: store, tt: tt, source: source}
}

// Store exposes the underlying arena, for components that need raw
// access (dispatch, bestmove, debug checks).
func (ti *TreeIndex) Store() *NodeStore { return ti.store }

// LinkOrClaim is called exactly once, right after a brand-new node idx has
// been allocated for position pos: it registers idx as the canonical owner
// of pos's hash, or discovers an existing canonical owner and links idx to
// it. Returns true if idx became linked (transpositionRootIndex set, no
// evaluation requested), false if idx is now itself canonical and must be
// evaluated normally.
func (ti *TreeIndex) LinkOrClaim(idx NodeIndex, pos chessmove.Position) bool {
	hash := ti.source.Hash(pos)
	canonical := ti.tt.RecordPosition(hash, idx)
	if canonical == idx {
		return false
	}
	rec := ti.store.NodeAt(idx)
	rec.mu.Lock()
	rec.TranspositionRootIndex = canonical
	rec.mu.Unlock()
	return true
}

// subtreeSize returns 1 + the number of expanded descendants of root,
// counted by the same depth-first left-to-right-by-slot walk
// nthDFSNode uses, so the two stay consistent (Open Question 3, SPEC_FULL §9).
func (ti *TreeIndex) subtreeSize(root NodeIndex) uint32 {
	var count uint32
	ti.walkDFS(root, func(NodeIndex) bool {
		count++
		return true
	})
	return count
}

// nthDFSNode returns the node at position n (0-indexed) of root's
// depth-first, left-to-right-by-slot traversal (root itself is index 0),
// or false if the subtree has fewer than n+1 nodes.
func (ti *TreeIndex) nthDFSNode(root NodeIndex, n uint32) (NodeIndex, bool) {
	var i uint32
	var found NodeIndex
	ok := false
	ti.walkDFS(root, func(idx NodeIndex) bool {
		if i == n {
			found = idx
			ok = true
			return false
		}
		i++
		return true
	})
	return found, ok
}

// walkDFS performs an iterative, explicit-stack depth-first left-to-right
// walk over root's expanded descendants (Open Question 3's chosen order),
// calling visit(idx) for each node including root; visit returns false to
// stop early.
func (ti *TreeIndex) walkDFS(root NodeIndex, visit func(NodeIndex) bool) {
	stack := []NodeIndex{root}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(idx) {
			return
		}
		rec := ti.store.NodeAt(idx)
		rec.mu.Lock()
		start := rec.childStart
		expanded := rec.NumChildrenExpanded
		rec.mu.Unlock()
		if expanded == 0 {
			continue
		}
		// Push in reverse so the lowest slot index is popped (visited)
		// first, preserving left-to-right order.
		for i := int(expanded) - 1; i >= 0; i-- {
			e := ti.store.EdgeAt(start, uint16(i))
			if e.ExpandedChildIndex != NullNode {
				stack = append(stack, e.ExpandedChildIndex)
			}
		}
	}
}

// NextTranspositionValue advances linkedIdx's extraction cursor and
// returns the next (V, MPosition) pair drawn from its canonical root's
// subtree. If the cursor has caught up to the root's current subtree
// size, it materializes linkedIdx (copying the root's unexpanded children
// into linkedIdx's own edge block and clearing the link) and returns
// errTranspositionExhausted so the caller treats linkedIdx as a fresh leaf
// needing its own evaluator call.
func (ti *TreeIndex) NextTranspositionValue(linkedIdx NodeIndex) (v, m float32, err error) {
	rec := ti.store.NodeAt(linkedIdx)
	rec.mu.Lock()
	root := rec.TranspositionRootIndex
	cursor := rec.NumNodesTranspositionExtracted
	rec.mu.Unlock()

	if root == NullNode {
		return 0, 0, fmt.Errorf("mcts: NextTranspositionValue called on unlinked node %d", linkedIdx)
	}

	size := ti.subtreeSize(root)
	if cursor >= size {
		if err := ti.MaterializeLink(linkedIdx); err != nil {
			return 0, 0, err
		}
		return 0, 0, errTranspositionExhausted
	}

	drawFrom, ok := ti.nthDFSNode(root, cursor)
	if !ok {
		if err := ti.MaterializeLink(linkedIdx); err != nil {
			return 0, 0, err
		}
		return 0, 0, errTranspositionExhausted
	}

	source := ti.store.NodeAt(drawFrom)
	source.mu.Lock()
	v, m = source.V, source.MPosition
	source.mu.Unlock()

	rec.mu.Lock()
	rec.NumNodesTranspositionExtracted++
	rec.mu.Unlock()
	return v, m, nil
}

// MaterializeLink copies root's unexpanded children into linkedIdx's own
// edge block and clears linkedIdx's transposition link, per spec §4.2.
// Idempotent: if linkedIdx is not (or no longer) linked, this is a no-op,
// satisfying property P6 (materialization called twice yields the same
// tree).
func (ti *TreeIndex) MaterializeLink(linkedIdx NodeIndex) error {
	linked := ti.store.NodeAt(linkedIdx)

	linked.mu.Lock()
	root := linked.TranspositionRootIndex
	if root == NullNode {
		linked.mu.Unlock()
		return nil
	}
	linked.mu.Unlock()

	rootRec := ti.store.NodeAt(root)
	rootRec.mu.Lock()
	numUnexpanded := rootRec.NumPolicyMoves - rootRec.NumChildrenExpanded
	rootStart := rootRec.childStart
	type desc struct {
		move chessmove.EncodedMove
		p    float32
	}
	descs := make([]desc, 0, numUnexpanded)
	for i := rootRec.NumChildrenExpanded; i < rootRec.NumPolicyMoves; i++ {
		e := ti.store.EdgeAt(rootStart, i)
		descs = append(descs, desc{e.Move, e.P})
	}
	rootRec.mu.Unlock()

	var offset childOffset
	var err error
	if len(descs) > 0 {
		offset, err = ti.store.AllocateChildren(uint16(len(descs)))
		if err != nil {
			return err
		}
		for i, d := range descs {
			e := ti.store.EdgeAt(offset, uint16(i))
			e.Move = d.move
			e.P = d.p
			e.ExpandedChildIndex = NullNode
		}
	} else {
		offset = childrenNone
	}

	linked.mu.Lock()
	defer linked.mu.Unlock()
	if linked.TranspositionRootIndex == NullNode {
		// Raced with another materialization; already done, discard our
		// freshly allocated (now orphaned) edge block and stay idempotent.
		return nil
	}
	linked.childStart = offset
	linked.NumPolicyMoves = uint16(len(descs))
	linked.NumChildrenExpanded = 0
	linked.NumChildrenVisited = 0
	linked.SumPVisited = 0
	linked.TranspositionRootIndex = NullNode
	linked.NumNodesTranspositionExtracted = 0
	return nil
}

// MaterializeAllTranspositionLinks walks every allocated node and
// materializes any that are still transposition-linked. The search
// manager must only call this when selection is paused, mirroring the
// teacher's "exclusive access guaranteed" discipline for
// SetSingleThreadedMode.
func (ti *TreeIndex) MaterializeAllTranspositionLinks() error {
	n := ti.store.NodeCount()
	materialized := 0
	for i := uint32(1); i <= n; i++ {
		idx := NodeIndex(i)
		rec := ti.store.NodeAt(idx)
		rec.mu.Lock()
		linked := rec.TranspositionRootIndex != NullNode
		rec.mu.Unlock()
		if !linked {
			continue
		}
		if err := ti.MaterializeLink(idx); err != nil {
			return err
		}
		materialized++
	}
	log.Debug().Int("materialized", materialized).Msg("materialize-all-transposition-links")
	return nil
}
