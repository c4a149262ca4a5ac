package mcts

import (
	"testing"

	"github.com/matryer/is"

	"github.com/domino14/puctcore/chessmove"
	"github.com/domino14/puctcore/engineconfig"
)

func newTestSelector(tree *TreeIndex, cfg engineconfig.PUCTConfig) *Selector {
	return NewSelector(0, tree, stubSource{}, cfg)
}

func TestPickChildSlotPrefersHigherPriorWhenUnvisited(t *testing.T) {
	is := is.New(t)
	store := NewNodeStore(10, 10, 8, false)
	tt := NewTranspositionTable(8)
	tree := NewTreeIndex(store, tt, stubSource{})

	root, _ := store.AllocateNode()
	rootRec := store.NodeAt(root)
	offset, _ := store.AllocateChildren(2)
	store.EdgeAt(offset, 0).Move = chessmove.NewEncodedMove(0, 1, chessmove.PromoNone, 0)
	store.EdgeAt(offset, 0).P = 0.1
	store.EdgeAt(offset, 1).Move = chessmove.NewEncodedMove(0, 2, chessmove.PromoNone, 0)
	store.EdgeAt(offset, 1).P = 0.9
	rootRec.childStart = offset
	rootRec.NumPolicyMoves = 2
	rootRec.N = 4 // nonzero so the U term (which scales with sqrt(parentN)) isn't degenerately 0

	sel := newTestSelector(tree, engineconfig.Default().PUCT)
	slot, err := sel.pickChildSlot(rootRec, true)
	is.NoErr(err)
	is.Equal(slot, uint16(1)) // both unvisited -> FPU tie, higher prior wins via larger U term
}

func TestPickChildSlotPrefersHigherQWhenVisited(t *testing.T) {
	is := is.New(t)
	store := NewNodeStore(10, 10, 8, false)
	tt := NewTranspositionTable(8)
	tree := NewTreeIndex(store, tt, stubSource{})

	root, _ := store.AllocateNode()
	rootRec := store.NodeAt(root)
	offset, _ := store.AllocateChildren(2)
	store.EdgeAt(offset, 0).Move = chessmove.NewEncodedMove(0, 1, chessmove.PromoNone, 0)
	store.EdgeAt(offset, 0).P = 0.5
	store.EdgeAt(offset, 1).Move = chessmove.NewEncodedMove(0, 2, chessmove.PromoNone, 0)
	store.EdgeAt(offset, 1).P = 0.5
	rootRec.childStart = offset
	rootRec.NumPolicyMoves = 2
	rootRec.NumChildrenExpanded = 2
	rootRec.N = 200

	childA, _ := store.AllocateNode()
	childB, _ := store.AllocateNode()
	store.EdgeAt(offset, 0).ExpandedChildIndex = childA
	store.EdgeAt(offset, 1).ExpandedChildIndex = childB

	// From root's perspective, a child losing badly (negative Q from its
	// own side) is a great outcome for root: score negates child Q.
	recA := store.NodeAt(childA)
	recA.N = 100
	recA.W = 90 // child's own Q = +0.9 -> root sees -0.9
	recB := store.NodeAt(childB)
	recB.N = 100
	recB.W = -90 // child's own Q = -0.9 -> root sees +0.9

	sel := newTestSelector(tree, engineconfig.Default().PUCT)
	slot, err := sel.pickChildSlot(rootRec, true)
	is.NoErr(err)
	is.Equal(slot, uint16(1))
}

func TestDescendReservesVirtualLossOnNewLeaf(t *testing.T) {
	is := is.New(t)
	store := NewNodeStore(10, 10, 8, false)
	tt := NewTranspositionTable(8)
	tree := NewTreeIndex(store, tt, stubSource{})

	root, _ := store.AllocateNode()
	sel := newTestSelector(tree, engineconfig.Default().PUCT)

	leaf, err := sel.Descend(root, chessmove.Position{})
	is.NoErr(err)
	is.Equal(leaf.Kind, leafKindNew)
	is.Equal(leaf.NodeIndex, root)

	rec := store.NodeAt(root)
	rec.mu.Lock()
	inFlight := rec.nInFlightLocked(0)
	rec.mu.Unlock()
	is.Equal(inFlight, int32(1))
}

func TestDescendOnTerminalNodeReturnsTerminalValue(t *testing.T) {
	is := is.New(t)
	store := NewNodeStore(10, 10, 8, false)
	tt := NewTranspositionTable(8)
	tree := NewTreeIndex(store, tt, stubSource{})

	root, _ := store.AllocateNode()
	rec := store.NodeAt(root)
	rec.Terminal = TerminalWin
	rec.childStart = childrenNone

	sel := newTestSelector(tree, engineconfig.Default().PUCT)
	leaf, err := sel.Descend(root, chessmove.Position{})
	is.NoErr(err)
	is.Equal(leaf.Kind, leafKindTerminal)
	is.Equal(leaf.V, float32(1))

	// Terminal nodes aren't given a reserved in-flight visit (they never
	// reach the evaluator), so nInFlight stays zero.
	rec.mu.Lock()
	inFlight := rec.nInFlightLocked(0)
	rec.mu.Unlock()
	is.Equal(inFlight, int32(0))
}

// TestDescendOnTranspositionLinkedNodeReturnsTranspositionBackup pins the
// ordering regression: a freshly linked node has childStart still
// uninitialized (LinkOrClaim is only ever called right after allocation,
// before expansion), so Descend must check "linked" before "!initialized"
// or it misroutes the node down the leafKindNew path and never backs it up
// via the transposition table at all.
func TestDescendOnTranspositionLinkedNodeReturnsTranspositionBackup(t *testing.T) {
	is := is.New(t)
	store := NewNodeStore(10, 10, 8, false)
	tt := NewTranspositionTable(8)
	tree := NewTreeIndex(store, tt, stubSource{})

	canonical, _ := store.AllocateNode()
	linkedIdx, _ := store.AllocateNode()
	linked := store.NodeAt(linkedIdx)
	linked.TranspositionRootIndex = canonical
	is.True(!linked.ChildStartInitialized()) // matches the real LinkOrClaim -> Descend window

	sel := newTestSelector(tree, engineconfig.Default().PUCT)
	leaf, err := sel.Descend(linkedIdx, chessmove.Position{})
	is.NoErr(err)
	is.Equal(leaf.Kind, leafKindTranspositionBackup)
	is.Equal(leaf.NodeIndex, linkedIdx)
}
