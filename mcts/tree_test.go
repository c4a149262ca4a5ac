package mcts

import (
	"testing"

	"github.com/matryer/is"

	"github.com/domino14/puctcore/chessmove"
)

// stubSource is a minimal chessmove.PositionSource for tree-level tests
// that don't need real chess rules: every position hashes to a value the
// caller controls by tagging it in HalfmoveClock, and MakeMove/LegalMoves
// are never exercised by these tests.
type stubSource struct{}

func (stubSource) LegalMoves(pos chessmove.Position) []chessmove.EncodedMove { return nil }
func (stubSource) MakeMove(pos chessmove.Position, mv chessmove.EncodedMove) chessmove.Position {
	return pos
}
func (stubSource) Hash(pos chessmove.Position) uint64 { return uint64(pos.HalfmoveClock) }
func (stubSource) Outcome(pos chessmove.Position, legalMoves []chessmove.EncodedMove) (bool, chessmove.TerminalResult) {
	return false, chessmove.NonTerminal
}

func TestTranspositionTableInsertOnceFirstWins(t *testing.T) {
	is := is.New(t)
	tt := NewTranspositionTable(8)

	canonical := tt.RecordPosition(42, NodeIndex(1))
	is.Equal(canonical, NodeIndex(1))

	// A second node claiming the same hash must link to the first.
	linked := tt.RecordPosition(42, NodeIndex(2))
	is.Equal(linked, NodeIndex(1))

	found, ok := tt.LookupPosition(42)
	is.True(ok)
	is.Equal(found, NodeIndex(1))
}

func TestTranspositionTableLookupMiss(t *testing.T) {
	is := is.New(t)
	tt := NewTranspositionTable(8)
	_, ok := tt.LookupPosition(999)
	is.True(!ok)
}

func TestLinkOrClaim(t *testing.T) {
	is := is.New(t)
	store := NewNodeStore(10, 10, 8, false)
	tt := NewTranspositionTable(8)
	tree := NewTreeIndex(store, tt, stubSource{})

	idx1, _ := store.AllocateNode()
	pos1 := chessmove.Position{HalfmoveClock: 7}
	linked1 := tree.LinkOrClaim(idx1, pos1)
	is.True(!linked1) // first claimant becomes canonical

	idx2, _ := store.AllocateNode()
	pos2 := chessmove.Position{HalfmoveClock: 7} // same hash
	linked2 := tree.LinkOrClaim(idx2, pos2)
	is.True(linked2)

	rec2 := store.NodeAt(idx2)
	is.Equal(rec2.TranspositionRootIndex, idx1)
	is.True(rec2.IsTranspositionLinked())
}

func TestMaterializeLinkIsIdempotent(t *testing.T) {
	is := is.New(t)
	store := NewNodeStore(10, 10, 8, false)
	tt := NewTranspositionTable(8)
	tree := NewTreeIndex(store, tt, stubSource{})

	root, _ := store.AllocateNode()
	rootRec := store.NodeAt(root)
	offset, err := store.AllocateChildren(2)
	is.NoErr(err)
	e0 := store.EdgeAt(offset, 0)
	e0.Move = chessmove.NewEncodedMove(0, 1, chessmove.PromoNone, 0)
	e0.P = 0.6
	e1 := store.EdgeAt(offset, 1)
	e1.Move = chessmove.NewEncodedMove(0, 2, chessmove.PromoNone, 0)
	e1.P = 0.4
	rootRec.childStart = offset
	rootRec.NumPolicyMoves = 2
	rootRec.NumChildrenExpanded = 0

	linkedIdx, _ := store.AllocateNode()
	linked := store.NodeAt(linkedIdx)
	linked.TranspositionRootIndex = root

	is.NoErr(tree.MaterializeLink(linkedIdx))
	is.Equal(linked.TranspositionRootIndex, NullNode)
	is.Equal(linked.NumPolicyMoves, uint16(2))

	// Calling again on an already-materialized node must be a no-op
	// (property P6), not a second, divergent edge block.
	firstOffset := linked.childStart
	is.NoErr(tree.MaterializeLink(linkedIdx))
	is.Equal(linked.childStart, firstOffset)
}

func TestWalkDFSOrderMatchesSubtreeSize(t *testing.T) {
	is := is.New(t)
	store := NewNodeStore(10, 10, 8, false)
	tt := NewTranspositionTable(8)
	tree := NewTreeIndex(store, tt, stubSource{})

	root, _ := store.AllocateNode()
	rootRec := store.NodeAt(root)
	offset, _ := store.AllocateChildren(2)
	childA, _ := store.AllocateNode()
	childB, _ := store.AllocateNode()
	store.EdgeAt(offset, 0).ExpandedChildIndex = childA
	store.EdgeAt(offset, 1).ExpandedChildIndex = childB
	rootRec.childStart = offset
	rootRec.NumChildrenExpanded = 2

	is.Equal(tree.subtreeSize(root), uint32(3))

	n0, ok := tree.nthDFSNode(root, 0)
	is.True(ok)
	is.Equal(n0, root)
	n1, ok := tree.nthDFSNode(root, 1)
	is.True(ok)
	is.Equal(n1, childA)
	n2, ok := tree.nthDFSNode(root, 2)
	is.True(ok)
	is.Equal(n2, childB)

	_, ok = tree.nthDFSNode(root, 3)
	is.True(!ok)
}
