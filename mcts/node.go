package mcts

import (
	"sync"

	"github.com/domino14/puctcore/chessmove"
	"github.com/domino14/puctcore/searchstats"
)

// NodeIndex is a 32-bit handle into the node arena. Index 0 is reserved as
// "null" (spec §3). This is the arena-plus-handle translation of the
// source's "raw pointer into a fixed array" design (spec §9): a
// NodeIndex is a zero-cost index, not a pointer, so it stays valid across
// the store's copy-and-swap growth.
type NodeIndex uint32

// NullNode is the reserved null index.
const NullNode NodeIndex = 0

// childOffset addresses a contiguous run in the edge arena. 0 means
// uninitialized, -1 means "proven no children", >0 is the start offset —
// exactly spec §3's childStartIndex encoding.
type childOffset int32

const (
	childrenUninitialized childOffset = 0
	childrenNone          childOffset = -1
)

// NodeRecord is one arena slot (spec §3). Mutating fields (N, W, the
// running aggregates, nInFlight0/1, and the one-time expansion fields) are
// guarded by mu, in the manner of the teacher's xionghan-derived per-node
// mutex rather than a lock-free scheme — spec §5 explicitly allows "atomic
// operations or a per-node lock", and Go has no atomic float64 add, so a
// mutex is the natural fit here. Everything else is written exactly once
// during expansion and is read-only afterward, so it is read without
// holding mu.
type NodeRecord struct {
	mu sync.Mutex

	ParentIndex NodeIndex
	PriorMove   chessmove.EncodedMove
	priorPHalf  uint16 // packed float16; see PriorP/SetPriorP

	V         float32
	WinP      float32
	DrawP     float32
	LossP     float32
	MPosition float32

	N uint32
	W float64

	WAvg      float64
	DAvg      float64
	LAvg      float64
	MAvg      float64
	VVariance float64

	// Running Welford accumulators backing WAvg/VVariance, DAvg, LAvg and
	// MAvg, lazily created on first backup. Grounded on the teacher's
	// montecarlo.Statistic, generalized to searchstats.Accumulator so the
	// same incremental mean/variance machinery covers value, draw-rate,
	// loss-rate and moves-left instead of one single per-move statistic.
	vAcc, dAcc, lAcc, mAcc *searchstats.Accumulator

	nInFlight0 int32
	nInFlight1 int32

	childStart          childOffset
	NumPolicyMoves      uint16
	NumChildrenVisited  uint16
	NumChildrenExpanded uint16
	SumPVisited         float32

	Terminal chessmove.TerminalResult

	TranspositionRootIndex         NodeIndex
	NumNodesTranspositionExtracted uint32

	DepthInTree uint16
}

// PriorP returns the node's policy prior, unpacked from its float16
// storage.
func (n *NodeRecord) PriorP() float32 {
	return unpackFloat16(n.priorPHalf)
}

// SetPriorP packs and stores the node's policy prior. Called exactly once,
// at expansion time.
func (n *NodeRecord) SetPriorP(p float32) {
	n.priorPHalf = packFloat16(p)
}

// IsTerminal reports whether the node is a finished game position.
func (n *NodeRecord) IsTerminal() bool {
	return n.Terminal != chessmove.NonTerminal
}

// IsTranspositionLinked reports whether this node currently borrows its
// value from another subtree (invariant I5: a linked node has no expanded
// children of its own).
func (n *NodeRecord) IsTranspositionLinked() bool {
	return n.TranspositionRootIndex != NullNode
}

// ChildStartInitialized reports whether the node's edge block has been
// allocated (childStartIndex != 0, spec invariant I6).
func (n *NodeRecord) ChildStartInitialized() bool {
	return n.childStart != childrenUninitialized
}

// HasNoChildren reports the childStartIndex == -1 "proven no children"
// state (a terminal node, or a non-terminal node whose evaluator call
// returned zero legal-move priors — shouldn't happen for a non-terminal
// position, but the encoding allows for it).
func (n *NodeRecord) HasNoChildren() bool {
	return n.childStart == childrenNone
}

// Q returns the node's mean backed-up value from its own side-to-move's
// perspective: W / N, or 0 if unvisited.
func (n *NodeRecord) Q() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.qLocked()
}

func (n *NodeRecord) qLocked() float64 {
	if n.N == 0 {
		return 0
	}
	return n.W / float64(n.N)
}

// pushAggregatesLocked folds one more backed-up sample into the node's
// running WAvg/DAvg/LAvg/MAvg/VVariance aggregates. Caller must hold mu.
func (n *NodeRecord) pushAggregatesLocked(v, drawP, lossP, movesLeft float64) {
	if n.vAcc == nil {
		n.vAcc = &searchstats.Accumulator{}
		n.dAcc = &searchstats.Accumulator{}
		n.lAcc = &searchstats.Accumulator{}
		n.mAcc = &searchstats.Accumulator{}
	}
	n.vAcc.Push(v)
	n.WAvg = n.vAcc.Mean()
	n.VVariance = n.vAcc.Variance()
	n.dAcc.Push(drawP)
	n.DAvg = n.dAcc.Mean()
	n.lAcc.Push(lossP)
	n.LAvg = n.lAcc.Mean()
	n.mAcc.Push(movesLeft)
	n.MAvg = n.mAcc.Mean()
}

// nInFlightLocked returns the reserved-visit count for selectorID (0 or 1).
func (n *NodeRecord) nInFlightLocked(selectorID int) int32 {
	if selectorID == 0 {
		return n.nInFlight0
	}
	return n.nInFlight1
}

func (n *NodeRecord) addInFlightLocked(selectorID int, delta int32) {
	if selectorID == 0 {
		n.nInFlight0 += delta
	} else {
		n.nInFlight1 += delta
	}
}

// EdgeSlot is one entry in the parallel child-edge arena (spec §3).
type EdgeSlot struct {
	Move               chessmove.EncodedMove
	P                  float32
	ExpandedChildIndex NodeIndex
}
