package mcts

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// NodeStore is the dense, append-only arena of node records and a parallel
// arena of child-edge slots (spec §4.1). Allocation is a lock-free
// fetch-and-add counter, directly grounded on the teacher's WorkDeque
// atomic bottom/top counters and on TranspositionTable's atomic hit/miss
// counters for the general style of "sync/atomic counters, no mutex on the
// hot path". Growth (triggered only when growable and capacity is
// reached) is a stop-the-world copy-and-swap, grounded on
// TranspositionTable.Reset's "rebuild the backing array, swap it in"
// shape, gated by the same kind of "exclusive access guaranteed" discipline
// the teacher documents for SetSingleThreadedMode.
//
// Node indices remain valid across growth: a NodeIndex is a position, not
// a pointer, so copying the backing array into a larger one never
// invalidates an index already handed out.
type NodeStore struct {
	nodes atomic.Pointer[[]*NodeRecord]
	edges atomic.Pointer[[]EdgeSlot]

	nextNode atomic.Uint32
	nextEdge atomic.Uint32

	growMu    sync.Mutex
	canExpand bool

	maxPolicyMovesPerNode uint16
}

// NewNodeStore preallocates a node arena and edge arena of the given
// capacities (index/offset 0 reserved in each), optionally allowed to grow
// under load if canExpand is set.
func NewNodeStore(nodeCapacity, edgeCapacity uint32, maxPolicyMovesPerNode uint16, canExpand bool) *NodeStore {
	s := &NodeStore{
		canExpand:             canExpand,
		maxPolicyMovesPerNode: maxPolicyMovesPerNode,
	}

	nodes := make([]*NodeRecord, nodeCapacity+1)
	nodes[0] = &NodeRecord{}
	s.nodes.Store(&nodes)

	edges := make([]EdgeSlot, edgeCapacity+1)
	s.edges.Store(&edges)

	s.nextNode.Store(0)
	s.nextEdge.Store(0)
	return s
}

// MaxPolicyMovesPerNode is the implementation cap on numPolicyMoves.
func (s *NodeStore) MaxPolicyMovesPerNode() uint16 {
	return s.maxPolicyMovesPerNode
}

// AllocateNode returns a fresh NodeIndex with a zero-valued record already
// published, or ErrStoreExhausted if capacity is reached and the store
// cannot grow.
func (s *NodeStore) AllocateNode() (NodeIndex, error) {
	for {
		idx := s.nextNode.Add(1)
		nodes := *s.nodes.Load()
		if int(idx) < len(nodes) {
			nodes[idx] = &NodeRecord{}
			return NodeIndex(idx), nil
		}
		if !s.canExpand {
			return NullNode, fmt.Errorf("%w: node arena (cap %d)", ErrStoreExhausted, len(nodes)-1)
		}
		s.growNodes(idx + 1)
		// Loop: re-check against the (possibly now-larger) arena. Another
		// goroutine may have already grown it past idx.
		nodes = *s.nodes.Load()
		if int(idx) < len(nodes) {
			nodes[idx] = &NodeRecord{}
			return NodeIndex(idx), nil
		}
		return NullNode, fmt.Errorf("%w: node arena grow failed (cap %d)", ErrStoreExhausted, len(nodes)-1)
	}
}

// AllocateChildren reserves count contiguous edge slots and returns their
// start offset, or ErrStoreExhausted.
func (s *NodeStore) AllocateChildren(count uint16) (childOffset, error) {
	if count == 0 {
		return childrenNone, nil
	}
	for {
		start := s.nextEdge.Add(uint32(count)) - uint32(count) + 1
		edges := *s.edges.Load()
		end := int(start) + int(count)
		if end <= len(edges) {
			return childOffset(start), nil
		}
		if !s.canExpand {
			return 0, fmt.Errorf("%w: edge arena (cap %d)", ErrStoreExhausted, len(edges)-1)
		}
		s.growEdges(uint32(end))
		edges = *s.edges.Load()
		if end <= len(edges) {
			return childOffset(start), nil
		}
		return 0, fmt.Errorf("%w: edge arena grow failed (cap %d)", ErrStoreExhausted, len(edges)-1)
	}
}

// NodeAt returns the record at idx. idx must be non-null and previously
// allocated by this store.
func (s *NodeStore) NodeAt(idx NodeIndex) *NodeRecord {
	nodes := *s.nodes.Load()
	return nodes[idx]
}

// EdgeAt returns a pointer to the edge slot at offset+i within the arena.
func (s *NodeStore) EdgeAt(start childOffset, i uint16) *EdgeSlot {
	edges := *s.edges.Load()
	return &edges[int(start)+int(i)]
}

func (s *NodeStore) growNodes(minLen uint32) {
	s.growMu.Lock()
	defer s.growMu.Unlock()
	cur := *s.nodes.Load()
	if uint32(len(cur)) > minLen {
		return
	}
	newCap := uint32(len(cur)) * 2
	if newCap <= minLen {
		newCap = minLen + 1
	}
	grown := make([]*NodeRecord, newCap)
	copy(grown, cur)
	log.Debug().Uint32("old-cap", uint32(len(cur))).Uint32("new-cap", newCap).Msg("node-store-grown")
	s.nodes.Store(&grown)
}

func (s *NodeStore) growEdges(minLen uint32) {
	s.growMu.Lock()
	defer s.growMu.Unlock()
	cur := *s.edges.Load()
	if uint32(len(cur)) > minLen {
		return
	}
	newCap := uint32(len(cur)) * 2
	if newCap <= minLen {
		newCap = minLen + 1
	}
	grown := make([]EdgeSlot, newCap)
	copy(grown, cur)
	log.Debug().Uint32("old-cap", uint32(len(cur))).Uint32("new-cap", newCap).Msg("edge-store-grown")
	s.edges.Store(&grown)
}

// NodeCount returns the number of nodes allocated so far (excluding the
// reserved null slot).
func (s *NodeStore) NodeCount() uint32 {
	n := s.nextNode.Load()
	nodes := *s.nodes.Load()
	if n >= uint32(len(nodes)) {
		return uint32(len(nodes)) - 1
	}
	return n
}
