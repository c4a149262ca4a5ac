//go:build debug

package mcts

import "github.com/rs/zerolog/log"

// checkVisitOrder is the debug-build half of Open Question 1's decision
// (SPEC_FULL §9): forbid a numChildrenVisited desync by panicking with
// ErrInconsistent the moment slot is visited out of the expected prefix
// order, the way the teacher leaves expensive verification
// (PVLine.verify()) compiled out of normal builds but available when
// chasing a correctness bug.
func checkVisitOrder(parent *NodeRecord, slot uint16) {
	parent.mu.Lock()
	expected := parent.NumChildrenVisited
	parent.mu.Unlock()
	if slot != expected {
		log.Error().Uint16("slot", slot).Uint16("expected", expected).Msg("numChildrenVisited desync")
		panic(ErrInconsistent)
	}
}
