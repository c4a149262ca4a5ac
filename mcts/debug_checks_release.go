//go:build !debug

package mcts

// checkVisitOrder is a no-op in release builds: Open Question 1's
// decision (SPEC_FULL §9) is to tolerate a numChildrenVisited desync in
// production rather than crash a search over a rare bookkeeping race,
// falling back to findChildSlot's direct linear scan as the source of
// truth instead of trusting the running counter.
func checkVisitOrder(parent *NodeRecord, slot uint16) {}
