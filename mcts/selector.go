package mcts

import (
	"math"

	"github.com/domino14/puctcore/engineconfig"
)

// Selector descends from the root to a leaf using the PUCT rule (spec
// §4.3), reserving virtual-loss visits on every node it passes through so
// that a second selector running concurrently tends to explore a
// different path. Grounded primarily on
// other_examples/H1W0XXX-xionghan's selectChildPUCT (the
// Q + Cpuct*P*sqrt(N)/(1+n) shape), generalized to the fuller formula spec
// §4.3 specifies (cpuct ramp, FPU with reduction, root-vs-interior
// exponents). Virtual-loss bookkeeping is grounded on the teacher's
// ABDADATable ("another thread claims this subtree, look elsewhere for a
// while") and WorkDeque's lock-free reservation style, translated here to
// the per-node mutex NodeRecord already uses.
type Selector struct {
	id     int
	tree   *TreeIndex
	source PositionSource
	cfg    engineconfig.PUCTConfig
}

// NewSelector builds a Selector with the given id (0 or 1, spec's
// nInFlight0/nInFlight1 slots) over tree, using source for move generation
// and cfg for the PUCT constants.
func NewSelector(id int, tree *TreeIndex, source PositionSource, cfg engineconfig.PUCTConfig) *Selector {
	return &Selector{id: id, tree: tree, source: source, cfg: cfg}
}

// Descend walks from rootIdx/rootPos to a single leaf, reserving one
// virtual-loss visit on every node along the path, and returns a
// PendingLeaf describing what dispatch must do with it. It never touches
// the evaluator itself; the returned leaf's Kind tells the dispatcher what
// remains.
func (s *Selector) Descend(rootIdx NodeIndex, rootPos Position) (PendingLeaf, error) {
	const reserve = 1

	store := s.tree.Store()
	cur := rootIdx
	curPos := rootPos
	path := []NodeIndex{rootIdx}
	isRoot := true

	for {
		rec := store.NodeAt(cur)

		rec.mu.Lock()
		terminal := rec.IsTerminal()
		initialized := rec.ChildStartInitialized()
		linked := rec.IsTranspositionLinked()
		if !terminal {
			rec.addInFlightLocked(s.id, reserve)
		}
		rec.mu.Unlock()

		switch {
		case terminal:
			v := terminalValue(rec.Terminal)
			return PendingLeaf{
				Kind: leafKindTerminal, NodeIndex: cur, SelectorID: s.id,
				NumVisitsReserved: reserve, Path: path, V: v, M: 0,
			}, nil

		case linked:
			return PendingLeaf{
				Kind: leafKindTranspositionBackup, NodeIndex: cur, SelectorID: s.id,
				NumVisitsReserved: reserve, Path: path,
			}, nil

		case !initialized:
			return PendingLeaf{
				Kind: leafKindNew, NodeIndex: cur, SelectorID: s.id,
				NumVisitsReserved: reserve, Path: path, Pos: curPos,
			}, nil

		default:
			slot, err := s.pickChildSlot(rec, isRoot)
			if err != nil {
				return PendingLeaf{}, err
			}
			childIdx, childPos, err := s.ensureChildExpanded(cur, rec, slot, curPos)
			if err != nil {
				return PendingLeaf{}, err
			}
			curPos = childPos
			cur = childIdx
			path = append(path, cur)
			isRoot = false
		}
	}
}

// terminalValue maps a TerminalResult to the ±1/0 value spec §8 requires:
// a win is +1 from the terminal position's own side-to-move perspective
// (it is the side who is stuck, so "Win" here is recorded by the backup
// caller who evaluates it from the mover-into-this-position's point of
// view — see Backup's sign-flip-at-every-parent rule).
func terminalValue(t TerminalResult) float32 {
	switch t {
	case TerminalWin:
		return 1
	case TerminalLoss:
		return -1
	default:
		return 0
	}
}

// pickChildSlot scores every child slot of parent by PUCT and returns the
// winning slot index.
func (s *Selector) pickChildSlot(parent *NodeRecord, isRoot bool) (uint16, error) {
	parent.mu.Lock()
	start := parent.childStart
	numSlots := parent.NumPolicyMoves
	parentN := parent.N
	parentQ := parent.qLocked()
	sumPVisited := parent.SumPVisited
	parent.mu.Unlock()

	cpuctBase, cpuctFactor, cpuctInit := s.cfg.CpuctBaseInterior, s.cfg.CpuctFactorInterior, s.cfg.CpuctInitInterior
	denomExp := 1.0
	if isRoot {
		cpuctBase, cpuctFactor, cpuctInit = s.cfg.CpuctBaseRoot, s.cfg.CpuctFactorRoot, s.cfg.CpuctInitRoot
		denomExp = s.cfg.RootDenominatorExponent
	}
	cpuct := cpuctBase + cpuctFactor*math.Log((float64(parentN)+cpuctInit+1)/cpuctInit)
	parentTerm := math.Pow(float64(parentN), s.cfg.ParentVisitExponent)
	sqrtParentTerm := math.Sqrt(parentTerm)

	fpuReduction := s.cfg.FPUValue * math.Sqrt(math.Min(1, float64(sumPVisited)))
	fpu := parentQ - fpuReduction

	store := s.tree.Store()
	var bestSlot uint16
	bestScore := math.Inf(-1)
	for i := uint16(0); i < numSlots; i++ {
		edge := store.EdgeAt(start, i)
		var q float64
		var n uint32
		var inFlight int32
		if edge.ExpandedChildIndex != NullNode {
			child := store.NodeAt(edge.ExpandedChildIndex)
			child.mu.Lock()
			n = child.N
			inFlight = child.nInFlight0 + child.nInFlight1
			q = -child.qLocked()
			child.mu.Unlock()
		} else {
			q = fpu
		}
		u := cpuct * float64(edge.P) * sqrtParentTerm / math.Pow(float64(n)+float64(inFlight)+1, denomExp)
		score := q + u
		if score > bestScore {
			bestScore = score
			bestSlot = i
		}
	}
	return bestSlot, nil
}

// ensureChildExpanded returns the node index and move for parent's child
// slot, allocating and linking a fresh node record the first time a slot
// is chosen. Concurrent callers racing to expand the same slot converge
// on whichever one wins the CAS-style recheck under parent.mu; the loser's
// freshly allocated node is simply left unreferenced in the arena (nodes
// are never freed mid-search, so this is a harmless, bounded waste).
func (s *Selector) ensureChildExpanded(parentIdx NodeIndex, parent *NodeRecord, slot uint16, parentPos Position) (NodeIndex, Position, error) {
	store := s.tree.Store()

	parent.mu.Lock()
	start := parent.childStart
	edge := store.EdgeAt(start, slot)
	move := edge.Move
	if edge.ExpandedChildIndex != NullNode {
		existing := edge.ExpandedChildIndex
		parent.mu.Unlock()
		return existing, s.source.MakeMove(parentPos, move), nil
	}
	depth := parent.DepthInTree
	parent.mu.Unlock()

	childPos := s.source.MakeMove(parentPos, move)
	childIdx, err := store.AllocateNode()
	if err != nil {
		return NullNode, childPos, err
	}

	child := store.NodeAt(childIdx)
	child.mu.Lock()
	child.ParentIndex = parentIdx
	child.PriorMove = move
	child.SetPriorP(edge.P)
	child.DepthInTree = depth + 1
	child.mu.Unlock()

	legalMoves := s.source.LegalMoves(childPos)
	if isTerminal, result := s.source.Outcome(childPos, legalMoves); isTerminal {
		child.mu.Lock()
		child.Terminal = result
		child.childStart = childrenNone
		child.mu.Unlock()
	} else {
		// Register this brand-new position in the transposition table.
		// If it turns out to match an already-canonical position,
		// LinkOrClaim sets TranspositionRootIndex, which takes priority
		// over "new leaf" in the stopping-condition switch above.
		s.tree.LinkOrClaim(childIdx, childPos)
	}

	parent.mu.Lock()
	if edge.ExpandedChildIndex != NullNode {
		existing := edge.ExpandedChildIndex
		parent.mu.Unlock()
		return existing, childPos, nil
	}
	edge.ExpandedChildIndex = childIdx
	parent.NumChildrenExpanded++
	parent.mu.Unlock()

	return childIdx, childPos, nil
}
