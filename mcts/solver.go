package mcts

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"

	"github.com/domino14/puctcore/chessmove"
	"github.com/domino14/puctcore/engineconfig"
	"github.com/domino14/puctcore/searchlimit"
	"github.com/domino14/puctcore/searchstats"
)

// ttMemoryFraction is how much of total system memory the transposition
// table is allowed to claim, the same knob shape as the teacher's
// ttable.Reset(fractionOfMemory) — smaller here since this table stores
// one 8-byte bucket per entry rather than a 16-byte TableEntry.
const ttMemoryFraction = 0.05

const ttEntrySize = 8

// Solver is the driver-facing orchestrator tying NodeStore, TreeIndex,
// the Selectors, and the Dispatcher together (spec §6's newSearch/step/
// best/stop), in the shape of the teacher's endgame/negamax.Solver: a
// long-lived object configured once, handed a position per call, run
// under a cancellable context.Context.
type Solver struct {
	source    PositionSource
	evaluator Evaluator
	cfg       engineconfig.Config
}

// NewSolver builds a Solver over source (move generation) and evaluator
// (the neural network), using cfg for every tunable.
func NewSolver(source PositionSource, evaluator Evaluator, cfg engineconfig.Config) *Solver {
	return &Solver{source: source, evaluator: evaluator, cfg: cfg}
}

// SearchHandle is one in-progress search (spec §6). It owns its own
// NodeStore/TreeIndex, so multiple searches (e.g. analyzing two
// candidate positions) never share an arena. It carries a uuid.UUID the
// way the teacher's mechanics.XWordGame tags every game instance with one
// (assigned once at construction, exposed by ID()) — the correlation
// handle a log line needs when several searches run concurrently.
type SearchHandle struct {
	id         uuid.UUID
	store      *NodeStore
	tree       *TreeIndex
	dispatcher *Dispatcher
	rootIdx    NodeIndex
	rootPos    Position
	cfg        engineconfig.Config

	limit         searchlimit.SearchLimit
	startTime     time.Time
	batchesRun    int
	stopRequested bool
}

// SearchProgress is returned by Step, reporting how the search is tracking
// against its SearchLimit.
type SearchProgress struct {
	NodesSearched uint32
	BatchesRun    int
	Elapsed       time.Duration
	StopRequested bool
}

// NewSearch allocates a fresh arena sized per cfg.Store (optionally
// expanded per limit.SearchCanBeExpanded), seeds the root from rootPos
// and history (depthInTree starts at len(history), spec §3's "seeded from
// prior history"), and restricts root expansion to limit.SearchMoves if
// given (spec §8's searchMoves boundary behavior). It does not run any
// batches itself; call Step to advance.
func (s *Solver) NewSearch(ctx context.Context, rootPos Position, history []EncodedMove, limit searchlimit.SearchLimit) (*SearchHandle, error) {
	cfg := s.cfg
	cfg.Store.CanBeExpanded = cfg.Store.CanBeExpanded || limit.SearchCanBeExpanded

	store := NewNodeStore(cfg.Store.NodeCapacity, cfg.Store.EdgeCapacity, cfg.Store.MaxPolicyMovesPerNode, cfg.Store.CanBeExpanded)
	tt := NewTranspositionTable(ttSizePower(ttMemoryFraction))
	tree := NewTreeIndex(store, tt, s.source)

	rootIdx, err := store.AllocateNode()
	if err != nil {
		return nil, err
	}
	if rootIdx != 1 {
		log.Warn().Uint32("root-index", uint32(rootIdx)).Msg("root did not land at arena index 1")
	}

	root := store.NodeAt(rootIdx)
	root.mu.Lock()
	root.ParentIndex = NullNode
	root.PriorMove = chessmove.NullMove
	root.DepthInTree = uint16(len(history))
	root.mu.Unlock()

	legalMoves := s.source.LegalMoves(rootPos)
	if terminal, result := s.source.Outcome(rootPos, legalMoves); terminal {
		root.mu.Lock()
		root.Terminal = result
		root.childStart = childrenNone
		root.mu.Unlock()
	}

	selectors := make([]*Selector, cfg.Search.NumSelectors)
	for i := range selectors {
		selectors[i] = NewSelector(i, tree, s.source, cfg.PUCT)
	}

	dispatcher := NewDispatcher(tree, s.source, s.evaluator, selectors, cfg.Search)
	dispatcher.rootIdx = rootIdx
	if len(limit.SearchMoves) > 0 {
		filter := make(map[chessmove.EncodedMove]bool, len(limit.SearchMoves))
		for _, uci := range limit.SearchMoves {
			mv, err := chessmove.ParseUCI(uci)
			if err != nil {
				return nil, fmt.Errorf("mcts: invalid searchmoves entry %q: %w", uci, err)
			}
			filter[mv] = true
		}
		dispatcher.searchMovesFilter = filter
	}

	return &SearchHandle{
		id:         uuid.New(),
		store:      store,
		tree:       tree,
		dispatcher: dispatcher,
		rootIdx:    rootIdx,
		rootPos:    rootPos,
		cfg:        cfg,
		limit:      limit,
		startTime:  time.Now(),
	}, nil
}

// Step advances the search by one batch (spec §6's step(handle)): a full
// selection/evaluation/backup cycle across every selector. It polls the
// handle's cooperative stop flag first, matching spec §5's "a shared
// stopRequested flag is polled by ... the dispatcher before issuing the
// next evaluator call".
func (h *SearchHandle) Step(ctx context.Context) (SearchProgress, error) {
	progress := SearchProgress{
		NodesSearched: h.store.NodeAt(h.rootIdx).N,
		BatchesRun:    h.batchesRun,
		Elapsed:       time.Since(h.startTime),
		StopRequested: h.stopRequested,
	}
	if h.stopRequested {
		return progress, nil
	}

	if err := h.dispatcher.RunBatch(ctx, h.rootIdx, h.rootPos); err != nil {
		return progress, err
	}
	h.batchesRun++

	root := h.store.NodeAt(h.rootIdx)
	nodes := root.N
	progress = SearchProgress{
		NodesSearched: nodes,
		BatchesRun:    h.batchesRun,
		Elapsed:       time.Since(h.startTime),
	}

	if h.limitReached(progress) {
		h.stopRequested = true
		progress.StopRequested = true
	}
	return progress, nil
}

func (h *SearchHandle) limitReached(p SearchProgress) bool {
	switch h.limit.Type {
	case searchlimit.NodesPerMove, searchlimit.NodesForAllMoves:
		return float64(p.NodesSearched) >= h.limit.ConvertedGameToMoveLimit().Value
	case searchlimit.SecondsPerMove, searchlimit.SecondsForAllMoves:
		return p.Elapsed.Seconds() >= h.limit.ConvertedGameToMoveLimit().Value
	default:
		return false
	}
}

// Best returns the search's current BestMoveInfo (spec §6's best(handle)),
// valid to call at any point, not only after Stop.
func (h *SearchHandle) Best() (BestMoveInfo, error) {
	return ChooseBestMove(h.store, h.rootIdx, h.cfg.PUCT)
}

// RootConfidence reports a confidenceInterval-percent band around the
// root's Q, the search-manager "confidence band" searchstats.ZValue backs
// (the teacher's stats.ZVal is used the same way to annotate a win-rate
// estimate when logging simulation progress). Width collapses to 0 before
// the root has accumulated its second visit (searchstats.Accumulator's
// variance, like the teacher's RunningStat, needs at least two samples).
func (h *SearchHandle) RootConfidence(confidenceInterval float64) (low, high float64) {
	root := h.store.NodeAt(h.rootIdx)
	root.mu.Lock()
	n := root.N
	q := root.qLocked()
	variance := root.VVariance
	root.mu.Unlock()

	if n < 2 {
		return q, q
	}
	stderr := math.Sqrt(variance / float64(n))
	width := searchstats.ZValue(confidenceInterval) * stderr
	return q - width, q + width
}

// Stop requests the search halt at the next opportunity (spec §6's
// stop(handle)); in-flight batches still complete and back up normally,
// preserving invariants I1-I4 (spec §5's "no partial aborts").
func (h *SearchHandle) Stop() {
	h.stopRequested = true
}

// MaterializeAllTranspositionLinks exposes TreeIndex's bulk materialize
// operation (spec §4.2) to callers that want a fully independent tree
// before inspecting it — only safe to call when no Step is in flight,
// mirroring the teacher's "exclusive access guaranteed" discipline.
func (h *SearchHandle) MaterializeAllTranspositionLinks() error {
	return h.tree.MaterializeAllTranspositionLinks()
}

// Root exposes the root's NodeIndex and the underlying store, for tests
// and debug tooling that want to inspect the tree directly.
func (h *SearchHandle) Root() (NodeIndex, *NodeStore) {
	return h.rootIdx, h.store
}

// ID returns this search's correlation identifier, for log lines when
// several searches run concurrently.
func (h *SearchHandle) ID() uuid.UUID {
	return h.id
}

// ttSizePower picks a transposition table size (as a power of 2 bucket
// count) from a fraction of total system memory, the same shape as the
// teacher's TranspositionTable.Reset sizing but for ttEntrySize-byte
// buckets instead of 16-byte TableEntry records, and with a smaller floor
// since a chess search tree is orders of magnitude smaller than a
// Scrabble transposition table sized for a whole rack/board state space.
func ttSizePower(fractionOfMemory float64) int {
	total := memory.TotalMemory()
	desired := fractionOfMemory * (float64(total) / float64(ttEntrySize))
	power := int(math.Log2(desired))
	const floorPower = 16
	if power < floorPower {
		power = floorPower
	}
	const ceilPower = 26
	if power > ceilPower {
		power = ceilPower
	}
	return power
}
