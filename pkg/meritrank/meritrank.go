/*
The meritrank package implements the incremental walk-maintenance engine of
a Monte-Carlo personalized-PageRank variant over a signed, weighted,
directed graph ("MeritRank"). For each ego node it maintains a collection
of random walks originating at that ego and derives, for every reachable
target, a score combining positive visit frequency with negative
penalties propagated from the ego's direct negative out-edges.

Calling Calculate(ego, n) generates n fresh walks from ego. AddEdge then
keeps every ego's walks consistent with the mutated graph without
recomputing them from scratch, at the cost of a bounded statistical
perturbation relative to a full recomputation (OptimizeInvalidation).

# REFERENCES

[1] B. Bahmani, A. Chowdhury, A. Goel; "Fast Incremental and Personalized PageRank"
URL: http://snap.stanford.edu/class/cs224w-readings/bahmani10pagerank.pdf
*/
package meritrank

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/vertex-lab/meritrank/pkg/counter"
	"github.com/vertex-lab/meritrank/pkg/graph"
	"github.com/vertex-lab/meritrank/pkg/logger"
	"github.com/vertex-lab/meritrank/pkg/walkstore"
)

// ASSERT gates the debug-only consistency checks (NoPathExists in
// GetNodeScore, the visits/counters assertions after a ZP invalidation).
// It trades a bit of runtime cost for an early panic on a broken
// invariant; flip it off for a production build.
var ASSERT = true

// MeritRank orchestrates the Graph, the WalkStorage arena, and the two
// per-ego tallies (personalHits, negHits) that GetNodeScore reads from.
type MeritRank[NodeData any] struct {
	Graph *graph.Graph[NodeData]

	walks        *walkstore.WalkStorage
	personalHits map[graph.NodeId]*counter.Counter
	negHits      map[graph.NodeId]map[graph.NodeId]graph.Weight

	// Alpha is the damping/continuation probability per walk step. Walks
	// decay penalties at the alpha this MeritRank was constructed with
	// (0.85); assigning Alpha afterwards changes only the continuation
	// probability.
	Alpha graph.Weight

	// OptimizeInvalidation toggles the biased, cheaper ZP re-routing path
	// (force the first step through the new edge with the probability it
	// would naturally be taken) versus full, unbiased truncation.
	OptimizeInvalidation bool

	rng    *rand.Rand
	Logger *logger.Aggregate
}

// Rank pairs a target node with the score MeritRank assigns it from some
// ego's viewpoint.
type Rank struct {
	Node  graph.NodeId
	Score graph.Weight
}

// New returns a MeritRank wrapping g, with the default damping factor 0.85
// and its own random source seeded from the current time. It fails if g
// contains a self-loop.
func New[NodeData any](g *graph.Graph[NodeData]) (*MeritRank[NodeData], error) {
	if err := g.CheckSelfReference(); err != nil {
		return nil, err
	}

	const alpha graph.Weight = 0.85
	return &MeritRank[NodeData]{
		Graph:                g,
		walks:                walkstore.New(alpha),
		personalHits:         make(map[graph.NodeId]*counter.Counter),
		negHits:              make(map[graph.NodeId]map[graph.NodeId]graph.Weight),
		Alpha:                alpha,
		OptimizeInvalidation: true,
		rng:                  rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// NewWithRand is New, but injects rng instead of seeding one from the
// clock — callers that need deterministic, reproducible walks (tests,
// stochastic-equivalence checks) should use this constructor.
func NewWithRand[NodeData any](g *graph.Graph[NodeData], rng *rand.Rand) (*MeritRank[NodeData], error) {
	mr, err := New(g)
	if err != nil {
		return nil, err
	}
	mr.rng = rng
	mr.walks = walkstore.New(mr.Alpha)
	return mr, nil
}

// AddNode adds nodeID with the given payload to the underlying graph.
func (mr *MeritRank[NodeData]) AddNode(nodeID graph.NodeId, data NodeData) {
	mr.Graph.AddNode(nodeID, data)
}

// GetNodeData returns the payload stored for nodeID.
func (mr *MeritRank[NodeData]) GetNodeData(nodeID graph.NodeId) (NodeData, error) {
	return mr.Graph.GetNodeData(nodeID)
}

// EdgeWeight returns the weight of src --> dst, and whether it exists.
func (mr *MeritRank[NodeData]) EdgeWeight(src, dst graph.NodeId) (graph.Weight, bool) {
	return mr.Graph.EdgeWeight(src, dst)
}

// PersonalHits returns the raw hit counter for ego, the collaborating
// cache/LRU layer's read surface onto the positive side of the score.
func (mr *MeritRank[NodeData]) PersonalHits(ego graph.NodeId) *counter.Counter {
	return mr.personalHits[ego]
}

// NegHits returns ego's target -> penalty-sum table, the collaborating
// layer's read surface onto the negative side of the score.
func (mr *MeritRank[NodeData]) NegHits(ego graph.NodeId) map[graph.NodeId]graph.Weight {
	return mr.negHits[ego]
}

// NeighborsWeighted returns node's out-neighbors matching mode, along with
// their weights. A thin wrapper over the package-level function of the
// same name, exposed on MeritRank because callers already hold one of
// these more often than they hold the bare Graph.
func (mr *MeritRank[NodeData]) NeighborsWeighted(node graph.NodeId, mode Neighbors) map[graph.NodeId]graph.Weight {
	return NeighborsWeighted(mr.Graph, node, mode)
}

// DebugWalks renders every walk currently stored in the arena, one per
// line, regardless of which ego it belongs to.
func (mr *MeritRank[NodeData]) DebugWalks() string {
	return mr.walks.DebugString()
}

// AssertConsistency runs every debug-only consistency check AddEdge
// itself gates behind ASSERT: the walks/visits invariant and every ego's
// personal-hits non-negativity. Exposed so callers can run it
// independently of an AddEdge call, e.g. from a test or a debug endpoint.
func (mr *MeritRank[NodeData]) AssertConsistency() {
	mr.walks.AssertVisitsConsistency()
	mr.assertCountersNonNegative()
}

// Calculate drops any existing walks from ego, then performs numWalks
// fresh random walks from it, folding their visited nodes into
// personalHits[ego] and their negative-sink exposure into negHits[ego].
func (mr *MeritRank[NodeData]) Calculate(ego graph.NodeId, numWalks int) error {
	if !mr.Graph.ContainsNode(ego) {
		return ErrNodeDoesNotExist
	}

	mr.walks.DropWalksFromNode(ego)

	negs := NeighborsWeighted(mr.Graph, ego, Negative)
	mr.personalHits[ego] = counter.New()

	for i := 0; i < numWalks; i++ {
		walkID := mr.walks.GetNextFreeWalkId()
		if err := mr.performWalk(walkID, ego); err != nil {
			return err
		}

		w := mr.walks.GetWalk(walkID)
		mr.personalHits[ego].IncrementUniqueCounts(w.Nodes())
		updateNegativeHits(mr.negHits, w, negs, false)
		mr.walks.AddWalkToBookkeeping(walkID, 0)
	}

	mr.Logger.Info("calculate: ego=%d walks=%d", ego, numWalks)
	return nil
}

// GetNodeScore returns the MeritRank score of target from ego's viewpoint:
// (hits + negative-penalty) / personalHits[ego].TotalCount(), where the
// total count is the sum over ego's walks of the distinct nodes each visits
// (ego included), not the number of walks.
func (mr *MeritRank[NodeData]) GetNodeScore(ego, target graph.NodeId) (graph.Weight, error) {
	c, ok := mr.personalHits[ego]
	if !ok {
		return 0, ErrNodeIsNotCalculated
	}

	hits := c.Get(target)

	if ASSERT {
		if hits > 0 && !mr.Graph.IsConnecting(ego, target) {
			return 0, ErrNoPathExists
		}
	}

	var penalty graph.Weight
	if negs, ok := mr.negHits[ego]; ok {
		penalty = negs[target]
	}

	return (hits + penalty) / c.TotalCount(), nil
}

// GetRanks collects every target hit at least once by ego's walks, scores
// them, and returns them sorted non-increasing by score (NaN scores sort
// as equal to everything), truncated to limit if non-nil.
func (mr *MeritRank[NodeData]) GetRanks(ego graph.NodeId, limit *int) ([]Rank, error) {
	c, ok := mr.personalHits[ego]
	if !ok {
		return nil, ErrNodeDoesNotExist
	}

	keys := c.Keys()
	ranks := make([]Rank, 0, len(keys))
	for _, peer := range keys {
		score, err := mr.GetNodeScore(ego, peer)
		if err != nil {
			return nil, err
		}
		ranks = append(ranks, Rank{Node: peer, Score: score})
	}

	sort.SliceStable(ranks, func(i, j int) bool {
		si, sj := ranks[i].Score, ranks[j].Score
		if math.IsNaN(si) || math.IsNaN(sj) {
			return false
		}
		return si > sj
	})

	if limit != nil && *limit < len(ranks) {
		ranks = ranks[:*limit]
	}
	return ranks, nil
}

// performWalk generates a walk from start and writes it into walkID's slot,
// prepending start itself (generateWalkSegment never includes its own
// starting node).
func (mr *MeritRank[NodeData]) performWalk(walkID walkstore.WalkId, start graph.NodeId) error {
	segment, err := mr.generateWalkSegment(start, false)
	if err != nil {
		return err
	}

	w := mr.walks.GetWalk(walkID)
	w.Push(start)
	w.Extend(segment)
	return nil
}

// generateWalkSegment repeatedly samples a positive-weight-proportional
// next step from node, stopping when there are no positive neighbors or
// when an alpha draw fails. skipAlphaOnFirstStep forces the first step to
// be taken unconditionally (used when splicing a walk back together after
// invalidation); the flag is cleared after the first iteration.
func (mr *MeritRank[NodeData]) generateWalkSegment(start graph.NodeId, skipAlphaOnFirstStep bool) ([]graph.NodeId, error) {
	node := start
	skip := skipAlphaOnFirstStep
	var segment []graph.NodeId

	for {
		neighbors := NeighborsWeighted(mr.Graph, node, Positive)
		if len(neighbors) == 0 {
			break
		}

		if skip {
			skip = false
		} else if mr.rng.Float64() > mr.Alpha {
			break
		}

		next, err := weightedChoice(mr.rng, neighbors)
		if err != nil {
			return nil, err
		}

		segment = append(segment, next)
		node = next
	}

	return segment, nil
}

// weightedChoice samples a node from neighbors with probability
// proportional to its weight. Keys are visited in sorted order so that,
// given the same rng sequence, the result is reproducible regardless of
// Go's randomized map iteration.
func weightedChoice(rng *rand.Rand, neighbors map[graph.NodeId]graph.Weight) (graph.NodeId, error) {
	if len(neighbors) == 0 {
		return 0, ErrRandomChoiceError
	}

	var total graph.Weight
	for _, w := range neighbors {
		total += w
	}
	if total <= 0 {
		return 0, ErrRandomChoiceError
	}

	keys := make([]graph.NodeId, 0, len(neighbors))
	for id := range neighbors {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	target := rng.Float64() * total
	var cumulative graph.Weight
	for _, id := range keys {
		cumulative += neighbors[id]
		if target < cumulative {
			return id, nil
		}
	}
	return keys[len(keys)-1], nil
}

// sign buckets a weight into -1, 0, +1, treating anything within EPSILON
// of zero as zero.
func sign(w graph.Weight) int {
	switch {
	case w > graph.EPSILON:
		return 1
	case w < -graph.EPSILON:
		return -1
	default:
		return 0
	}
}
