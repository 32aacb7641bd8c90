// The walk package defines RandomWalk, the ordered node sequence produced
// by a single Monte-Carlo walk, along with the negative-penalty projection
// used to propagate an ego's direct negative edges onto everything its
// walks visit.
package walk

import (
	"math"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/vertex-lab/meritrank/pkg/graph"
)

// RandomWalk is the ordered sequence of node ids visited starting at the
// ego. Alpha is carried alongside the node sequence as the decay rate of
// CalculatePenalties' curve; it is fixed when the walk is created and
// never changes.
type RandomWalk struct {
	nodes []graph.NodeId
	alpha graph.Weight
}

// New returns an empty RandomWalk that will decay penalties at rate alpha.
func New(alpha graph.Weight) *RandomWalk {
	return &RandomWalk{alpha: alpha}
}

// FromNodes returns a RandomWalk initialized with nodes, for tests and for
// reconstructing walks from a snapshot.
func FromNodes(alpha graph.Weight, nodes []graph.NodeId) *RandomWalk {
	w := New(alpha)
	w.nodes = append(w.nodes, nodes...)
	return w
}

// Len returns the number of positions in the walk.
func (w *RandomWalk) Len() int {
	if w == nil {
		return 0
	}
	return len(w.nodes)
}

// FirstNode returns the ego the walk started at, and whether the walk is
// non-empty.
func (w *RandomWalk) FirstNode() (graph.NodeId, bool) {
	if w == nil || len(w.nodes) == 0 {
		return 0, false
	}
	return w.nodes[0], true
}

// LastNode returns the most recently visited node, and whether the walk is
// non-empty.
func (w *RandomWalk) LastNode() (graph.NodeId, bool) {
	if w == nil || len(w.nodes) == 0 {
		return 0, false
	}
	return w.nodes[len(w.nodes)-1], true
}

// Nodes returns the underlying node slice. Callers must not mutate it.
func (w *RandomWalk) Nodes() []graph.NodeId {
	if w == nil {
		return nil
	}
	return w.nodes
}

// Push appends a single node to the walk.
func (w *RandomWalk) Push(nodeID graph.NodeId) {
	w.nodes = append(w.nodes, nodeID)
}

// Extend appends every node in segment to the walk, in order.
func (w *RandomWalk) Extend(segment []graph.NodeId) {
	w.nodes = append(w.nodes, segment...)
}

// Truncate removes every position >= cutPos from the walk.
func (w *RandomWalk) Truncate(cutPos int) {
	if cutPos < 0 || cutPos >= len(w.nodes) {
		if cutPos <= 0 {
			w.nodes = w.nodes[:0]
		}
		return
	}
	w.nodes = w.nodes[:cutPos]
}

// IntersectsNodes reports whether any element of keys appears in the walk.
func (w *RandomWalk) IntersectsNodes(keys mapset.Set[graph.NodeId]) bool {
	if w == nil || keys == nil {
		return false
	}
	for _, n := range w.nodes {
		if keys.ContainsOne(n) {
			return true
		}
	}
	return false
}

// DistinctNodes returns the set of distinct node ids visited by the walk.
func (w *RandomWalk) DistinctNodes() mapset.Set[graph.NodeId] {
	set := mapset.NewThreadUnsafeSet[graph.NodeId]()
	if w == nil {
		return set
	}
	for _, n := range w.nodes {
		set.Add(n)
	}
	return set
}

// Penalty pairs a target node with the penalty it accrues from a single
// negative sink encountered earlier in the walk.
type Penalty struct {
	Node  graph.NodeId
	Value graph.Weight
}

/*
CalculatePenalties distributes each negs[walk[i]] across the walk positions
j > i with a geometric decay proportional to alpha^(j-i-1), normalized so
that the total penalty handed out from a single sink i sums to exactly
negs[walk[i]] (the sign of the input value is preserved, so a negative
input produces negative, score-reducing contributions). This is the one
fixed formula used by both the "add" and the "subtract" invalidation
paths; an implementation must never re-derive it independently for the
two directions, or add_edge's rollback/reapply pair stops cancelling.

If a node is visited more than once by the walk, each visit acts as an
independent sink and independent recipient; contributions to the same
target from multiple sinks are summed.
*/
func (w *RandomWalk) CalculatePenalties(negs map[graph.NodeId]graph.Weight) []Penalty {
	if w == nil || len(negs) == 0 || len(w.nodes) == 0 {
		return nil
	}

	totals := make(map[graph.NodeId]graph.Weight)
	for i, n := range w.nodes {
		weight, ok := negs[n]
		if !ok {
			continue
		}

		tail := len(w.nodes) - i - 1
		if tail <= 0 {
			continue
		}

		budget := geometricBudget(w.alpha, tail)
		if budget <= 0 {
			continue
		}

		for j := i + 1; j < len(w.nodes); j++ {
			decay := math.Pow(w.alpha, float64(j-i-1))
			totals[w.nodes[j]] += weight * decay / budget
		}
	}

	if len(totals) == 0 {
		return nil
	}

	penalties := make([]Penalty, 0, len(totals))
	for node, value := range totals {
		penalties = append(penalties, Penalty{Node: node, Value: value})
	}
	return penalties
}

// geometricBudget returns sum_{k=0}^{n-1} alpha^k, the normalizing constant
// that makes a sink's total distributed penalty equal its own weight.
func geometricBudget(alpha graph.Weight, n int) graph.Weight {
	var total graph.Weight
	for k := 0; k < n; k++ {
		total += math.Pow(alpha, float64(k))
	}
	return total
}
