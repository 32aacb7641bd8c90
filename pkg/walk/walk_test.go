package walk

import (
	"math"
	"testing"

	"github.com/vertex-lab/meritrank/pkg/graph"
)

func TestPushExtendTruncate(t *testing.T) {
	w := New(0.85)
	w.Push(0)
	w.Extend([]graph.NodeId{1, 2, 3})

	if got := w.Nodes(); !equal(got, []graph.NodeId{0, 1, 2, 3}) {
		t.Fatalf("Nodes() = %v", got)
	}

	w.Truncate(2)
	if got := w.Nodes(); !equal(got, []graph.NodeId{0, 1}) {
		t.Fatalf("Nodes() after truncate = %v", got)
	}
}

func TestFirstLastNode(t *testing.T) {
	w := New(0.85)
	if _, ok := w.FirstNode(); ok {
		t.Error("empty walk should report no first node")
	}

	w.Extend([]graph.NodeId{0, 1, 2})
	first, ok := w.FirstNode()
	if !ok || first != 0 {
		t.Errorf("FirstNode() = (%v, %v), want (0, true)", first, ok)
	}
	last, ok := w.LastNode()
	if !ok || last != 2 {
		t.Errorf("LastNode() = (%v, %v), want (2, true)", last, ok)
	}
}

func TestCalculatePenaltiesConservesTotal(t *testing.T) {
	// a single negative sink at position 0 must distribute exactly its own
	// weight across the rest of the walk, regardless of alpha.
	w := FromNodes(0.85, []graph.NodeId{0, 1, 2, 3})
	negs := map[graph.NodeId]graph.Weight{0: -0.6}

	penalties := w.CalculatePenalties(negs)
	var total graph.Weight
	for _, p := range penalties {
		total += p.Value
	}

	if math.Abs(float64(total)-(-0.6)) > 1e-9 {
		t.Errorf("sum of penalties = %v, want -0.6", total)
	}
}

func TestCalculatePenaltiesDecaysGeometrically(t *testing.T) {
	w := FromNodes(0.5, []graph.NodeId{0, 1, 2, 3})
	negs := map[graph.NodeId]graph.Weight{0: -1.0}

	penalties := w.CalculatePenalties(negs)
	byNode := make(map[graph.NodeId]graph.Weight)
	for _, p := range penalties {
		byNode[p.Node] = p.Value
	}

	// alpha=0.5: weights at positions 1,2,3 are proportional to 1, 0.5, 0.25.
	if byNode[1] <= byNode[2] || byNode[2] <= byNode[3] {
		t.Errorf("penalties should strictly decay with distance: %v", byNode)
	}
}

func TestCalculatePenaltiesNoTailIsEmpty(t *testing.T) {
	w := FromNodes(0.85, []graph.NodeId{0})
	negs := map[graph.NodeId]graph.Weight{0: -1.0}

	if got := w.CalculatePenalties(negs); got != nil {
		t.Errorf("CalculatePenalties with no tail = %v, want nil", got)
	}
}

func TestIntersectsAndDistinctNodes(t *testing.T) {
	w := FromNodes(0.85, []graph.NodeId{0, 1, 1, 2})

	distinct := w.DistinctNodes()
	if distinct.Cardinality() != 3 {
		t.Errorf("DistinctNodes cardinality = %d, want 3", distinct.Cardinality())
	}

	if !w.IntersectsNodes(FromNodes(0.85, []graph.NodeId{2, 9}).DistinctNodes()) {
		t.Error("IntersectsNodes({2, 9}) = false, want true")
	}
	if w.IntersectsNodes(FromNodes(0.85, []graph.NodeId{7, 9}).DistinctNodes()) {
		t.Error("IntersectsNodes({7, 9}) = true, want false")
	}
}

func equal(a, b []graph.NodeId) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
