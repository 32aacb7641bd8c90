package meritrank

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/vertex-lab/meritrank/pkg/graph"
)

// triangle returns a 0 -> 1 -> 2 -> 0 positively-weighted cycle, the
// smallest graph with a non-trivial stationary walk distribution.
func triangle(t *testing.T) *MeritRank[struct{}] {
	t.Helper()
	g := graph.New[struct{}]()
	if err := g.AddEdge(0, 1, 1.0); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(1, 2, 1.0); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(2, 0, 1.0); err != nil {
		t.Fatal(err)
	}

	mr, err := NewWithRand(g, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatal(err)
	}
	return mr
}

func TestCalculateAndGetNodeScore(t *testing.T) {
	mr := triangle(t)

	if err := mr.Calculate(0, 1000); err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	score, err := mr.GetNodeScore(0, 1)
	if err != nil {
		t.Fatalf("GetNodeScore: %v", err)
	}
	if score <= 0 {
		t.Errorf("score for a reachable node should be positive, got %v", score)
	}
}

func TestGetNodeScoreNotCalculated(t *testing.T) {
	mr := triangle(t)
	if _, err := mr.GetNodeScore(0, 1); !errors.Is(err, ErrNodeIsNotCalculated) {
		t.Errorf("expected ErrNodeIsNotCalculated, got %v", err)
	}
}

func TestCalculateNodeDoesNotExist(t *testing.T) {
	mr := triangle(t)
	if err := mr.Calculate(99, 10); !errors.Is(err, ErrNodeDoesNotExist) {
		t.Errorf("expected ErrNodeDoesNotExist, got %v", err)
	}
}

func TestGetRanksSortedDescending(t *testing.T) {
	mr := triangle(t)
	if err := mr.Calculate(0, 1000); err != nil {
		t.Fatal(err)
	}

	ranks, err := mr.GetRanks(0, nil)
	if err != nil {
		t.Fatalf("GetRanks: %v", err)
	}
	for i := 1; i < len(ranks); i++ {
		if ranks[i].Score > ranks[i-1].Score {
			t.Fatalf("ranks not sorted descending: %v", ranks)
		}
	}
}

func TestGetRanksLimit(t *testing.T) {
	mr := triangle(t)
	if err := mr.Calculate(0, 1000); err != nil {
		t.Fatal(err)
	}

	limit := 1
	ranks, err := mr.GetRanks(0, &limit)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranks) != 1 {
		t.Errorf("len(ranks) = %d, want 1", len(ranks))
	}
}

func TestAddEdgeRejectsSelfLoop(t *testing.T) {
	mr := triangle(t)
	defer func() {
		if recover() == nil {
			t.Error("AddEdge(src, src, ...) should panic")
		}
	}()
	mr.AddEdge(0, 0, 1.0)
}

func TestAddEdgeIdempotentNoOp(t *testing.T) {
	mr := triangle(t)
	if err := mr.Calculate(0, 200); err != nil {
		t.Fatal(err)
	}

	before, err := mr.GetRanks(0, nil)
	if err != nil {
		t.Fatal(err)
	}

	// re-setting an edge to its current weight must be a no-op.
	mr.AddEdge(0, 1, 1.0)

	after, err := mr.GetRanks(0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != len(after) {
		t.Fatalf("idempotent AddEdge changed rank set: %v -> %v", before, after)
	}
}

func TestAddEdgeZPInvalidatesWalks(t *testing.T) {
	mr := triangle(t)
	if err := mr.Calculate(0, 500); err != nil {
		t.Fatal(err)
	}

	// introduce a brand new positive edge 0 -> 3.
	mr.AddEdge(0, 3, 1.0)

	// the graph edge itself must always reflect the new weight, and the
	// walks re-routed through the new edge must already have hit 3.
	w, ok := mr.Graph.EdgeWeight(0, 3)
	if !ok || w != 1.0 {
		t.Fatalf("EdgeWeight(0,3) = (%v, %v), want (1.0, true)", w, ok)
	}
	if got := mr.PersonalHits(0).Get(3); got <= 0 {
		t.Errorf("PersonalHits(0).Get(3) = %v, want > 0 after invalidated walks are re-routed", got)
	}
}

func TestAddEdgeZNAddsPenaltyWithoutInvalidatingWalks(t *testing.T) {
	mr := triangle(t)
	if err := mr.Calculate(0, 500); err != nil {
		t.Fatal(err)
	}

	before, err := mr.GetRanks(0, nil)
	if err != nil {
		t.Fatal(err)
	}
	beforeCount := len(before)

	// 0 -> 2 does not exist yet, so this is a zero -> negative transition.
	mr.AddEdge(0, 2, -0.5)

	after, err := mr.GetRanks(0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != beforeCount {
		t.Errorf("a ZN transition must not change which nodes were visited: before=%d after=%d", beforeCount, len(after))
	}
}

func TestAddEdgeNZRemovesNegativeEdge(t *testing.T) {
	mr := triangle(t)
	mr.AddEdge(1, 2, -0.5)

	if _, ok := mr.Graph.EdgeWeight(1, 2); !ok {
		t.Fatal("edge should exist after ZN")
	}

	mr.AddEdge(1, 2, 0)
	if _, ok := mr.Graph.EdgeWeight(1, 2); ok {
		t.Error("edge should be gone after NZ transition to zero")
	}
}

func TestPersonalHitsAndNegHitsAccessors(t *testing.T) {
	mr := triangle(t)
	if err := mr.Calculate(0, 100); err != nil {
		t.Fatal(err)
	}

	if mr.PersonalHits(0) == nil {
		t.Error("PersonalHits(0) should be non-nil after Calculate")
	}
	if mr.PersonalHits(99) != nil {
		t.Error("PersonalHits for an uncalculated ego should be nil")
	}
}

func TestNewAcceptsSelfLoopFreeGraph(t *testing.T) {
	g := graph.New[struct{}]()
	g.AddEdge(0, 1, 1.0)
	if _, err := New(g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestAssertCountersConsistentWithVisitsAfterAddEdge exercises the
// counter-vs-visits cross-check AddEdge runs under ASSERT: after a ZP
// invalidation re-splices walks, every ego's personalHits[peer] must still
// equal the number of that ego's walks actually passing through peer, and
// a node with a nonzero count must be reachable from its ego.
func TestAssertCountersConsistentWithVisitsAfterAddEdge(t *testing.T) {
	mr := triangle(t)
	if err := mr.Calculate(0, 500); err != nil {
		t.Fatal(err)
	}

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("AddEdge's consistency assertion panicked: %v", r)
		}
	}()

	mr.AddEdge(0, 3, 1.0)
	mr.assertCountersConsistentWithVisits(1.0)
}

// TestAssertCountersConsistentWithVisitsCatchesDrift directly verifies the
// cross-check's failure mode: an artificially inflated counter must panic.
func TestAssertCountersConsistentWithVisitsCatchesDrift(t *testing.T) {
	mr := triangle(t)
	if err := mr.Calculate(0, 50); err != nil {
		t.Fatal(err)
	}

	mr.personalHits[0].IncrementUniqueCounts([]graph.NodeId{99})

	defer func() {
		if recover() == nil {
			t.Error("expected a panic from a counter with no matching visits")
		}
	}()
	mr.assertCountersConsistentWithVisits(1.0)
}
