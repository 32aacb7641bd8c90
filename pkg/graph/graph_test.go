package graph

import (
	"errors"
	"testing"
)

func TestAddEdge(t *testing.T) {
	testCases := []struct {
		name       string
		src, dst   NodeId
		weight     Weight
		expectErr  error
		expectPos  bool
		expectNeg  bool
	}{
		{name: "self reference", src: 0, dst: 0, weight: 1, expectErr: ErrSelfReferenceNotAllowed},
		{name: "positive weight", src: 0, dst: 1, weight: 0.5, expectPos: true},
		{name: "negative weight", src: 0, dst: 1, weight: -0.5, expectNeg: true},
		{name: "zero weight stores no edge", src: 0, dst: 1, weight: 0},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			g := New[string]()
			err := g.AddEdge(test.src, test.dst, test.weight)

			if test.expectErr != nil {
				if !errors.Is(err, test.expectErr) {
					t.Fatalf("expected %v, got %v", test.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := g.PositiveNeighbors(test.src) != nil; got != test.expectPos {
				t.Errorf("PositiveNeighbors presence = %v, want %v", got, test.expectPos)
			}
			if got := g.NegativeNeighbors(test.src) != nil; got != test.expectNeg {
				t.Errorf("NegativeNeighbors presence = %v, want %v", got, test.expectNeg)
			}
		})
	}
}

func TestAddEdgeCreatesMissingEndpoints(t *testing.T) {
	g := New[string]()
	if err := g.AddEdge(0, 1, 1.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !g.ContainsNode(0) || !g.ContainsNode(1) {
		t.Fatal("AddEdge should create both endpoints")
	}
}

func TestAddEdgeOverwritesOppositeSign(t *testing.T) {
	g := New[string]()
	g.AddEdge(0, 1, 1.0)
	g.AddEdge(0, 1, -1.0)

	if _, ok := g.EdgeWeight(0, 1); !ok {
		t.Fatal("edge should still exist after sign flip")
	}
	if g.PositiveNeighbors(0) != nil {
		t.Fatal("positive bucket should be cleared after sign flip")
	}
	if w, _ := g.EdgeWeight(0, 1); w != -1.0 {
		t.Errorf("weight = %v, want -1.0", w)
	}
}

func TestPosSumUpdatesOnAddAndRemove(t *testing.T) {
	g := New[string]()
	g.AddEdge(0, 1, 1.0)
	g.AddEdge(0, 2, 2.0)

	if got := g.PosSum(0); got != 3.0 {
		t.Fatalf("PosSum = %v, want 3.0", got)
	}

	g.RemoveEdge(0, 1)
	if got := g.PosSum(0); got != 2.0 {
		t.Fatalf("PosSum after remove = %v, want 2.0", got)
	}
}

func TestCheckSelfReference(t *testing.T) {
	g := New[string]()
	g.AddNode(0, "")
	if err := g.CheckSelfReference(); err != nil {
		t.Fatalf("unexpected error on clean graph: %v", err)
	}
}

func TestIsConnecting(t *testing.T) {
	g := New[string]()
	g.AddEdge(0, 1, 1.0)
	g.AddEdge(1, 2, 1.0)
	g.AddEdge(2, 0, -1.0) // negative edges don't count

	if !g.IsConnecting(0, 2) {
		t.Error("0 should reach 2 via positive edges")
	}
	if g.IsConnecting(2, 1) {
		t.Error("2 should not reach 1: only a negative edge back to 0 exists")
	}
	if !g.IsConnecting(0, 0) {
		t.Error("a node always connects to itself")
	}
}

func TestGetNodeData(t *testing.T) {
	g := New[string]()
	g.AddNode(0, "alice")

	data, err := g.GetNodeData(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data != "alice" {
		t.Errorf("data = %q, want %q", data, "alice")
	}

	if _, err := g.GetNodeData(99); !errors.Is(err, ErrNodeDoesNotExist) {
		t.Errorf("expected ErrNodeDoesNotExist, got %v", err)
	}
}

func TestAddNodePreservesEdges(t *testing.T) {
	g := New[string]()
	g.AddEdge(0, 1, 1.0)
	g.AddNode(0, "alice")

	if _, ok := g.EdgeWeight(0, 1); !ok {
		t.Fatal("AddNode must not clear existing edges")
	}
}
