package meritrank

import "github.com/vertex-lab/meritrank/pkg/graph"

// Neighbors selects which sign bucket NeighborsWeighted reads from.
type Neighbors int

const (
	All Neighbors = iota
	Positive
	Negative
)

// NeighborsWeighted returns a map of the out-neighbors of node matching
// mode, along with their weights, or nil if there are none.
func NeighborsWeighted[NodeData any](g *graph.Graph[NodeData], node graph.NodeId, mode Neighbors) map[graph.NodeId]graph.Weight {
	switch mode {
	case Positive:
		return g.PositiveNeighbors(node)
	case Negative:
		return g.NegativeNeighbors(node)
	default:
		pos := g.PositiveNeighbors(node)
		neg := g.NegativeNeighbors(node)
		if len(pos) == 0 && len(neg) == 0 {
			return nil
		}
		all := make(map[graph.NodeId]graph.Weight, len(pos)+len(neg))
		for id, w := range pos {
			all[id] = w
		}
		for id, w := range neg {
			all[id] = w
		}
		return all
	}
}
