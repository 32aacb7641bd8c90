// The graph package defines a signed, weighted, directed adjacency structure:
// the data model that the meritrank package performs its random walks over.
package graph

import "errors"

// NodeId is the opaque identity of a node. Dense small integers are expected
// but not required.
type NodeId = uint32

// Weight is a real-valued, possibly negative edge weight.
type Weight = float64

// EPSILON bounds "effectively zero" for weight comparisons.
const EPSILON Weight = 1e-9

// node holds the adjacency of a single node: its caller-chosen payload plus
// the positive and negative out-edge maps and the cached sum of positive
// weights (needed by the invalidation step-recalc-probability computation).
type node[NodeData any] struct {
	data     NodeData
	posEdges map[NodeId]Weight
	negEdges map[NodeId]Weight
	posSum   Weight
}

func newNode[NodeData any](data NodeData) *node[NodeData] {
	return &node[NodeData]{
		data:     data,
		posEdges: make(map[NodeId]Weight),
		negEdges: make(map[NodeId]Weight),
	}
}

// Graph is a signed, weighted, directed adjacency structure. No self-loops
// and at most one edge per (src, dst) are allowed; a target appears in at
// most one of the positive/negative buckets for a given source.
type Graph[NodeData any] struct {
	nodes map[NodeId]*node[NodeData]
}

// New returns an empty Graph.
func New[NodeData any]() *Graph[NodeData] {
	return &Graph[NodeData]{nodes: make(map[NodeId]*node[NodeData])}
}

// ContainsNode returns whether nodeID is present in the graph.
func (g *Graph[NodeData]) ContainsNode(nodeID NodeId) bool {
	_, ok := g.nodes[nodeID]
	return ok
}

// AddNode adds nodeID with the given payload. If the node already exists,
// its payload is overwritten but its edges are preserved.
func (g *Graph[NodeData]) AddNode(nodeID NodeId, data NodeData) {
	n, ok := g.nodes[nodeID]
	if !ok {
		g.nodes[nodeID] = newNode[NodeData](data)
		return
	}
	n.data = data
}

// GetNodeData returns the payload stored for nodeID, or an error if absent.
func (g *Graph[NodeData]) GetNodeData(nodeID NodeId) (NodeData, error) {
	var zero NodeData
	n, ok := g.nodes[nodeID]
	if !ok {
		return zero, ErrNodeDoesNotExist
	}
	return n.data, nil
}

// ContainsEdge returns whether an edge src --> dst exists, of either sign.
func (g *Graph[NodeData]) ContainsEdge(src, dst NodeId) bool {
	n, ok := g.nodes[src]
	if !ok {
		return false
	}
	if _, ok := n.posEdges[dst]; ok {
		return true
	}
	_, ok = n.negEdges[dst]
	return ok
}

// EdgeWeight returns the weight of src --> dst, and whether it exists.
func (g *Graph[NodeData]) EdgeWeight(src, dst NodeId) (Weight, bool) {
	n, ok := g.nodes[src]
	if !ok {
		return 0, false
	}
	if w, ok := n.posEdges[dst]; ok {
		return w, true
	}
	if w, ok := n.negEdges[dst]; ok {
		return w, true
	}
	return 0, false
}

// CheckSelfReference returns ErrSelfReferenceNotAllowed if the graph
// contains any edge src --> src.
func (g *Graph[NodeData]) CheckSelfReference() error {
	for id, n := range g.nodes {
		if _, ok := n.posEdges[id]; ok {
			return ErrSelfReferenceNotAllowed
		}
		if _, ok := n.negEdges[id]; ok {
			return ErrSelfReferenceNotAllowed
		}
	}
	return nil
}

// AddEdge sets the weight of src --> dst directly, with no invalidation
// bookkeeping. Endpoints that don't exist yet are created with a zero-value
// payload, the way a bare adjacency structure would.
func (g *Graph[NodeData]) AddEdge(src, dst NodeId, weight Weight) error {
	if src == dst {
		return ErrSelfReferenceNotAllowed
	}

	srcNode, ok := g.nodes[src]
	if !ok {
		var zero NodeData
		srcNode = newNode[NodeData](zero)
		g.nodes[src] = srcNode
	}
	if !g.ContainsNode(dst) {
		var zero NodeData
		g.nodes[dst] = newNode[NodeData](zero)
	}

	// clear any previous opposite-sign bucket entry before writing the new one.
	delete(srcNode.posEdges, dst)
	delete(srcNode.negEdges, dst)

	if weight > 0 {
		srcNode.posEdges[dst] = weight
	} else if weight < 0 {
		srcNode.negEdges[dst] = weight
	}

	srcNode.posSum = sum(srcNode.posEdges)
	return nil
}

// RemoveEdge deletes the edge src --> dst, if present.
func (g *Graph[NodeData]) RemoveEdge(src, dst NodeId) {
	srcNode, ok := g.nodes[src]
	if !ok {
		return
	}
	delete(srcNode.posEdges, dst)
	delete(srcNode.negEdges, dst)
	srcNode.posSum = sum(srcNode.posEdges)
}

// PosSum returns the sum of the positive out-edge weights of nodeID.
func (g *Graph[NodeData]) PosSum(nodeID NodeId) Weight {
	n, ok := g.nodes[nodeID]
	if !ok {
		return 0
	}
	return n.posSum
}

// Neighbors enumerates every out-neighbor of nodeID, of either sign.
func (g *Graph[NodeData]) Neighbors(nodeID NodeId) []NodeId {
	n, ok := g.nodes[nodeID]
	if !ok {
		return nil
	}
	neighbors := make([]NodeId, 0, len(n.posEdges)+len(n.negEdges))
	for id := range n.posEdges {
		neighbors = append(neighbors, id)
	}
	for id := range n.negEdges {
		neighbors = append(neighbors, id)
	}
	return neighbors
}

// PositiveNeighbors returns the positive out-edges of nodeID as a map, or
// nil if there are none.
func (g *Graph[NodeData]) PositiveNeighbors(nodeID NodeId) map[NodeId]Weight {
	n, ok := g.nodes[nodeID]
	if !ok || len(n.posEdges) == 0 {
		return nil
	}
	return n.posEdges
}

// NegativeNeighbors returns the negative out-edges of nodeID as a map, or
// nil if there are none.
func (g *Graph[NodeData]) NegativeNeighbors(nodeID NodeId) map[NodeId]Weight {
	n, ok := g.nodes[nodeID]
	if !ok || len(n.negEdges) == 0 {
		return nil
	}
	return n.negEdges
}

// IsConnecting reports whether dst is reachable from src using only
// positive edges. Used only by ASSERT-gated consistency checks.
func (g *Graph[NodeData]) IsConnecting(src, dst NodeId) bool {
	if src == dst {
		return true
	}
	visited := map[NodeId]bool{src: true}
	queue := []NodeId{src}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		n, ok := g.nodes[current]
		if !ok {
			continue
		}
		for next := range n.posEdges {
			if next == dst {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

func sum(m map[NodeId]Weight) Weight {
	var total Weight
	for _, w := range m {
		total += w
	}
	return total
}

//---------------------------------ERROR-CODES---------------------------------

var (
	ErrNodeDoesNotExist        = errors.New("node does not exist")
	ErrSelfReferenceNotAllowed = errors.New("self reference not allowed")
)
