/*
The walkstore package defines WalkStorage: an arena of random walks keyed
by an opaque WalkId, plus the inverted index "which walks visit node n,
and at what position was n first visited" that the invalidation path needs
to find affected walks in sublinear time relative to the total walk
population.

# REFERENCES

[1] B. Bahmani, A. Chowdhury, A. Goel; "Fast Incremental and Personalized PageRank"
URL: http://snap.stanford.edu/class/cs224w-readings/bahmani10pagerank.pdf
*/
package walkstore

import (
	"fmt"
	"math/rand"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/vertex-lab/meritrank/pkg/graph"
	"github.com/vertex-lab/meritrank/pkg/walk"
)

// WalkId is an opaque handle issued by WalkStorage, stable for the walk's
// lifetime. Walks are mutated by handle rather than by direct pointer
// because the invalidation path holds references to both the storage (to
// mutate bookkeeping) and individual walks (to truncate/extend); handles
// decouple those borrows.
type WalkId = uint64

// Invalidated pairs a selected walk id with the position of its first
// visit to the node the invalidation was triggered from.
type Invalidated struct {
	WalkId WalkId
	Pos    int
}

// WalkStorage is the arena + inverted index described above.
//
// Invariant: visits[n] contains (w, p) iff walks[w][p] == n and no earlier
// position in walks[w] equals n.
type WalkStorage struct {
	walks  map[WalkId]*walk.RandomWalk
	visits map[graph.NodeId]map[WalkId]int
	byEgo  map[graph.NodeId]mapset.Set[WalkId]
	nextID WalkId
	alpha  graph.Weight
}

// New returns an empty WalkStorage whose walks decay penalties at rate alpha.
func New(alpha graph.Weight) *WalkStorage {
	return &WalkStorage{
		walks:  make(map[WalkId]*walk.RandomWalk),
		visits: make(map[graph.NodeId]map[WalkId]int),
		byEgo:  make(map[graph.NodeId]mapset.Set[WalkId]),
		alpha:  alpha,
	}
}

// GetNextFreeWalkId issues a monotonically increasing handle and reserves
// an empty walk under it.
func (ws *WalkStorage) GetNextFreeWalkId() WalkId {
	id := ws.nextID
	ws.nextID++
	ws.walks[id] = walk.New(ws.alpha)
	return id
}

// GetWalk returns the walk associated with id, or nil if absent.
func (ws *WalkStorage) GetWalk(id WalkId) *walk.RandomWalk {
	return ws.walks[id]
}

// DropWalksFromNode removes every walk whose first node is ego, and all of
// its bookkeeping (visits, byEgo).
func (ws *WalkStorage) DropWalksFromNode(ego graph.NodeId) {
	ids, ok := ws.byEgo[ego]
	if !ok {
		return
	}

	for id := range ids.Iter() {
		w := ws.walks[id]
		ws.removeFromVisits(id, w, 0)
		delete(ws.walks, id)
	}
	delete(ws.byEgo, ego)
}

// AddWalkToBookkeeping registers walk id into the visits index for every
// position p >= fromPos whose node has no earlier occurrence in the walk.
// It also registers id under the walk's ego in byEgo.
func (ws *WalkStorage) AddWalkToBookkeeping(id WalkId, fromPos int) {
	w := ws.walks[id]
	if w == nil {
		return
	}

	nodes := w.Nodes()
	seenBefore := make(map[graph.NodeId]struct{}, fromPos)
	for i := 0; i < fromPos && i < len(nodes); i++ {
		seenBefore[nodes[i]] = struct{}{}
	}

	for p := fromPos; p < len(nodes); p++ {
		n := nodes[p]
		if _, ok := seenBefore[n]; ok {
			continue
		}
		seenBefore[n] = struct{}{}

		if ws.visits[n] == nil {
			ws.visits[n] = make(map[WalkId]int)
		}
		ws.visits[n][id] = p
	}

	if ego, ok := w.FirstNode(); ok {
		set, ok := ws.byEgo[ego]
		if !ok {
			set = mapset.NewThreadUnsafeSet[WalkId]()
			ws.byEgo[ego] = set
		}
		set.Add(id)
	}
}

// RemoveWalkSegmentFromBookkeeping is the inverse of AddWalkToBookkeeping:
// it drops every visits entry whose recorded first-visit position is
// >= cutPos. It finds those entries through the walk's current nodes, so
// it must be called before the caller truncates the walk.
func (ws *WalkStorage) RemoveWalkSegmentFromBookkeeping(id WalkId, cutPos int) {
	w := ws.walks[id]
	ws.removeFromVisits(id, w, cutPos)
}

func (ws *WalkStorage) removeFromVisits(id WalkId, w *walk.RandomWalk, fromPos int) {
	if w == nil {
		return
	}
	for _, n := range w.Nodes() {
		byWalk, ok := ws.visits[n]
		if !ok {
			continue
		}
		if pos, ok := byWalk[id]; ok && pos >= fromPos {
			delete(byWalk, id)
			if len(byWalk) == 0 {
				delete(ws.visits, n)
			}
		}
	}
}

// GetVisitsThroughNode returns the map WalkId -> first-visit position for
// every walk passing through n, or nil if none do.
func (ws *WalkStorage) GetVisitsThroughNode(n graph.NodeId) map[WalkId]int {
	return ws.visits[n]
}

/*
InvalidateWalksThroughNode finds, among the walks passing through src, the
ones that the addition/change of the edge src-->target must invalidate.

For every walk w passing through src, at its first visit position p:
  - with probability stepRecalcProbability, the walk is selected for forced
    re-routing through the new edge (a biased, cheaper re-sampling of the
    unaffected population);
  - otherwise, if target is non-nil, the walk is selected anyway when its
    existing next step (p+1) already equals target — this is the case where
    the edge already existed and is merely being re-weighted, so every walk
    that already realizes it must be rebuilt against the new weight.

The returned Pos is p itself, src's first-visit position; the walk is cut
at the step after src (p+1), which the caller computes from Pos.
*/
func (ws *WalkStorage) InvalidateWalksThroughNode(
	rng *rand.Rand,
	src graph.NodeId,
	target *graph.NodeId,
	stepRecalcProbability graph.Weight,
) []Invalidated {
	visits := ws.visits[src]
	if len(visits) == 0 {
		return nil
	}

	var selected []Invalidated
	for id, pos := range visits {
		w := ws.walks[id]
		if w == nil {
			continue
		}

		choose := rng.Float64() < stepRecalcProbability
		if !choose && target != nil {
			nodes := w.Nodes()
			if pos+1 < len(nodes) && nodes[pos+1] == *target {
				choose = true
			}
		}

		if choose {
			selected = append(selected, Invalidated{WalkId: id, Pos: pos})
		}
	}
	return selected
}

// AssertVisitsConsistency panics if the visits index invariant is violated
// for any walk. Gated by the caller behind the ASSERT variable.
func (ws *WalkStorage) AssertVisitsConsistency() {
	for n, byWalk := range ws.visits {
		for id, pos := range byWalk {
			w := ws.walks[id]
			if w == nil {
				panic(fmt.Sprintf("visits index points to missing walk %d", id))
			}
			nodes := w.Nodes()
			if pos >= len(nodes) || nodes[pos] != n {
				panic(fmt.Sprintf("visits[%d][%d] = %d but walk[%d] = %v", n, id, pos, pos, nodes))
			}
			for _, earlier := range nodes[:pos] {
				if earlier == n {
					panic(fmt.Sprintf("visits[%d][%d] = %d is not the first occurrence", n, id, pos))
				}
			}
		}
	}
}

// DebugString renders every walk in the arena, one per line, for use from
// tests and the demo CLI's -debug flag.
func (ws *WalkStorage) DebugString() string {
	var b strings.Builder
	for id, w := range ws.walks {
		fmt.Fprintf(&b, "walk %d: %v\n", id, w.Nodes())
	}
	return b.String()
}
