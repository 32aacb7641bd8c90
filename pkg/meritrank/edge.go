package meritrank

import (
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/vertex-lab/meritrank/pkg/counter"
	"github.com/vertex-lab/meritrank/pkg/graph"
	"github.com/vertex-lab/meritrank/pkg/walk"
	"github.com/vertex-lab/meritrank/pkg/walkstore"
)

/*
AddEdge sets the weight of src --> dst and repairs every walk that was
built assuming the old weight, without recomputing anything from scratch.
It panics on src == dst, matching the graph package's own precondition
(CheckSelfReference already ruled this out for every edge present when
the MeritRank was built; a caller introducing a new self-loop via AddEdge
is a programmer error, not a runtime condition to recover from).

The nine (old-sign, new-sign) combinations reduce to three primitive
transitions:

  zp: the edge becomes positive (or changes positive weight). Requires
      walk invalidation, since positive edges are what random walks step
      across.
  zn: the edge becomes negative (or changes negative weight). No walk
      invalidation; only the penalty projection for existing walks
      through src changes.
  nz: the edge stops being negative (zero or positive cancels it first).
      Removes the old penalty contribution before any positive-side
      change is applied.

A transition whose old and new sign differ on both sides chains two of
these (e.g. negative -> positive is nz then zp).
*/
func (mr *MeritRank[NodeData]) AddEdge(src, dst graph.NodeId, weight graph.Weight) {
	if src == dst {
		panic("meritrank: self-loop edges are not allowed")
	}

	old, _ := mr.Graph.EdgeWeight(src, dst)
	if old == weight {
		return
	}

	oldSign, newSign := sign(old), sign(weight)

	switch {
	case oldSign == 0 && newSign == 0:
		// both within EPSILON of zero but numerically different; nothing
		// observable changes.
		return
	case oldSign >= 0 && newSign > 0:
		mr.zp(src, dst, weight)
	case oldSign == 0 && newSign < 0:
		mr.zn(src, dst, weight)
	case oldSign > 0 && newSign <= 0:
		mr.zp(src, dst, 0)
		if newSign < 0 {
			mr.zn(src, dst, weight)
		}
	case oldSign < 0 && newSign >= 0:
		mr.nz(src, dst)
		if newSign > 0 {
			mr.zp(src, dst, weight)
		}
	case oldSign < 0 && newSign < 0:
		mr.nz(src, dst)
		mr.zn(src, dst, weight)
	}

	if ASSERT {
		mr.AssertConsistency()
		// Run once here, after every chained zp/zn/nz primitive for this
		// edge has finished, rather than inside zp itself: a transition
		// that chains two primitives (e.g. negative -> positive is nz then
		// zp) only has a fully consistent state once both have run. weight
		// is the final weight this AddEdge call installed, which only
		// matters to the reachability half of the check below (gated on
		// weight > EPSILON); the counter/visits cross-check itself doesn't
		// depend on it.
		mr.assertCountersConsistentWithVisits(weight)
	}
}

// zp installs a positive (or newly-zero, in the PZ/PN decomposition)
// weight on src --> dst and re-splices the walks through src that
// InvalidateWalksThroughNode selects.
func (mr *MeritRank[NodeData]) zp(src, dst graph.NodeId, weight graph.Weight) {
	var stepRecalcProbability graph.Weight
	if weight > graph.EPSILON && mr.OptimizeInvalidation && mr.Graph.ContainsNode(src) {
		posSum := mr.Graph.PosSum(src)
		stepRecalcProbability = weight / (posSum + weight)
	}

	invalidated := mr.walks.InvalidateWalksThroughNode(mr.rng, src, &dst, stepRecalcProbability)
	if len(invalidated) == 0 {
		if weight > 0 {
			mr.Graph.AddEdge(src, dst, weight)
		} else {
			mr.Graph.RemoveEdge(src, dst)
		}
		return
	}

	// negsByEgo is built once, before the graph mutation below, and reused
	// unchanged for both the rollback pass and the reapply pass: the two
	// passes must see the same negative-neighbor snapshot or the
	// subtract/add contributions stop cancelling for nodes whose negative
	// edges are themselves touched mid-flight by a concurrent AddEdge call
	// (callers are expected to serialize edge additions; this cache simply
	// avoids taking two different snapshots within a single one).
	negsByEgo := make(map[graph.NodeId]map[graph.NodeId]graph.Weight)
	getNegs := func(ego graph.NodeId) map[graph.NodeId]graph.Weight {
		negs, ok := negsByEgo[ego]
		if !ok {
			negs = NeighborsWeighted(mr.Graph, ego, Negative)
			negsByEgo[ego] = negs
		}
		return negs
	}

	for _, inv := range invalidated {
		w := mr.walks.GetWalk(inv.WalkId)
		ego, ok := w.FirstNode()
		if !ok {
			continue
		}

		mr.revertCountersForWalkFromPos(w, inv.Pos+1)
		if negs := getNegs(ego); len(negs) > 0 {
			updateNegativeHits(mr.negHits, w, negs, true)
		}
	}

	if weight > 0 {
		mr.Graph.AddEdge(src, dst, weight)
	} else {
		mr.Graph.RemoveEdge(src, dst)
	}

	var forceFirstStep *graph.NodeId
	if stepRecalcProbability > 0 {
		forceFirstStep = &dst
	}
	skipAlpha := mr.OptimizeInvalidation && weight <= graph.EPSILON

	for _, inv := range invalidated {
		mr.walks.RemoveWalkSegmentFromBookkeeping(inv.WalkId, inv.Pos+1)

		w := mr.walks.GetWalk(inv.WalkId)
		ego, ok := w.FirstNode()
		if !ok {
			continue
		}
		w.Truncate(inv.Pos + 1)

		if err := mr.recalcInvalidatedWalk(inv.WalkId, forceFirstStep, skipAlpha); err != nil {
			mr.Logger.Warn("recalcInvalidatedWalk %d: %v", inv.WalkId, err)
		}

		mr.walks.AddWalkToBookkeeping(inv.WalkId, inv.Pos+1)

		if negs := getNegs(ego); len(negs) > 0 {
			updateNegativeHits(mr.negHits, w, negs, false)
		}
	}
}

// zn installs a negative weight on src --> dst. Existing walks are left
// untouched (only positive edges are walked over); every walk currently
// passing through dst whose ego is src picks up the new penalty.
func (mr *MeritRank[NodeData]) zn(src, dst graph.NodeId, weight graph.Weight) {
	mr.Graph.AddEdge(src, dst, weight)
	mr.updatePenaltiesForEdge(src, dst, weight, false)
}

// nz removes a negative src --> dst edge (its weight moves to zero or
// positive, in which case the caller chains a zp call afterward). The old
// penalty contribution is rolled back before the edge itself is cleared.
func (mr *MeritRank[NodeData]) nz(src, dst graph.NodeId) {
	old, ok := mr.Graph.EdgeWeight(src, dst)
	if ok {
		mr.updatePenaltiesForEdge(src, dst, old, true)
	}
	mr.Graph.RemoveEdge(src, dst)
}

// updatePenaltiesForEdge folds (or, if remove, unfolds) the penalty that
// src's negative edge to dst projects onto every walk rooted at src that
// currently passes through dst.
func (mr *MeritRank[NodeData]) updatePenaltiesForEdge(src, dst graph.NodeId, weight graph.Weight, remove bool) {
	visits := mr.walks.GetVisitsThroughNode(dst)
	if len(visits) == 0 {
		return
	}

	negs := map[graph.NodeId]graph.Weight{dst: weight}
	for walkID := range visits {
		w := mr.walks.GetWalk(walkID)
		ego, ok := w.FirstNode()
		if !ok || ego != src {
			continue
		}
		for _, p := range w.CalculatePenalties(negs) {
			mr.addNegHit(src, p.Node, p.Value, remove)
		}
	}
}

// updateNegativeHits folds (or unfolds) w's full penalty projection, under
// the snapshot negs, into negHits[ego].
func updateNegativeHits(negHits map[graph.NodeId]map[graph.NodeId]graph.Weight, w *walk.RandomWalk, negs map[graph.NodeId]graph.Weight, subtract bool) {
	if len(negs) == 0 {
		return
	}
	ego, ok := w.FirstNode()
	if !ok {
		return
	}

	keys := mapset.NewThreadUnsafeSet[graph.NodeId]()
	for n := range negs {
		keys.Add(n)
	}
	if !w.IntersectsNodes(keys) {
		return
	}

	for _, p := range w.CalculatePenalties(negs) {
		addNegHitTo(negHits, ego, p.Node, p.Value, subtract)
	}
}

func (mr *MeritRank[NodeData]) addNegHit(ego, target graph.NodeId, value graph.Weight, subtract bool) {
	addNegHitTo(mr.negHits, ego, target, value, subtract)
}

func addNegHitTo(negHits map[graph.NodeId]map[graph.NodeId]graph.Weight, ego, target graph.NodeId, value graph.Weight, subtract bool) {
	if negHits[ego] == nil {
		negHits[ego] = make(map[graph.NodeId]graph.Weight)
	}
	if subtract {
		negHits[ego][target] -= value
	} else {
		negHits[ego][target] += value
	}
}

/*
recalcInvalidatedWalk regrows walkID from its current (already-truncated)
tail. If forceFirstStep is set, that node is spliced in as the walk's
immediate next step (the edge src-->*forceFirstStep being the very one
AddEdge just installed); skipAlphaOnFirstStep additionally forces that
first step through unconditionally, bypassing the usual per-step alpha
draw (used when the old edge is being fully removed: the walk must
continue past the cut point the same way the original algorithm's
truncate-and-regrow does, rather than risk terminating one step early).

Two distinct alpha-draw junctions exist here, and they are handled
asymmetrically on purpose: when forceFirstStep is set, that forced step
consumes its own (possibly skipped) draw above, so the segment generated
past it draws alpha normally at every step. When forceFirstStep is nil,
this call is a natural extension of a walk already in flight rather than
a fresh restart, so no alpha draw happens at the junction — the walk
simply continues from where it was cut, and ordinary alpha draws resume
for the step after that.

Only nodes not already present in the walk's surviving prefix are folded
into the owning ego's personal-hits counter: a walk revisiting a node it
had already visited before truncation must not double count it.
*/
func (mr *MeritRank[NodeData]) recalcInvalidatedWalk(walkID walkstore.WalkId, forceFirstStep *graph.NodeId, skipAlphaOnFirstStep bool) error {
	w := mr.walks.GetWalk(walkID)
	if w == nil {
		return ErrInvalidWalkLength
	}

	prefix := w.Nodes()
	existing := make(map[graph.NodeId]struct{}, len(prefix))
	for _, n := range prefix {
		existing[n] = struct{}{}
	}

	var resumeFrom graph.NodeId
	var segment []graph.NodeId
	var skipJunctionAlpha bool

	if forceFirstStep != nil {
		if !skipAlphaOnFirstStep && mr.rng.Float64() >= mr.Alpha {
			// the forced step itself fails its alpha draw: the walk ends here.
			mr.foldNewNodes(w, existing, nil)
			return nil
		}
		segment = append(segment, *forceFirstStep)
		resumeFrom = *forceFirstStep
		skipJunctionAlpha = false
	} else {
		last, ok := w.LastNode()
		if !ok {
			return ErrInvalidWalkLength
		}
		resumeFrom = last
		skipJunctionAlpha = true
	}

	tail, err := mr.generateWalkSegment(resumeFrom, skipJunctionAlpha)
	if err != nil {
		return err
	}
	segment = append(segment, tail...)

	mr.foldNewNodes(w, existing, segment)
	w.Extend(segment)
	return nil
}

// foldNewNodes increments the owning ego's personal-hits counter for every
// node in segment not already present in existing, updating existing in
// place so repeated calls (there are none today, but future splicing
// logic might chain them) stay correct.
func (mr *MeritRank[NodeData]) foldNewNodes(w *walk.RandomWalk, existing map[graph.NodeId]struct{}, segment []graph.NodeId) {
	ego, ok := w.FirstNode()
	if !ok || len(segment) == 0 {
		return
	}

	c, ok := mr.personalHits[ego]
	if !ok {
		c = counter.New()
		mr.personalHits[ego] = c
	}

	var fresh []graph.NodeId
	for _, n := range segment {
		if _, ok := existing[n]; ok {
			continue
		}
		existing[n] = struct{}{}
		fresh = append(fresh, n)
	}
	c.IncrementUniqueCounts(fresh)
}

// revertCountersForWalkFromPos undoes the personal-hits contribution of
// every node first visited at position >= pos in w, the counterpart to
// foldNewNodes run before a walk's tail is discarded and regrown.
func (mr *MeritRank[NodeData]) revertCountersForWalkFromPos(w *walk.RandomWalk, pos int) {
	ego, ok := w.FirstNode()
	if !ok {
		return
	}
	c, ok := mr.personalHits[ego]
	if !ok {
		return
	}

	nodes := w.Nodes()
	if pos >= len(nodes) {
		return
	}

	seenBefore := make(map[graph.NodeId]struct{}, pos)
	for i := 0; i < pos; i++ {
		seenBefore[nodes[i]] = struct{}{}
	}

	seenAfter := make(map[graph.NodeId]struct{})
	for _, n := range nodes[pos:] {
		if _, ok := seenBefore[n]; ok {
			continue
		}
		if _, ok := seenAfter[n]; ok {
			continue
		}
		seenAfter[n] = struct{}{}
		c.Decrement(n)
	}

	if ASSERT && !c.NonNegative() {
		panic("meritrank: personal hits counter went negative during invalidation")
	}
}

// assertCountersNonNegative checks every ego's personal-hits counter,
// for use by the ASSERT-gated pass at the end of AddEdge.
func (mr *MeritRank[NodeData]) assertCountersNonNegative() {
	for ego, c := range mr.personalHits {
		if !c.NonNegative() {
			panic("meritrank: personal hits counter for ego " + strconv.FormatUint(uint64(ego), 10) + " is negative")
		}
	}
}

// assertCountersConsistentWithVisits cross-checks every ego's personal-hits
// counter against the walks arena itself: personalHits[ego].Get(peer) must
// equal the number of walks through peer whose first node is ego. weight is
// the weight AddEdge just installed; when the edge added was positive and a
// peer has a nonzero count, that peer must also be reachable from ego, since
// a hit can only have come from a walk that actually stepped there.
func (mr *MeritRank[NodeData]) assertCountersConsistentWithVisits(weight graph.Weight) {
	for ego, hits := range mr.personalHits {
		for _, peer := range hits.Keys() {
			count := hits.Get(peer)

			var walksFromEgo float64
			for walkID := range mr.walks.GetVisitsThroughNode(peer) {
				w := mr.walks.GetWalk(walkID)
				if w == nil {
					continue
				}
				if first, ok := w.FirstNode(); ok && first == ego {
					walksFromEgo++
				}
			}

			if walksFromEgo != count {
				panic("meritrank: personalHits[" +
					strconv.FormatUint(uint64(ego), 10) + "][" +
					strconv.FormatUint(uint64(peer), 10) + "] = " +
					strconv.FormatFloat(count, 'g', -1, 64) +
					" but visits index reports " +
					strconv.FormatFloat(walksFromEgo, 'g', -1, 64) + " matching walks")
			}

			if count > 0 && weight > graph.EPSILON && !mr.Graph.IsConnecting(ego, peer) {
				panic("meritrank: personalHits[" +
					strconv.FormatUint(uint64(ego), 10) + "][" +
					strconv.FormatUint(uint64(peer), 10) +
					"] is nonzero but the peer is not reachable from ego")
			}
		}
	}
}
