// The counter package defines a minimalistic multiset counter over node ids.
package counter

import "github.com/vertex-lab/meritrank/pkg/graph"

// Counter is a multiset: for each node id it tracks a nonnegative count,
// plus the running sum of all counts (totalCount).
type Counter struct {
	counts     map[graph.NodeId]float64
	totalCount float64
}

// New returns an empty Counter.
func New() *Counter {
	return &Counter{counts: make(map[graph.NodeId]float64)}
}

// Get returns the count for nodeID, or 0 if it was never incremented.
func (c *Counter) Get(nodeID graph.NodeId) float64 {
	if c == nil {
		return 0
	}
	return c.counts[nodeID]
}

// TotalCount returns the sum of all counts.
func (c *Counter) TotalCount() float64 {
	if c == nil {
		return 0
	}
	return c.totalCount
}

// Keys returns every node id with a nonzero count.
func (c *Counter) Keys() []graph.NodeId {
	if c == nil {
		return nil
	}
	keys := make([]graph.NodeId, 0, len(c.counts))
	for id, v := range c.counts {
		if v == 0 {
			continue
		}
		keys = append(keys, id)
	}
	return keys
}

// IncrementUniqueCounts adds +1 to each distinct node id in nodeIDs and
// increases totalCount by the number of distinct ids added. Duplicates
// within a single call do not re-increment.
func (c *Counter) IncrementUniqueCounts(nodeIDs []graph.NodeId) {
	if c == nil || len(nodeIDs) == 0 {
		return
	}

	seen := make(map[graph.NodeId]struct{}, len(nodeIDs))
	for _, id := range nodeIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		c.counts[id]++
		c.totalCount++
	}
}

// Decrement subtracts 1 from nodeID's count and from totalCount. Used only
// by invalidation rollback (meritrank's revertCountersForWalkFromPos); it is the
// caller's responsibility to ensure the result stays nonnegative.
func (c *Counter) Decrement(nodeID graph.NodeId) {
	if c == nil {
		return
	}
	c.counts[nodeID]--
	c.totalCount--
}

// NonNegative reports whether every count in the Counter is >= 0. Used by
// the ASSERT-gated consistency checks.
func (c *Counter) NonNegative() bool {
	if c == nil {
		return true
	}
	for _, v := range c.counts {
		if v < 0 {
			return false
		}
	}
	return true
}
