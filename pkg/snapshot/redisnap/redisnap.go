/*
The redisnap package writes pieces of a MeritRank instance's state (run
metadata, a node's out-edges, single walks) to Redis and reads them back.
It is a sidecar: nothing in pkg/meritrank depends on it, and a caller that
never configures Redis never touches this package.

Layout, one key space per MeritRank instance (prefix is caller-chosen,
typically the ego set's name):

  <prefix>:meta              hash: alpha, walksPerNode
  <prefix>:edges:<id>        hash: dst -> weight, formatted
  <prefix>:walk:<id>         string: comma-joined node ids

Node payloads (NodeData) are not stored by this package.
*/
package redisnap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/vertex-lab/meritrank/pkg/graph"
	"github.com/vertex-lab/meritrank/pkg/walk"
)

var (
	ErrNilClient   = errors.New("redisnap: nil redis client")
	ErrEmptySnap   = errors.New("redisnap: no snapshot found at prefix")
	ErrInvalidMeta = errors.New("redisnap: invalid or missing meta fields")
)

// Snapshotter writes and reads a graph/walk snapshot under a key prefix.
type Snapshotter struct {
	client *redis.Client
	prefix string
}

// New returns a Snapshotter that reads and writes keys under prefix.
func New(client *redis.Client, prefix string) (*Snapshotter, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &Snapshotter{client: client, prefix: strings.TrimSuffix(prefix, ":")}, nil
}

func (s *Snapshotter) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

// metaFields mirrors the configuration a reload needs besides the
// graph/walks themselves: the damping factor walks were generated with and
// the number of walks per node.
type metaFields struct {
	Alpha        float64 `redis:"alpha"`
	WalksPerNode int     `redis:"walksPerNode"`
}

// SaveMeta writes alpha and walksPerNode under <prefix>:meta.
func (s *Snapshotter) SaveMeta(ctx context.Context, alpha graph.Weight, walksPerNode int) error {
	fields := metaFields{Alpha: alpha, WalksPerNode: walksPerNode}
	return s.client.HSet(ctx, s.key("meta"), fields).Err()
}

// LoadMeta reads back the fields SaveMeta wrote.
func (s *Snapshotter) LoadMeta(ctx context.Context) (alpha graph.Weight, walksPerNode int, err error) {
	res := s.client.HMGet(ctx, s.key("meta"), "alpha", "walksPerNode")
	if err := res.Err(); err != nil {
		return 0, 0, err
	}
	vals := res.Val()
	if vals[0] == nil || vals[1] == nil {
		return 0, 0, ErrEmptySnap
	}

	var fields metaFields
	if err := res.Scan(&fields); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidMeta, err)
	}
	return fields.Alpha, fields.WalksPerNode, nil
}

// SaveEdges writes every out-edge of nodeID (positive and negative alike)
// as a single Redis hash, dst -> formatted weight.
func (s *Snapshotter) SaveEdges(ctx context.Context, nodeID graph.NodeId, edges map[graph.NodeId]graph.Weight) error {
	if len(edges) == 0 {
		return nil
	}
	fields := make(map[string]string, len(edges))
	for dst, w := range edges {
		fields[FormatID(dst)] = FormatWeight(w)
	}
	return s.client.HSet(ctx, s.key("edges", FormatID(nodeID)), fields).Err()
}

// LoadEdges reads back the hash SaveEdges wrote for nodeID.
func (s *Snapshotter) LoadEdges(ctx context.Context, nodeID graph.NodeId) (map[graph.NodeId]graph.Weight, error) {
	res, err := s.client.HGetAll(ctx, s.key("edges", FormatID(nodeID))).Result()
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}

	edges := make(map[graph.NodeId]graph.Weight, len(res))
	for dstStr, wStr := range res {
		dst, err := ParseID(dstStr)
		if err != nil {
			return nil, err
		}
		w, err := ParseWeight(wStr)
		if err != nil {
			return nil, err
		}
		edges[dst] = w
	}
	return edges, nil
}

// SaveWalk writes walkID's node sequence as a comma-joined string.
func (s *Snapshotter) SaveWalk(ctx context.Context, walkID uint64, w *walk.RandomWalk) error {
	return s.client.Set(ctx, s.key("walk", strconv.FormatUint(walkID, 10)), FormatWalk(w.Nodes()), 0).Err()
}

// LoadWalk reads back the node sequence SaveWalk wrote, and reconstructs a
// RandomWalk decaying at rate alpha.
func (s *Snapshotter) LoadWalk(ctx context.Context, walkID uint64, alpha graph.Weight) (*walk.RandomWalk, error) {
	str, err := s.client.Get(ctx, s.key("walk", strconv.FormatUint(walkID, 10))).Result()
	if err != nil {
		return nil, err
	}
	nodes, err := ParseWalk(str)
	if err != nil {
		return nil, err
	}
	return walk.FromNodes(alpha, nodes), nil
}

// FormatWalk formats a node sequence into the string SaveWalk/LoadWalk use.
func FormatWalk(nodes []graph.NodeId) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = FormatID(n)
	}
	return strings.Join(parts, ",")
}

// ParseWalk is the inverse of FormatWalk.
func ParseWalk(str string) ([]graph.NodeId, error) {
	if len(str) == 0 {
		return nil, nil
	}
	parts := strings.Split(str, ",")
	nodes := make([]graph.NodeId, len(parts))
	for i, p := range parts {
		id, err := ParseID(p)
		if err != nil {
			return nil, err
		}
		nodes[i] = id
	}
	return nodes, nil
}

// FormatID formats a node id for storage as a Redis hash field / key segment.
func FormatID(id graph.NodeId) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID is the inverse of FormatID.
func ParseID(str string) (graph.NodeId, error) {
	v, err := strconv.ParseUint(str, 10, 32)
	return graph.NodeId(v), err
}

// FormatWeight formats an edge weight for storage.
func FormatWeight(w graph.Weight) string {
	return strconv.FormatFloat(w, 'g', -1, 64)
}

// ParseWeight is the inverse of FormatWeight.
func ParseWeight(str string) (graph.Weight, error) {
	return strconv.ParseFloat(str, 64)
}
