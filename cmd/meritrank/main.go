// The meritrank command builds a signed weighted graph from a CSV edge
// list, calculates MeritRank for every node in it, and prints the ranks
// each node assigns its peers. Pass -ego to restrict the run to a single
// node's viewpoint.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/vertex-lab/meritrank/pkg/graph"
	"github.com/vertex-lab/meritrank/pkg/logger"
	"github.com/vertex-lab/meritrank/pkg/meritrank"
	"github.com/vertex-lab/meritrank/pkg/snapshot/redisnap"
)

func main() {
	var egoFlag = flag.Int("ego", -1, "restrict the run to this node id's viewpoint (-1: every node)")
	var debugFlag = flag.Bool("debug", false, "print every stored walk after each ego's calculate/update pass")
	flag.Parse()

	config, err := LoadConfig()
	if err != nil {
		panic(err)
	}

	log := logger.New(os.Stdout)

	g, err := loadEdgeList(config.DataPath)
	if err != nil {
		panic(fmt.Errorf("loading %s: %w", config.DataPath, err))
	}

	mr, err := meritrank.New[struct{}](g)
	if err != nil {
		panic(err)
	}
	mr.Alpha = config.Alpha
	mr.OptimizeInvalidation = config.OptimizeInvalidation
	mr.Logger = log

	egos := collectEgos(g, *egoFlag)
	for _, ego := range egos {
		if err := mr.Calculate(ego, config.WalksPerNode); err != nil {
			log.Error("calculate(%d): %v", ego, err)
			continue
		}

		ranks, err := mr.GetRanks(ego, nil)
		if err != nil {
			log.Error("getRanks(%d): %v", ego, err)
			continue
		}

		fmt.Printf("ego %d:\n", ego)
		for _, r := range ranks {
			fmt.Printf("  %d -> %.6f\n", r.Node, r.Score)
		}

		if *debugFlag {
			fmt.Print(mr.DebugWalks())
		}
	}

	if config.RedisSnapshotAddr != "" {
		if err := saveSnapshot(mr, config); err != nil {
			log.Error("saveSnapshot: %v", err)
		}
	}
}

// collectEgos returns []ego if ego >= 0, otherwise every node id in g.
// graph.Graph doesn't expose node enumeration directly, since the core
// algorithm only ever needs per-node adjacency lookups; the demo CLI
// tracks node ids itself while building the graph instead of adding an
// enumeration method the core package doesn't otherwise need.
func collectEgos(g *graph.Graph[struct{}], ego int) []graph.NodeId {
	if ego >= 0 {
		return []graph.NodeId{graph.NodeId(ego)}
	}
	return knownNodes
}

// knownNodes is populated by loadEdgeList as it parses the CSV; see the
// comment on collectEgos for why the CLI tracks this itself.
var knownNodes []graph.NodeId

// loadEdgeList parses a CSV file of "src,dst,weight" lines into a Graph.
func loadEdgeList(path string) (*graph.Graph[struct{}], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	g := graph.New[struct{}]()
	seen := make(map[graph.NodeId]struct{})

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed line %q: expected src,dst,weight", line)
		}

		src, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parsing src in %q: %w", line, err)
		}
		dst, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parsing dst in %q: %w", line, err)
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing weight in %q: %w", line, err)
		}

		srcID, dstID := graph.NodeId(src), graph.NodeId(dst)
		if err := g.AddEdge(srcID, dstID, weight); err != nil {
			return nil, err
		}

		for _, id := range [...]graph.NodeId{srcID, dstID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				knownNodes = append(knownNodes, id)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return g, nil
}

// saveSnapshot writes the run's alpha and walks-per-node to Redis under
// config.SnapshotPrefix. The graph's edges and the walks are not written.
func saveSnapshot(mr *meritrank.MeritRank[struct{}], config *Config) error {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: config.RedisSnapshotAddr})
	defer client.Close()

	snap, err := redisnap.New(client, config.SnapshotPrefix)
	if err != nil {
		return err
	}
	return snap.SaveMeta(ctx, mr.Alpha, config.WalksPerNode)
}
