package community

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/Bunka-lab/epstein-files/pkg/common"
	"github.com/Bunka-lab/epstein-files/pkg/config"
	"github.com/Bunka-lab/epstein-files/pkg/logger"
	"github.com/Bunka-lab/epstein-files/pkg/network"
)

// A Detector partitions a co-occurrence graph into communities by seeded
// modularity optimization: local moving until no single move improves
// modularity, then aggregation of each community into a super-node, and
// recursion on the aggregate. The seed fixes the node visit order, so a
// given graph and seed always yield the same partition.
//
// A Detector should be created using NewDetector.
type Detector struct {
	maxIterations int
	seed          int64
}

// NewDetectorParams holds the arguments for creating a Detector.
type NewDetectorParams struct {
	Config *config.Config
}

func NewDetector(params NewDetectorParams) (*Detector, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("community: config is required")
	}
	return &Detector{
		maxIterations: params.Config.CommunityIterations,
		seed:          params.Config.CommunitySeed,
	}, nil
}

// levelGraph is one aggregation level. Node i carries the original
// identity ids it has absorbed.
type levelGraph struct {
	members [][]string
	adj     []map[int]float64
	loops   []float64 // self-loop weight from collapsed intra-community edges
}

// Detect partitions the surviving nodes of the graph. Nodes are the
// identities left after threshold pruning; isolated nodes end up in
// singleton communities. Hitting the iteration bound is not an error, the
// last stable partition is returned.
func (d *Detector) Detect(graph *network.Graph) []common.Community {
	index := make(map[string]int, len(graph.Nodes))
	level := &levelGraph{
		members: make([][]string, len(graph.Nodes)),
		adj:     make([]map[int]float64, len(graph.Nodes)),
		loops:   make([]float64, len(graph.Nodes)),
	}
	for i, node := range graph.Nodes {
		index[node.ID] = i
		level.members[i] = []string{node.ID}
		level.adj[i] = make(map[int]float64)
	}
	for _, edge := range graph.Edges {
		src, dst := index[edge.SourceID], index[edge.TargetID]
		level.adj[src][dst] += float64(edge.Weight)
		level.adj[dst][src] += float64(edge.Weight)
	}

	rng := rand.New(rand.NewSource(d.seed))
	generation := 0
	for generation < d.maxIterations {
		assignment := d.localMove(level, rng)

		distinct := make(map[int]bool)
		for _, c := range assignment {
			distinct[c] = true
		}
		if len(distinct) == len(level.members) {
			// no community absorbed another node, converged
			break
		}
		level = aggregate(level, assignment)
		generation++
	}
	if generation == d.maxIterations {
		logger.Warn("[Community] iteration bound reached before convergence",
			"iterations", d.maxIterations)
	}

	communities := make([]common.Community, 0, len(level.members))
	order := make([]int, len(level.members))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return level.members[order[a]][0] < level.members[order[b]][0]
	})
	for i, idx := range order {
		members := make([]string, len(level.members[idx]))
		copy(members, level.members[idx])
		sort.Strings(members)
		communities = append(communities, common.Community{
			ID:         fmt.Sprintf("community-%04d", i+1),
			Members:    members,
			Generation: generation,
		})
	}

	logger.Info("[Community] detection finished",
		"nodes", len(graph.Nodes),
		"communities", len(communities),
		"generations", generation)
	return communities
}

// localMove runs the local-moving phase on one level and returns the
// community assignment per node. Node visit order is a seeded permutation,
// fixed for a given seed. Ties between equally good destination
// communities go to the lowest community id.
func (d *Detector) localMove(level *levelGraph, rng *rand.Rand) []int {
	n := len(level.members)
	assignment := make([]int, n)
	degree := make([]float64, n)
	commTotal := make([]float64, n)
	var m2 float64 // twice the total edge weight
	for i := 0; i < n; i++ {
		assignment[i] = i
		for _, w := range level.adj[i] {
			degree[i] += w
		}
		degree[i] += 2 * level.loops[i]
		commTotal[i] = degree[i]
		m2 += degree[i]
	}
	if m2 == 0 {
		return assignment
	}

	visit := rng.Perm(n)
	for moved := true; moved; {
		moved = false
		for _, node := range visit {
			current := assignment[node]

			// weight from node into each neighboring community
			linked := make(map[int]float64)
			for neighbor, w := range level.adj[node] {
				linked[assignment[neighbor]] += w
			}

			candidates := make([]int, 0, len(linked)+1)
			for c := range linked {
				candidates = append(candidates, c)
			}
			if _, ok := linked[current]; !ok {
				candidates = append(candidates, current)
			}
			sort.Ints(candidates)

			commTotal[current] -= degree[node]
			baseline := linked[current] - commTotal[current]*degree[node]/m2

			// candidates are ascending, so a strict comparison gives
			// ties to the lowest community id
			best, bestGain := current, 0.0
			for _, c := range candidates {
				if c == current {
					continue
				}
				gain := linked[c] - commTotal[c]*degree[node]/m2 - baseline
				if gain > bestGain {
					best, bestGain = c, gain
				}
			}

			commTotal[best] += degree[node]
			if best != current {
				assignment[node] = best
				moved = true
			}
		}
	}
	return assignment
}

// aggregate collapses each community of the assignment into a super-node.
// Super-nodes are numbered by ascending community id, and inter-community
// edge weights are summed. Intra-community weight becomes a self-loop so
// degree mass is preserved across levels.
func aggregate(level *levelGraph, assignment []int) *levelGraph {
	ids := make([]int, 0)
	seen := make(map[int]bool)
	for _, c := range assignment {
		if !seen[c] {
			seen[c] = true
			ids = append(ids, c)
		}
	}
	sort.Ints(ids)
	renumber := make(map[int]int, len(ids))
	for i, c := range ids {
		renumber[c] = i
	}

	next := &levelGraph{
		members: make([][]string, len(ids)),
		adj:     make([]map[int]float64, len(ids)),
		loops:   make([]float64, len(ids)),
	}
	for i := range next.adj {
		next.adj[i] = make(map[int]float64)
	}
	for node, c := range assignment {
		super := renumber[c]
		next.members[super] = append(next.members[super], level.members[node]...)
		next.loops[super] += level.loops[node]
	}
	for node := range level.adj {
		src := renumber[assignment[node]]
		for neighbor, w := range level.adj[node] {
			dst := renumber[assignment[neighbor]]
			if src == dst {
				// each undirected edge is stored twice
				next.loops[src] += w / 2
			} else {
				next.adj[src][dst] += w
			}
		}
	}
	for i := range next.members {
		sort.Strings(next.members[i])
	}
	return next
}
