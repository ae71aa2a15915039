package network

import (
	"fmt"
	"sort"

	"github.com/Bunka-lab/epstein-files/pkg/ai"
	"github.com/Bunka-lab/epstein-files/pkg/canon"
	"github.com/Bunka-lab/epstein-files/pkg/common"
	"github.com/Bunka-lab/epstein-files/pkg/config"
	"github.com/Bunka-lab/epstein-files/pkg/logger"
)

// A Graph is the co-occurrence network over canonical identities. Nodes
// and edges are deterministically ordered, so two builds over the same
// input compare equal.
type Graph struct {
	Nodes []common.CanonicalIdentity
	Edges []common.CoOccurrenceEdge
	// Stats holds per-node occurrence and degree figures, aligned with
	// Nodes.
	Stats []common.NodeStat
	// Pruned lists the identity ids dropped by the occurrence threshold,
	// sorted.
	Pruned []string
}

// A Builder constructs co-occurrence graphs from canonicalized mentions.
// A Builder should be created using NewBuilder.
type Builder struct {
	minOccurrence int
	exampleCap    int
}

// NewBuilderParams holds the arguments for creating a Builder.
type NewBuilderParams struct {
	Config *config.Config
}

func NewBuilder(params NewBuilderParams) (*Builder, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("network: config is required")
	}
	return &Builder{
		minOccurrence: params.Config.MinOccurrence,
		exampleCap:    params.Config.EdgeExampleCap,
	}, nil
}

// Build groups the mentions by discussion and links every unordered pair
// of distinct canonical identities appearing in the same discussion.
// Identities below the occurrence threshold are pruned first; an edge
// touching a pruned identity is dropped entirely. Edge weight counts
// linking discussions, and each edge keeps the first few discussion ids as
// examples, earliest discussion id first.
func (b *Builder) Build(records []common.MentionRecord, resolution *canon.Resolution) *Graph {
	graph := &Graph{}

	surviving := make(map[string]bool)
	for _, identity := range resolution.Identities {
		if identity.Occurrences >= b.minOccurrence {
			surviving[identity.ID] = true
			graph.Nodes = append(graph.Nodes, identity)
		} else {
			graph.Pruned = append(graph.Pruned, identity.ID)
		}
	}
	sort.Slice(graph.Nodes, func(i, j int) bool {
		return graph.Nodes[i].ID < graph.Nodes[j].ID
	})
	sort.Strings(graph.Pruned)

	// identities per discussion, pruned ones excluded. Assignment keys are
	// normalized names, so raw records resolve even when callers skipped
	// normalization.
	byThread := make(map[string]map[string]bool)
	for _, record := range records {
		id, ok := resolution.Assignment[ai.NormalizeName(record.RawName)]
		if !ok || !surviving[id] {
			continue
		}
		if byThread[record.ThreadID] == nil {
			byThread[record.ThreadID] = make(map[string]bool)
		}
		byThread[record.ThreadID][id] = true
	}

	// Discussions are visited in sorted id order, so the capped example
	// lists do not depend on ingestion order.
	threads := make([]string, 0, len(byThread))
	for thread := range byThread {
		threads = append(threads, thread)
	}
	sort.Strings(threads)

	type edgeKey struct{ source, target string }
	weights := make(map[edgeKey]int)
	examples := make(map[edgeKey][]string)
	for _, thread := range threads {
		ids := make([]string, 0, len(byThread[thread]))
		for id := range byThread[thread] {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				key := edgeKey{source: ids[i], target: ids[j]}
				weights[key]++
				if len(examples[key]) < b.exampleCap {
					examples[key] = append(examples[key], thread)
				}
			}
		}
	}

	graph.Edges = make([]common.CoOccurrenceEdge, 0, len(weights))
	for key, weight := range weights {
		graph.Edges = append(graph.Edges, common.CoOccurrenceEdge{
			SourceID: key.source,
			TargetID: key.target,
			Weight:   weight,
			Examples: examples[key],
		})
	}
	sort.Slice(graph.Edges, func(i, j int) bool {
		if graph.Edges[i].SourceID != graph.Edges[j].SourceID {
			return graph.Edges[i].SourceID < graph.Edges[j].SourceID
		}
		return graph.Edges[i].TargetID < graph.Edges[j].TargetID
	})

	degree := make(map[string]int)
	weighted := make(map[string]int)
	for _, edge := range graph.Edges {
		degree[edge.SourceID]++
		degree[edge.TargetID]++
		weighted[edge.SourceID] += edge.Weight
		weighted[edge.TargetID] += edge.Weight
	}
	graph.Stats = make([]common.NodeStat, 0, len(graph.Nodes))
	for _, node := range graph.Nodes {
		graph.Stats = append(graph.Stats, common.NodeStat{
			IdentityID:     node.ID,
			DisplayName:    node.DisplayName,
			Occurrences:    node.Occurrences,
			Degree:         degree[node.ID],
			WeightedDegree: weighted[node.ID],
		})
	}

	logger.Info("[Network] graph built",
		"nodes", len(graph.Nodes),
		"edges", len(graph.Edges),
		"pruned", len(graph.Pruned),
		"discussions", len(threads))
	return graph
}
