package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Bunka-lab/epstein-files/internal/util"
	"github.com/Bunka-lab/epstein-files/pkg/common"
)

func sanitize(value string) string {
	return util.SanitizePostgresText(value)
}

func encodeJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal row payload: %w", err)
	}
	return string(data), nil
}

// ReplaceMentions replaces the mention table with the extraction output of
// the given run.
func (s *PipelineDBStorage) ReplaceMentions(ctx context.Context, runID string, records []common.MentionRecord) error {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{runID, r.ThreadID, string(r.Role), sanitize(r.RawName), r.Count})
	}
	return s.replaceTable(ctx, "mentions",
		`INSERT INTO mentions (run_id, thread_id, role, raw_name, mention_count)
		 VALUES ($1, $2, $3, $4, $5)`, rows)
}

// ReplaceIdentities replaces the identity table with a canonicalization
// run's output.
func (s *PipelineDBStorage) ReplaceIdentities(ctx context.Context, runID string, identities []common.CanonicalIdentity) error {
	rows := make([][]any, 0, len(identities))
	for _, identity := range identities {
		variants, err := encodeJSON(identity.Variants)
		if err != nil {
			return err
		}
		provenance, err := encodeJSON(identity.Provenance)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			runID, identity.ID, sanitize(identity.DisplayName),
			variants, provenance, identity.Occurrences,
		})
	}
	return s.replaceTable(ctx, "identities",
		`INSERT INTO identities (run_id, identity_id, display_name, variants, provenance, occurrences)
		 VALUES ($1, $2, $3, $4, $5, $6)`, rows)
}

// ReplaceEdges replaces the co-occurrence edge table.
func (s *PipelineDBStorage) ReplaceEdges(ctx context.Context, runID string, edges []common.CoOccurrenceEdge) error {
	rows := make([][]any, 0, len(edges))
	for _, edge := range edges {
		examples, err := encodeJSON(edge.Examples)
		if err != nil {
			return err
		}
		rows = append(rows, []any{runID, edge.SourceID, edge.TargetID, edge.Weight, examples})
	}
	return s.replaceTable(ctx, "edges",
		`INSERT INTO edges (run_id, source_id, target_id, weight, examples)
		 VALUES ($1, $2, $3, $4, $5)`, rows)
}

// ReplaceNodeStats replaces the node statistics table.
func (s *PipelineDBStorage) ReplaceNodeStats(ctx context.Context, runID string, stats []common.NodeStat) error {
	rows := make([][]any, 0, len(stats))
	for _, stat := range stats {
		rows = append(rows, []any{
			runID, stat.IdentityID, sanitize(stat.DisplayName),
			stat.Occurrences, stat.Degree, stat.WeightedDegree,
		})
	}
	return s.replaceTable(ctx, "nodes",
		`INSERT INTO nodes (run_id, identity_id, display_name, occurrences, degree, weighted_degree)
		 VALUES ($1, $2, $3, $4, $5, $6)`, rows)
}

// ReplaceCommunities replaces the community table.
func (s *PipelineDBStorage) ReplaceCommunities(ctx context.Context, runID string, communities []common.Community) error {
	rows := make([][]any, 0, len(communities))
	for _, community := range communities {
		members, err := encodeJSON(community.Members)
		if err != nil {
			return err
		}
		rows = append(rows, []any{runID, community.ID, members, community.Generation})
	}
	return s.replaceTable(ctx, "communities",
		`INSERT INTO communities (run_id, community_id, members, generation)
		 VALUES ($1, $2, $3, $4)`, rows)
}
