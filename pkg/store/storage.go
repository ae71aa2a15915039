package store

import (
	"context"

	"github.com/Bunka-lab/epstein-files/pkg/common"
)

// PipelineStorage is the persistence boundary of the pipeline. Reads take
// a consistent snapshot; writes replace a stage's whole output table in
// one transaction, so a table never holds a mix of two runs. Rows are
// tagged with the id of the run that produced them.
type PipelineStorage interface {
	// LoadDiscussions reads the full discussion snapshot the pipeline
	// operates on.
	LoadDiscussions(ctx context.Context) ([]common.Discussion, error)

	ReplaceMentions(ctx context.Context, runID string, records []common.MentionRecord) error
	ReplaceIdentities(ctx context.Context, runID string, identities []common.CanonicalIdentity) error
	ReplaceEdges(ctx context.Context, runID string, edges []common.CoOccurrenceEdge) error
	ReplaceNodeStats(ctx context.Context, runID string, stats []common.NodeStat) error
	ReplaceCommunities(ctx context.Context, runID string, communities []common.Community) error

	// SaveRun upserts a lineage node by run id.
	SaveRun(ctx context.Context, run common.ClassificationRun) error
	LoadRuns(ctx context.Context) ([]common.ClassificationRun, error)
}
