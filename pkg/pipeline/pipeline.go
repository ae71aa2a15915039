package pipeline

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/Bunka-lab/epstein-files/pkg/ai"
	"github.com/Bunka-lab/epstein-files/pkg/canon"
	"github.com/Bunka-lab/epstein-files/pkg/common"
	"github.com/Bunka-lab/epstein-files/pkg/community"
	"github.com/Bunka-lab/epstein-files/pkg/config"
	"github.com/Bunka-lab/epstein-files/pkg/ingest"
	"github.com/Bunka-lab/epstein-files/pkg/lineage"
	"github.com/Bunka-lab/epstein-files/pkg/logger"
	"github.com/Bunka-lab/epstein-files/pkg/network"
	"github.com/Bunka-lab/epstein-files/pkg/store"
)

// stage run types recorded in the lineage DAG
const (
	RunTypeExtraction = "name_extraction"
	RunTypeCanon      = "name_canonicalization"
	RunTypeNetwork    = "network_build"
	RunTypeCommunity  = "community_detection"
)

// A RunReport consolidates everything a pipeline run produced besides its
// data artifacts: per-stage run ids, counts, the non-fatal problems that
// accumulated along the way and the model usage totals.
type RunReport struct {
	RunIDs         map[string]string
	StageDurations map[string]time.Duration
	Duration       time.Duration

	Discussions int
	Mentions    int
	Skipped     []common.SkippedDiscussion

	Identities      int
	RemovedVariants []string
	MergeConflicts  []canon.MergeConflict

	Nodes            int
	Edges            int
	PrunedIdentities []string

	Communities int

	Metrics ai.ModelMetrics
}

// A Pipeline wires the four stages together and records their lineage. A
// Pipeline should be created using NewPipeline. Stages run strictly in
// order; each one consumes the complete output of its predecessor.
type Pipeline struct {
	client   ai.ExtractionAIClient
	storage  store.PipelineStorage
	cfg      *config.Config
	tracker  *lineage.Tracker
	ingestor *ingest.Ingestor
	engine   *canon.Engine
	builder  *network.Builder
	detector *community.Detector
}

// NewPipelineParams holds the arguments for creating a Pipeline. Tracker is optional;
// a fresh one is created when it is nil.
type NewPipelineParams struct {
	Client  ai.ExtractionAIClient
	Storage store.PipelineStorage
	Config  *config.Config
	Tracker *lineage.Tracker
}

func NewPipeline(params NewPipelineParams) (*Pipeline, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("pipeline: extraction client is required")
	}
	if params.Storage == nil {
		return nil, fmt.Errorf("pipeline: storage is required")
	}
	if params.Config == nil {
		return nil, fmt.Errorf("pipeline: config is required")
	}
	if err := params.Config.Validate(); err != nil {
		return nil, err
	}

	ingestor := ingest.NewIngestor(ingest.NewIngestorParams{
		Client:     params.Client,
		Parallel:   params.Config.ExtractionParallel,
		MaxRetries: params.Config.ExtractionMaxRetries,
	})
	engine, err := canon.NewEngine(canon.NewEngineParams{Config: params.Config})
	if err != nil {
		return nil, err
	}
	builder, err := network.NewBuilder(network.NewBuilderParams{Config: params.Config})
	if err != nil {
		return nil, err
	}
	detector, err := community.NewDetector(community.NewDetectorParams{Config: params.Config})
	if err != nil {
		return nil, err
	}

	tracker := params.Tracker
	if tracker == nil {
		tracker = lineage.NewTracker()
	}

	return &Pipeline{
		client:   params.Client,
		storage:  params.Storage,
		cfg:      params.Config,
		tracker:  tracker,
		ingestor: ingestor,
		engine:   engine,
		builder:  builder,
		detector: detector,
	}, nil
}

// Run executes the full pipeline against the stored discussion snapshot
// and returns the consolidated report. A lineage cycle aborts before the
// affected stage writes anything; extraction failures and merge conflicts
// are collected into the report instead of failing the run.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunIDs:         make(map[string]string),
		StageDurations: make(map[string]time.Duration),
	}
	started := time.Now()
	p.client.ResetMetrics()

	discussions, err := p.storage.LoadDiscussions(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: loading discussions: %w", err)
	}
	report.Discussions = len(discussions)
	logger.Info("[Pipeline] run starting", "discussions", len(discussions))

	// stage 1: mention extraction
	records, err := p.runExtraction(ctx, discussions, report)
	if err != nil {
		return nil, err
	}

	// stage 2: canonicalization
	resolution, err := p.runCanonicalization(ctx, records, report)
	if err != nil {
		return nil, err
	}

	// stage 3: co-occurrence graph
	graph, err := p.runNetwork(ctx, records, resolution, report)
	if err != nil {
		return nil, err
	}

	// stage 4: community detection
	if err := p.runCommunities(ctx, graph, report); err != nil {
		return nil, err
	}

	report.Metrics = p.client.GetMetrics()
	report.Duration = time.Since(started)
	logger.Info("[Pipeline] run finished",
		"duration", report.Duration.Round(time.Millisecond),
		"identities", report.Identities,
		"edges", report.Edges,
		"communities", report.Communities,
		"skipped", len(report.Skipped))
	return report, nil
}

func (p *Pipeline) runExtraction(ctx context.Context, discussions []common.Discussion, report *RunReport) ([]common.MentionRecord, error) {
	started := time.Now()
	records, skipped, err := p.ingestor.Run(ctx, discussions)
	if err != nil {
		return nil, fmt.Errorf("pipeline: extraction stage: %w", err)
	}

	runID, err := p.registerRun(ctx, RunTypeExtraction,
		[]string{"discussions.body"},
		[]string{"mentions.raw_name", "mentions.thread_id"})
	if err != nil {
		return nil, err
	}
	if err := p.storage.ReplaceMentions(ctx, runID, records); err != nil {
		return nil, fmt.Errorf("pipeline: writing mentions: %w", err)
	}

	report.RunIDs[RunTypeExtraction] = runID
	report.StageDurations[RunTypeExtraction] = time.Since(started)
	report.Mentions = len(records)
	report.Skipped = skipped
	return records, nil
}

func (p *Pipeline) runCanonicalization(ctx context.Context, records []common.MentionRecord, report *RunReport) (*canon.Resolution, error) {
	started := time.Now()
	resolution, err := p.engine.Resolve(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("pipeline: canonicalization stage: %w", err)
	}

	runID, err := p.registerRun(ctx, RunTypeCanon,
		[]string{"mentions.raw_name", "mentions.thread_id"},
		[]string{"identities.identity_id", "identities.display_name"})
	if err != nil {
		return nil, err
	}
	if err := p.storage.ReplaceIdentities(ctx, runID, resolution.Identities); err != nil {
		return nil, fmt.Errorf("pipeline: writing identities: %w", err)
	}

	report.RunIDs[RunTypeCanon] = runID
	report.StageDurations[RunTypeCanon] = time.Since(started)
	report.Identities = len(resolution.Identities)
	report.RemovedVariants = resolution.Removed
	report.MergeConflicts = resolution.Conflicts
	return resolution, nil
}

func (p *Pipeline) runNetwork(ctx context.Context, records []common.MentionRecord, resolution *canon.Resolution, report *RunReport) (*network.Graph, error) {
	started := time.Now()
	graph := p.builder.Build(records, resolution)

	runID, err := p.registerRun(ctx, RunTypeNetwork,
		[]string{"identities.identity_id", "mentions.thread_id"},
		[]string{"edges.source_id", "edges.target_id", "edges.weight", "nodes.identity_id"})
	if err != nil {
		return nil, err
	}
	if err := p.storage.ReplaceEdges(ctx, runID, graph.Edges); err != nil {
		return nil, fmt.Errorf("pipeline: writing edges: %w", err)
	}
	if err := p.storage.ReplaceNodeStats(ctx, runID, graph.Stats); err != nil {
		return nil, fmt.Errorf("pipeline: writing node statistics: %w", err)
	}

	report.RunIDs[RunTypeNetwork] = runID
	report.StageDurations[RunTypeNetwork] = time.Since(started)
	report.Nodes = len(graph.Nodes)
	report.Edges = len(graph.Edges)
	report.PrunedIdentities = graph.Pruned
	return graph, nil
}

func (p *Pipeline) runCommunities(ctx context.Context, graph *network.Graph, report *RunReport) error {
	started := time.Now()
	communities := p.detector.Detect(graph)

	runID, err := p.registerRun(ctx, RunTypeCommunity,
		[]string{"edges.source_id", "edges.target_id", "edges.weight"},
		[]string{"communities.community_id", "communities.members"})
	if err != nil {
		return err
	}
	if err := p.storage.ReplaceCommunities(ctx, runID, communities); err != nil {
		return fmt.Errorf("pipeline: writing communities: %w", err)
	}

	report.RunIDs[RunTypeCommunity] = runID
	report.StageDurations[RunTypeCommunity] = time.Since(started)
	report.Communities = len(communities)
	return nil
}

// registerRun records a stage in the lineage DAG and persists it. The
// lineage check runs before anything is written, so a cycle aborts the
// stage cleanly.
func (p *Pipeline) registerRun(ctx context.Context, runType string, inputs, outputs []string) (string, error) {
	suffix, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("pipeline: generating run id: %w", err)
	}
	run := common.ClassificationRun{
		RunID:     fmt.Sprintf("%s-%s", runType, suffix),
		RunType:   runType,
		Inputs:    inputs,
		Outputs:   outputs,
		Timestamp: time.Now().UTC(),
	}
	if err := p.tracker.Register(run); err != nil {
		return "", fmt.Errorf("pipeline: registering %s run: %w", runType, err)
	}
	if err := p.storage.SaveRun(ctx, run); err != nil {
		return "", fmt.Errorf("pipeline: persisting %s run: %w", runType, err)
	}
	return run.RunID, nil
}
