package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Bunka-lab/epstein-files/pkg/ai"
	"github.com/Bunka-lab/epstein-files/pkg/common"
	"github.com/Bunka-lab/epstein-files/pkg/config"
)

type mockClient struct {
	mentions map[string][]map[string]any
	failing  map[string]bool
}

func (m *mockClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	threadID := ""
	for _, line := range strings.Split(prompt, "\n") {
		if after, ok := strings.CutPrefix(line, "ID:"); ok {
			threadID = after
			break
		}
	}
	if m.failing[threadID] {
		return errors.New("service unavailable")
	}
	payload, err := json.Marshal(map[string]any{"mentions": m.mentions[threadID]})
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, out)
}

func (m *mockClient) ResetMetrics()               {}
func (m *mockClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{TotalTokens: 7} }

// memoryStorage captures stage writes for assertions.
type memoryStorage struct {
	lock        sync.Mutex
	discussions []common.Discussion
	mentions    []common.MentionRecord
	identities  []common.CanonicalIdentity
	edges       []common.CoOccurrenceEdge
	stats       []common.NodeStat
	communities []common.Community
	runs        []common.ClassificationRun
}

func (s *memoryStorage) LoadDiscussions(ctx context.Context) ([]common.Discussion, error) {
	return s.discussions, nil
}

func (s *memoryStorage) ReplaceMentions(ctx context.Context, runID string, records []common.MentionRecord) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.mentions = records
	return nil
}

func (s *memoryStorage) ReplaceIdentities(ctx context.Context, runID string, identities []common.CanonicalIdentity) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.identities = identities
	return nil
}

func (s *memoryStorage) ReplaceEdges(ctx context.Context, runID string, edges []common.CoOccurrenceEdge) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.edges = edges
	return nil
}

func (s *memoryStorage) ReplaceNodeStats(ctx context.Context, runID string, stats []common.NodeStat) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.stats = stats
	return nil
}

func (s *memoryStorage) ReplaceCommunities(ctx context.Context, runID string, communities []common.Community) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.communities = communities
	return nil
}

func (s *memoryStorage) SaveRun(ctx context.Context, run common.ClassificationRun) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *memoryStorage) LoadRuns(ctx context.Context) ([]common.ClassificationRun, error) {
	return s.runs, nil
}

func mentionRow(name string) map[string]any {
	return map[string]any{"name": name, "role": "mentioned", "count": 1}
}

func TestRunEndToEnd(t *testing.T) {
	client := &mockClient{
		mentions: map[string][]map[string]any{
			"T1": {mentionRow("Alice Adams"), mentionRow("Bob Brown")},
			"T2": {mentionRow("Alice Adams"), mentionRow("Bob Brown")},
			"T3": {mentionRow("Alice Adams"), mentionRow("Bob Brown")},
			"T4": {mentionRow("Adams, Alice"), mentionRow("Bob Brown")},
		},
		failing: map[string]bool{"T5": true},
	}
	storage := &memoryStorage{
		discussions: []common.Discussion{
			{ThreadID: "T1", Body: "..."},
			{ThreadID: "T2", Body: "..."},
			{ThreadID: "T3", Body: "..."},
			{ThreadID: "T4", Body: "..."},
			{ThreadID: "T5", Body: "..."},
		},
	}
	cfg := config.Default()
	cfg.MinOccurrence = 2
	cfg.ExtractionMaxRetries = 1
	cfg.ExtractionParallel = 2

	pipe, err := NewPipeline(NewPipelineParams{Client: client, Storage: storage, Config: cfg})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}

	report, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Discussions != 5 {
		t.Errorf("expected 5 discussions, got %d", report.Discussions)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].ThreadID != "T5" {
		t.Errorf("expected T5 to be skipped, got %+v", report.Skipped)
	}
	if report.Mentions != 8 {
		t.Errorf("expected 8 mention records, got %d", report.Mentions)
	}

	// "Adams, Alice" folds into "Alice Adams", leaving two identities
	if report.Identities != 2 {
		t.Fatalf("expected 2 identities, got %+v", storage.identities)
	}
	if len(report.MergeConflicts) != 0 {
		t.Errorf("unexpected merge conflicts %+v", report.MergeConflicts)
	}

	if report.Nodes != 2 || report.Edges != 1 {
		t.Errorf("expected a single 2-node edge, got nodes=%d edges=%d", report.Nodes, report.Edges)
	}
	if storage.edges[0].Weight != 4 {
		t.Errorf("expected co-occurrence weight 4, got %d", storage.edges[0].Weight)
	}
	if len(storage.stats) != 2 || storage.stats[0].Degree != 1 || storage.stats[0].WeightedDegree != 4 {
		t.Errorf("unexpected node statistics %+v", storage.stats)
	}

	if report.Communities != 1 {
		t.Errorf("expected 1 community, got %d", report.Communities)
	}
	if len(storage.communities[0].Members) != 2 {
		t.Errorf("expected community of 2 members, got %+v", storage.communities[0])
	}

	wantStages := []string{RunTypeExtraction, RunTypeCanon, RunTypeNetwork, RunTypeCommunity}
	if len(storage.runs) != len(wantStages) {
		t.Fatalf("expected %d lineage runs, got %+v", len(wantStages), storage.runs)
	}
	for i, runType := range wantStages {
		if storage.runs[i].RunType != runType {
			t.Errorf("run %d has type %s, want %s", i, storage.runs[i].RunType, runType)
		}
		if report.RunIDs[runType] != storage.runs[i].RunID {
			t.Errorf("report run id for %s disagrees with persisted run", runType)
		}
	}

	if report.Metrics.TotalTokens != 7 {
		t.Errorf("expected model metrics to be carried into the report, got %+v", report.Metrics)
	}
}

func TestRunRemovalListPropagates(t *testing.T) {
	client := &mockClient{
		mentions: map[string][]map[string]any{
			"T1": {mentionRow("Jeffrey Epstein"), mentionRow("Alice Adams"), mentionRow("Bob Brown")},
			"T2": {mentionRow("Alice Adams"), mentionRow("Bob Brown")},
		},
	}
	storage := &memoryStorage{
		discussions: []common.Discussion{
			{ThreadID: "T1", Body: "..."},
			{ThreadID: "T2", Body: "..."},
		},
	}
	cfg := config.Default()
	cfg.MinOccurrence = 1
	cfg.RemovalList = []string{"Jeffrey Epstein"}

	pipe, err := NewPipeline(NewPipelineParams{Client: client, Storage: storage, Config: cfg})
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	report, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(report.RemovedVariants) != 1 || report.RemovedVariants[0] != "Jeffrey Epstein" {
		t.Errorf("expected removed variant to be reported, got %v", report.RemovedVariants)
	}
	for _, identity := range storage.identities {
		if identity.DisplayName == "Jeffrey Epstein" {
			t.Error("removal-listed name reached the identity table")
		}
	}
	for _, edge := range storage.edges {
		for _, id := range []string{edge.SourceID, edge.TargetID} {
			for _, identity := range storage.identities {
				if identity.ID == id && identity.DisplayName == "Jeffrey Epstein" {
					t.Error("removal-listed name reached the edge table")
				}
			}
		}
	}
}

func TestNewPipelineValidatesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MinOccurrence = 0

	_, err := NewPipeline(NewPipelineParams{
		Client:  &mockClient{},
		Storage: &memoryStorage{},
		Config:  cfg,
	})
	var cfgErr *config.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}
