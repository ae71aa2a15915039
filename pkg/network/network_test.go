package network

import (
	"reflect"
	"testing"

	"github.com/Bunka-lab/epstein-files/pkg/canon"
	"github.com/Bunka-lab/epstein-files/pkg/common"
	"github.com/Bunka-lab/epstein-files/pkg/config"
)

func newTestBuilder(t *testing.T, minOccurrence, exampleCap int) *Builder {
	t.Helper()
	cfg := config.Default()
	cfg.MinOccurrence = minOccurrence
	cfg.EdgeExampleCap = exampleCap
	builder, err := NewBuilder(NewBuilderParams{Config: cfg})
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	return builder
}

// testResolution assigns each display name to its own identity, with the
// occurrence counts given.
func testResolution(occurrences map[string]int) *canon.Resolution {
	resolution := &canon.Resolution{Assignment: make(map[string]string)}
	names := make([]string, 0, len(occurrences))
	for name := range occurrences {
		names = append(names, name)
	}
	// stable ids keyed off sorted name order
	for i, name := range sortedCopy(names) {
		id := identityID(i)
		resolution.Identities = append(resolution.Identities, common.CanonicalIdentity{
			ID:          id,
			DisplayName: name,
			Variants:    []string{name},
			Occurrences: occurrences[name],
		})
		resolution.Assignment[name] = id
	}
	return resolution
}

func sortedCopy(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func identityID(i int) string {
	return []string{"person-0001", "person-0002", "person-0003", "person-0004"}[i]
}

func mention(thread, name string) common.MentionRecord {
	return common.MentionRecord{ThreadID: thread, Role: common.RoleMentioned, RawName: name, Count: 1}
}

func TestBuildEdgeWeights(t *testing.T) {
	builder := newTestBuilder(t, 1, 3)
	resolution := testResolution(map[string]int{"Alice Adams": 3, "Bob Brown": 3})

	// ingestion order deliberately scrambled
	records := []common.MentionRecord{
		mention("T7", "Bob Brown"),
		mention("T3", "Alice Adams"),
		mention("T1", "Bob Brown"),
		mention("T7", "Alice Adams"),
		mention("T1", "Alice Adams"),
		mention("T3", "Bob Brown"),
	}
	graph := builder.Build(records, resolution)

	if len(graph.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %+v", graph.Edges)
	}
	edge := graph.Edges[0]
	if edge.SourceID != "person-0001" || edge.TargetID != "person-0002" {
		t.Errorf("unexpected edge endpoints %+v", edge)
	}
	if edge.Weight != 3 {
		t.Errorf("expected weight 3, got %d", edge.Weight)
	}
	if !reflect.DeepEqual(edge.Examples, []string{"T1", "T3", "T7"}) {
		t.Errorf("expected examples [T1 T3 T7], got %v", edge.Examples)
	}

	wantStats := []common.NodeStat{
		{IdentityID: "person-0001", DisplayName: "Alice Adams", Occurrences: 3, Degree: 1, WeightedDegree: 3},
		{IdentityID: "person-0002", DisplayName: "Bob Brown", Occurrences: 3, Degree: 1, WeightedDegree: 3},
	}
	if !reflect.DeepEqual(graph.Stats, wantStats) {
		t.Errorf("unexpected node statistics:\ngot  %+v\nwant %+v", graph.Stats, wantStats)
	}
}

func TestBuildExampleCap(t *testing.T) {
	builder := newTestBuilder(t, 1, 2)
	resolution := testResolution(map[string]int{"Alice Adams": 4, "Bob Brown": 4})

	var records []common.MentionRecord
	for _, thread := range []string{"T9", "T2", "T5", "T1"} {
		records = append(records, mention(thread, "Alice Adams"), mention(thread, "Bob Brown"))
	}
	graph := builder.Build(records, resolution)

	if len(graph.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %+v", graph.Edges)
	}
	edge := graph.Edges[0]
	if edge.Weight != 4 {
		t.Errorf("expected weight 4, got %d", edge.Weight)
	}
	if !reflect.DeepEqual(edge.Examples, []string{"T1", "T2"}) {
		t.Errorf("expected earliest examples [T1 T2], got %v", edge.Examples)
	}
}

func TestBuildOccurrenceThreshold(t *testing.T) {
	builder := newTestBuilder(t, 3, 3)
	resolution := testResolution(map[string]int{
		"Alice Adams": 5,
		"Bob Brown":   4,
		"Carl Crane":  1,
	})

	records := []common.MentionRecord{
		mention("T1", "Alice Adams"), mention("T1", "Bob Brown"), mention("T1", "Carl Crane"),
		mention("T2", "Alice Adams"), mention("T2", "Carl Crane"),
	}
	graph := builder.Build(records, resolution)

	if len(graph.Nodes) != 2 {
		t.Fatalf("expected 2 surviving nodes, got %+v", graph.Nodes)
	}
	if !reflect.DeepEqual(graph.Pruned, []string{"person-0003"}) {
		t.Errorf("expected pruned [person-0003], got %v", graph.Pruned)
	}
	for _, edge := range graph.Edges {
		if edge.SourceID == "person-0003" || edge.TargetID == "person-0003" {
			t.Errorf("pruned identity appears in edge %+v", edge)
		}
	}
	if len(graph.Edges) != 1 {
		t.Fatalf("expected only the Alice/Bob edge to survive, got %+v", graph.Edges)
	}
}

func TestBuildDeterministicOrdering(t *testing.T) {
	builder := newTestBuilder(t, 1, 3)
	resolution := testResolution(map[string]int{
		"Alice Adams": 2,
		"Bob Brown":   2,
		"Carl Crane":  2,
	})

	records := []common.MentionRecord{
		mention("T1", "Carl Crane"), mention("T1", "Bob Brown"), mention("T1", "Alice Adams"),
	}
	graph := builder.Build(records, resolution)

	if len(graph.Edges) != 3 {
		t.Fatalf("expected 3 edges, got %d", len(graph.Edges))
	}
	for i, edge := range graph.Edges {
		if edge.SourceID >= edge.TargetID {
			t.Errorf("edge %d endpoints not ordered: %+v", i, edge)
		}
		if i > 0 {
			prev := graph.Edges[i-1]
			if prev.SourceID > edge.SourceID ||
				(prev.SourceID == edge.SourceID && prev.TargetID > edge.TargetID) {
				t.Errorf("edges not sorted at index %d", i)
			}
		}
	}
}

func TestBuildResolvesUnnormalizedNames(t *testing.T) {
	builder := newTestBuilder(t, 1, 3)
	resolution := testResolution(map[string]int{"Alice Adams": 1, "Bob Brown": 1})

	// raw records with stray whitespace still resolve against the
	// normalized assignment keys
	records := []common.MentionRecord{
		mention("T1", "  Alice   Adams "),
		mention("T1", "Bob\nBrown"),
	}

	graph := builder.Build(records, resolution)
	wantEdges := []common.CoOccurrenceEdge{
		{SourceID: "person-0001", TargetID: "person-0002", Weight: 1, Examples: []string{"T1"}},
	}
	if !reflect.DeepEqual(graph.Edges, wantEdges) {
		t.Fatalf("expected edges %+v, got %+v", wantEdges, graph.Edges)
	}
}
