package community

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/Bunka-lab/epstein-files/pkg/common"
	"github.com/Bunka-lab/epstein-files/pkg/config"
	"github.com/Bunka-lab/epstein-files/pkg/network"
)

func newTestDetector(t *testing.T, seed int64) *Detector {
	t.Helper()
	cfg := config.Default()
	cfg.CommunitySeed = seed
	detector, err := NewDetector(NewDetectorParams{Config: cfg})
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	return detector
}

func testGraph(nodeIDs []string, edges map[[2]string]int) *network.Graph {
	graph := &network.Graph{}
	for _, id := range nodeIDs {
		graph.Nodes = append(graph.Nodes, common.CanonicalIdentity{
			ID:          id,
			DisplayName: fmt.Sprintf("Person %s", id),
			Occurrences: 10,
		})
	}
	for pair, weight := range edges {
		graph.Edges = append(graph.Edges, common.CoOccurrenceEdge{
			SourceID: pair[0],
			TargetID: pair[1],
			Weight:   weight,
		})
	}
	return graph
}

// two dense triangles joined by a single weak bridge
func twoClusterGraph() *network.Graph {
	return testGraph(
		[]string{"id-a", "id-b", "id-c", "id-d", "id-e", "id-f"},
		map[[2]string]int{
			{"id-a", "id-b"}: 5,
			{"id-a", "id-c"}: 5,
			{"id-b", "id-c"}: 5,
			{"id-d", "id-e"}: 5,
			{"id-d", "id-f"}: 5,
			{"id-e", "id-f"}: 5,
			{"id-c", "id-d"}: 1,
		},
	)
}

func TestDetectTwoClusters(t *testing.T) {
	detector := newTestDetector(t, 42)
	communities := detector.Detect(twoClusterGraph())

	if len(communities) != 2 {
		t.Fatalf("expected 2 communities, got %+v", communities)
	}
	if !reflect.DeepEqual(communities[0].Members, []string{"id-a", "id-b", "id-c"}) {
		t.Errorf("unexpected first community %+v", communities[0])
	}
	if !reflect.DeepEqual(communities[1].Members, []string{"id-d", "id-e", "id-f"}) {
		t.Errorf("unexpected second community %+v", communities[1])
	}
}

func TestDetectCoverage(t *testing.T) {
	detector := newTestDetector(t, 42)
	graph := twoClusterGraph()
	// an isolated node must land in its own singleton community
	graph.Nodes = append(graph.Nodes, common.CanonicalIdentity{ID: "id-x", DisplayName: "Person X", Occurrences: 10})
	communities := detector.Detect(graph)

	seen := make(map[string]int)
	total := 0
	for _, community := range communities {
		total += len(community.Members)
		for _, member := range community.Members {
			seen[member]++
		}
	}
	if total != len(graph.Nodes) {
		t.Errorf("community sizes sum to %d, want %d", total, len(graph.Nodes))
	}
	for _, node := range graph.Nodes {
		if seen[node.ID] != 1 {
			t.Errorf("node %s belongs to %d communities, want exactly 1", node.ID, seen[node.ID])
		}
	}
}

func TestDetectDeterministic(t *testing.T) {
	first := newTestDetector(t, 42).Detect(twoClusterGraph())
	second := newTestDetector(t, 42).Detect(twoClusterGraph())
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same seed produced different partitions:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestDetectEmptyGraph(t *testing.T) {
	detector := newTestDetector(t, 42)
	if communities := detector.Detect(&network.Graph{}); len(communities) != 0 {
		t.Errorf("expected no communities for empty graph, got %+v", communities)
	}
}

func TestDetectCommunityIDsSequential(t *testing.T) {
	detector := newTestDetector(t, 42)
	communities := detector.Detect(twoClusterGraph())
	for i, community := range communities {
		want := fmt.Sprintf("community-%04d", i+1)
		if community.ID != want {
			t.Errorf("expected id %s, got %s", want, community.ID)
		}
	}
}
