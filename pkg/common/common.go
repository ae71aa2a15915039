package common

import "time"

// MentionRole describes where in a discussion a person mention came from.
type MentionRole string

const (
	RoleSender    MentionRole = "sender"
	RoleReceiver  MentionRole = "receiver"
	RoleMentioned MentionRole = "mentioned"
)

// MentionRecord is a single raw person-name mention inside a discussion
// thread, as produced by the external extraction service. Records are
// immutable once ingested.
type MentionRecord struct {
	ThreadID string      `json:"thread_id"`
	Role     MentionRole `json:"role"`
	RawName  string      `json:"raw_name"`
	Count    int         `json:"count"`
}

// CanonicalIdentity is the resolved, de-duplicated representation of a
// person across all of their name variants. Each non-removed variant
// belongs to exactly one identity at any snapshot.
//
// Provenance maps every member variant to the id of the matching pass that
// merged it, or "seed" if the variant founded the identity.
type CanonicalIdentity struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Variants    []string          `json:"variants"`
	Provenance  map[string]string `json:"provenance"`
	Occurrences int               `json:"occurrences"`
}

// CoOccurrenceEdge is a weighted undirected link between two canonical
// identities mentioned together in the same discussion. Endpoints are stored
// with SourceID < TargetID so each unordered pair appears exactly once.
//
// Weight is the number of distinct discussions both endpoints co-occur in.
// Examples holds the earliest-seen thread ids, capped at a configured length.
type CoOccurrenceEdge struct {
	SourceID string   `json:"source_id"`
	TargetID string   `json:"target_id"`
	Weight   int      `json:"weight"`
	Examples []string `json:"examples"`
}

// NodeStat carries the per-identity statistics of a built graph. Degree
// counts incident edges, WeightedDegree sums their weights.
type NodeStat struct {
	IdentityID     string `json:"identity_id"`
	DisplayName    string `json:"display_name"`
	Occurrences    int    `json:"occurrences"`
	Degree         int    `json:"degree"`
	WeightedDegree int    `json:"weighted_degree"`
}

// Community is one cell of the graph partition produced by community
// detection. Members are original (unaggregated) identity ids. Generation
// records how many aggregation levels the detector ran before converging.
type Community struct {
	ID         string   `json:"id"`
	Members    []string `json:"members"`
	Generation int      `json:"generation"`
}

// ClassificationRun is a node in the lineage DAG. It declares which
// table/columns a pipeline stage read and which it wrote, so downstream
// stages can be invalidated when an upstream stage is re-executed.
type ClassificationRun struct {
	RunID     string    `json:"run_id"`
	RunType   string    `json:"run_type"`
	Inputs    []string  `json:"inputs"`
	Outputs   []string  `json:"outputs"`
	Timestamp time.Time `json:"timestamp"`
}

// SkippedDiscussion records a discussion the extraction service failed on
// after all retries. The pipeline continues without it.
type SkippedDiscussion struct {
	ThreadID string `json:"thread_id"`
	Reason   string `json:"reason"`
}

// Discussion is one raw discussion thread handed to the extraction service.
// Loading discussions from the corpus is an external concern; the pipeline
// only consumes them.
type Discussion struct {
	ThreadID string `json:"thread_id"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	CC       string `json:"cc"`
	Body     string `json:"body"`
}
