// Package ingest turns raw discussion threads into normalized mention
// records by calling the external extraction service. It is the only part
// of the pipeline doing network I/O.
package ingest

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Bunka-lab/epstein-files/internal/util"
	"github.com/Bunka-lab/epstein-files/pkg/ai"
	"github.com/Bunka-lab/epstein-files/pkg/common"
	"github.com/Bunka-lab/epstein-files/pkg/logger"
)

const (
	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 8 * time.Second
)

// Ingestor runs mention extraction over a set of discussions with bounded
// concurrency. Failed discussions are retried with exponential backoff; if
// retries exhaust, the discussion is skipped and the run continues.
type Ingestor struct {
	client     ai.ExtractionAIClient
	parallel   int
	maxRetries int
}

// NewIngestorParams configures an Ingestor.
type NewIngestorParams struct {
	Client     ai.ExtractionAIClient
	Parallel   int
	MaxRetries int
}

// NewIngestor creates an Ingestor with the provided parameters.
func NewIngestor(params NewIngestorParams) *Ingestor {
	parallel := params.Parallel
	if parallel <= 0 {
		parallel = 1
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Ingestor{
		client:     params.Client,
		parallel:   parallel,
		maxRetries: maxRetries,
	}
}

// Run extracts mention records from every discussion. The returned records
// are sorted by (thread id, raw name, role) so downstream stages see the
// same sequence regardless of worker completion order. Skipped discussions
// are reported, never fatal.
func (i *Ingestor) Run(
	ctx context.Context,
	discussions []common.Discussion,
) ([]common.MentionRecord, []common.SkippedDiscussion, error) {
	logger.Info("[Ingest] Extracting mentions", "discussions", len(discussions))

	var (
		mu      sync.Mutex
		records []common.MentionRecord
		skipped []common.SkippedDiscussion
	)

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(i.parallel)

	for _, discussion := range discussions {
		d := discussion
		eg.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
			}

			recs, err := util.RetryBackoffWithContext(gCtx, i.maxRetries, baseBackoff, maxBackoff,
				func(ctx context.Context) ([]common.MentionRecord, error) {
					return ai.CallExtractAI(ctx, d, i.client)
				})
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				logger.Warn("[Ingest] Extraction failed, skipping discussion", "thread_id", d.ThreadID, "err", err)
				mu.Lock()
				skipped = append(skipped, common.SkippedDiscussion{
					ThreadID: d.ThreadID,
					Reason:   err.Error(),
				})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			records = append(records, recs...)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	sortRecords(records)
	sort.Slice(skipped, func(a, b int) bool {
		return skipped[a].ThreadID < skipped[b].ThreadID
	})

	logger.Info("[Ingest] Extraction complete",
		"mentions", len(records),
		"skipped", len(skipped),
	)

	return records, skipped, nil
}

func sortRecords(records []common.MentionRecord) {
	sort.Slice(records, func(a, b int) bool {
		if records[a].ThreadID != records[b].ThreadID {
			return records[a].ThreadID < records[b].ThreadID
		}
		if records[a].RawName != records[b].RawName {
			return records[a].RawName < records[b].RawName
		}
		return records[a].Role < records[b].Role
	})
}

// VariantThreads maps each raw name to the set of distinct thread ids it
// appears in. A name mentioned ten times inside one discussion counts once.
func VariantThreads(records []common.MentionRecord) map[string]map[string]bool {
	threads := make(map[string]map[string]bool)
	for _, rec := range records {
		if rec.RawName == "" {
			continue
		}
		set, ok := threads[rec.RawName]
		if !ok {
			set = make(map[string]bool)
			threads[rec.RawName] = set
		}
		set[rec.ThreadID] = true
	}
	return threads
}
