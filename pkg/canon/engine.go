package canon

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Bunka-lab/epstein-files/pkg/ai"
	"github.com/Bunka-lab/epstein-files/pkg/common"
	"github.com/Bunka-lab/epstein-files/pkg/config"
	"github.com/Bunka-lab/epstein-files/pkg/logger"
)

// A MergeConflict records a variant that matched more than one target
// within a single pass. The first match in deterministic order wins; the
// conflict is reported but never aborts a run.
type MergeConflict struct {
	Variant  string
	Pass     string
	Kept     string
	Rejected string
}

// A Resolution is the outcome of canonicalizing a variant universe. Every
// surviving variant is assigned to exactly one identity.
type Resolution struct {
	Identities []common.CanonicalIdentity
	// Assignment maps each variant to its identity ID.
	Assignment map[string]string
	Conflicts  []MergeConflict
	// Removed lists variants dropped by the removal list, sorted.
	Removed []string
}

// An Engine folds mention variants into canonical identities by running a
// configured sequence of merge passes. An Engine should be created using
// NewEngine. Resolution is deterministic: the same inputs always produce
// the same identities, assignments and IDs.
type Engine struct {
	passes  []mergePass
	removal map[string]bool
}

// NewEngineParams holds the arguments for creating an Engine.
type NewEngineParams struct {
	Config *config.Config
}

// NewEngine creates an Engine from a validated configuration.
func NewEngine(params NewEngineParams) (*Engine, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("canon: config is required")
	}

	seedTable := make(map[string]string, len(params.Config.SeedTable))
	for variant, canonical := range params.Config.SeedTable {
		seedTable[ai.NormalizeName(variant)] = ai.NormalizeName(canonical)
	}

	passes := make([]mergePass, 0, len(params.Config.PassOrder))
	for _, id := range params.Config.PassOrder {
		switch id {
		case config.PassSeed:
			passes = append(passes, &seedPass{table: seedTable})
		case config.PassPhonetic:
			passes = append(passes, &phoneticPass{})
		case config.PassToken:
			passes = append(passes, &tokenPass{})
		case config.PassSuffix:
			passes = append(passes, &suffixPass{})
		default:
			return nil, fmt.Errorf("canon: unknown pass %q", id)
		}
	}

	removal := make(map[string]bool, len(params.Config.RemovalList))
	for _, name := range params.Config.RemovalList {
		removal[strings.ToLower(ai.NormalizeName(name))] = true
	}

	return &Engine{passes: passes, removal: removal}, nil
}

// Resolve canonicalizes the raw names of the given mention records. Names
// on the removal list are dropped before any pass runs; every remaining
// variant ends up in exactly one identity, as a merge target or as its own
// singleton.
func (e *Engine) Resolve(ctx context.Context, records []common.MentionRecord) (*Resolution, error) {
	threads := make(map[string]map[string]bool)
	removedSet := make(map[string]bool)
	for _, record := range records {
		variant := ai.NormalizeName(record.RawName)
		if variant == "" {
			continue
		}
		if e.removal[strings.ToLower(variant)] {
			removedSet[variant] = true
			continue
		}
		if threads[variant] == nil {
			threads[variant] = make(map[string]bool)
		}
		threads[variant][record.ThreadID] = true
	}

	variants := make([]string, 0, len(threads))
	for v := range threads {
		variants = append(variants, v)
	}
	arena := newIdentityArena(variants)

	var conflicts []MergeConflict
	for _, pass := range e.passes {
		unresolved := arena.unresolved()
		proposals, err := pass.propose(ctx, unresolved, arena)
		if err != nil {
			return nil, fmt.Errorf("canon: pass %s: %w", pass.ID(), err)
		}
		merged := 0
		rejected := make(map[string]map[int]bool)
		for _, pr := range proposals {
			target := arena.uf.find(pr.Target)
			if _, ok := arena.claimed[pr.Variant]; ok {
				if arena.rootOf(pr.Variant) != target && !rejected[pr.Variant][target] {
					if rejected[pr.Variant] == nil {
						rejected[pr.Variant] = make(map[int]bool)
					}
					rejected[pr.Variant][target] = true
					conflict := MergeConflict{
						Variant:  pr.Variant,
						Pass:     pass.ID(),
						Kept:     arena.display[arena.rootOf(pr.Variant)],
						Rejected: arena.display[target],
					}
					conflicts = append(conflicts, conflict)
					logger.Warn("[Canon] ambiguous merge, keeping first match",
						"variant", conflict.Variant,
						"pass", conflict.Pass,
						"kept", conflict.Kept,
						"rejected", conflict.Rejected)
				}
				continue
			}
			arena.merge(pr.Variant, pr.Target, pass.ID())
			merged++
		}
		logger.Info("[Canon] pass finished",
			"pass", pass.ID(),
			"unresolved", len(unresolved),
			"merged", merged)
	}

	resolution := e.assemble(arena, threads)
	resolution.Conflicts = conflicts
	for v := range removedSet {
		resolution.Removed = append(resolution.Removed, v)
	}
	sort.Strings(resolution.Removed)

	logger.Info("[Canon] resolution complete",
		"variants", len(variants),
		"identities", len(resolution.Identities),
		"removed", len(resolution.Removed),
		"conflicts", len(conflicts))
	return resolution, nil
}

// assemble groups variants by their final set and materializes identities
// with deterministic IDs. Identities are ordered by display name, ties
// broken by their first variant.
func (e *Engine) assemble(arena *identityArena, threads map[string]map[string]bool) *Resolution {
	members := make(map[int][]string)
	for _, v := range arena.variants {
		root := arena.rootOf(v)
		members[root] = append(members[root], v)
	}

	roots := make([]int, 0, len(members))
	for root := range members {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool {
		a, b := roots[i], roots[j]
		if arena.display[a] != arena.display[b] {
			return arena.display[a] < arena.display[b]
		}
		return members[a][0] < members[b][0]
	})

	resolution := &Resolution{
		Identities: make([]common.CanonicalIdentity, 0, len(roots)),
		Assignment: make(map[string]string, len(arena.variants)),
	}
	for i, root := range roots {
		id := fmt.Sprintf("person-%04d", i+1)

		distinct := make(map[string]bool)
		provenance := make(map[string]string, len(members[root]))
		for _, v := range members[root] {
			for thread := range threads[v] {
				distinct[thread] = true
			}
			if pass, ok := arena.claimed[v]; ok {
				provenance[v] = pass
			} else {
				provenance[v] = config.PassSeed
			}
			resolution.Assignment[v] = id
		}

		resolution.Identities = append(resolution.Identities, common.CanonicalIdentity{
			ID:          id,
			DisplayName: arena.display[root],
			Variants:    members[root],
			Provenance:  provenance,
			Occurrences: len(distinct),
		})
	}
	return resolution
}
