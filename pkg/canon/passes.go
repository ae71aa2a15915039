package canon

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Bunka-lab/epstein-files/internal/util"
)

// A proposal asks the engine to merge an unresolved variant into the set of
// the given arena index. Anchor names what the match was made against, for
// conflict reporting.
type proposal struct {
	Variant string
	Target  int
	Anchor  string
}

// A mergePass inspects the unresolved variants against the current arena
// and proposes merges. Proposals must be produced in a deterministic order;
// the engine applies them sequentially and treats the first proposal per
// variant as the winner.
type mergePass interface {
	ID() string
	propose(ctx context.Context, unresolved []string, arena *identityArena) ([]proposal, error)
}

// computeKeys evaluates fn for every variant across a bounded worker pool.
// Workers write to disjoint slice slots, so the result order matches the
// input order regardless of scheduling.
func computeKeys(ctx context.Context, variants []string, fn func(string) string) ([]string, error) {
	keys := make([]string, len(variants))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(runtime.NumCPU())

	const chunk = 256
	for start := 0; start < len(variants); start += chunk {
		start := start
		end := util.Min(start+chunk, len(variants))
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				keys[i] = fn(variants[i])
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}

// seedPass resolves variants through a curated variant to canonical name
// mapping. Canonical names absent from the variant universe found their own
// identity.
type seedPass struct {
	table map[string]string
}

func (p *seedPass) ID() string { return "seed" }

func (p *seedPass) propose(_ context.Context, unresolved []string, arena *identityArena) ([]proposal, error) {
	var out []proposal
	for _, v := range unresolved {
		canonical, ok := p.table[v]
		if !ok {
			continue
		}
		target := arena.addSeedIdentity(canonical)
		out = append(out, proposal{Variant: v, Target: target, Anchor: canonical})
	}
	return out, nil
}

// phoneticPass merges variants whose phonetic codes collide, guarded by the
// requirement that the two names also share at least one exact token. The
// guard keeps "Jon Smith" and "John Smith" together while "John Smith" and
// "Jane Smythe" stay apart on token evidence alone.
type phoneticPass struct{}

func (p *phoneticPass) ID() string { return "phonetic" }

func (p *phoneticPass) propose(ctx context.Context, unresolved []string, arena *identityArena) ([]proposal, error) {
	keys, err := computeKeys(ctx, arena.variants, phoneticKey)
	if err != nil {
		return nil, err
	}
	byVariant := make(map[string]string, len(keys))
	byKey := make(map[string][]string)
	for i, v := range arena.variants {
		if keys[i] == "" {
			continue
		}
		byVariant[v] = keys[i]
		byKey[keys[i]] = append(byKey[keys[i]], v)
	}

	var out []proposal
	for _, v := range unresolved {
		key, ok := byVariant[v]
		if !ok {
			continue
		}
		for _, w := range byKey[key] {
			if w == v || !arena.anchored(w, v) {
				continue
			}
			if arena.sameRoot(w, v) {
				continue
			}
			if !shareToken(v, w) {
				continue
			}
			out = append(out, proposal{Variant: v, Target: arena.byVariant[w], Anchor: w})
		}
	}
	return out, nil
}

// tokenPass merges variants whose normalized token multisets are equal,
// which folds reordered forms like "Clinton, Bill" into "Bill Clinton".
type tokenPass struct{}

func (p *tokenPass) ID() string { return "token" }

func (p *tokenPass) propose(ctx context.Context, unresolved []string, arena *identityArena) ([]proposal, error) {
	keys, err := computeKeys(ctx, arena.variants, tokenKey)
	if err != nil {
		return nil, err
	}
	byVariant := make(map[string]string, len(keys))
	byKey := make(map[string][]string)
	for i, v := range arena.variants {
		if keys[i] == "" {
			continue
		}
		byVariant[v] = keys[i]
		byKey[keys[i]] = append(byKey[keys[i]], v)
	}

	var out []proposal
	for _, v := range unresolved {
		key, ok := byVariant[v]
		if !ok {
			continue
		}
		for _, w := range byKey[key] {
			if w == v || !arena.anchored(w, v) {
				continue
			}
			if arena.sameRoot(w, v) {
				continue
			}
			out = append(out, proposal{Variant: v, Target: arena.byVariant[w], Anchor: w})
		}
	}
	return out, nil
}

// suffixPass strips one generational or honorific suffix from a variant and
// merges it when the stripped base exactly matches the base of an identity
// that already exists in the arena. Only pairs where at least one side
// carried a suffix are considered, so it never duplicates token pass work.
type suffixPass struct{}

func (p *suffixPass) ID() string { return "suffix" }

func (p *suffixPass) propose(_ context.Context, unresolved []string, arena *identityArena) ([]proposal, error) {
	var out []proposal
	for _, v := range unresolved {
		base, hadSuffix := stripSuffix(v)
		if base == "" {
			continue
		}
		vRoot := arena.rootOf(v)

		consider := func(target int, anchor string) {
			root := arena.uf.find(target)
			if root == vRoot {
				return
			}
			displayBase, displayHadSuffix := stripSuffix(arena.display[root])
			if displayBase != base || (!hadSuffix && !displayHadSuffix) {
				return
			}
			out = append(out, proposal{Variant: v, Target: target, Anchor: anchor})
		}

		for _, w := range arena.variants {
			if w == v || !arena.anchored(w, v) {
				continue
			}
			consider(arena.byVariant[w], w)
		}
		for _, idx := range arena.seedOnly {
			consider(idx, arena.display[idx])
		}
	}
	return out, nil
}
