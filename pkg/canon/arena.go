package canon

import "sort"

// An identityArena holds every candidate identity produced during
// resolution. Each variant founds one candidate up front; passes merge
// candidates through the union-find, and only sets that still own at
// least one variant survive into the result.
type identityArena struct {
	uf *unionFind

	// display name per arena index, authoritative at the set root
	display []string
	// seeded marks displays fixed by the seed table, which always win
	// over member-derived displays when sets merge
	seeded []bool

	variants  []string       // sorted variant universe
	byVariant map[string]int // variant -> founding index
	seedOnly  []int          // seed-created identities with no founding variant
	seedIdx   map[string]int // canonical name -> seed-created index

	// claimed maps a variant to the id of the pass that merged it.
	// Variants absent from the map are unresolved; after the final pass
	// they become founders of their own identity.
	claimed map[string]string
}

func newIdentityArena(variants []string) *identityArena {
	sorted := make([]string, len(variants))
	copy(sorted, variants)
	sort.Strings(sorted)

	a := &identityArena{
		uf:        newUnionFind(len(sorted)),
		display:   make([]string, len(sorted)),
		seeded:    make([]bool, len(sorted)),
		variants:  sorted,
		byVariant: make(map[string]int, len(sorted)),
		seedIdx:   make(map[string]int),
		claimed:   make(map[string]string, len(sorted)),
	}
	for i, v := range sorted {
		a.display[i] = v
		a.byVariant[v] = i
	}
	return a
}

// addSeedIdentity registers an identity whose display name comes from the
// seed table. When the canonical name is itself a variant its candidate is
// promoted in place, otherwise a fresh variant-less candidate is created.
func (a *identityArena) addSeedIdentity(canonical string) int {
	if idx, ok := a.byVariant[canonical]; ok {
		root := a.uf.find(idx)
		a.display[root] = canonical
		a.seeded[root] = true
		return root
	}
	if idx, ok := a.seedIdx[canonical]; ok {
		return a.uf.find(idx)
	}
	idx := a.uf.grow()
	a.seedIdx[canonical] = idx
	a.display = append(a.display, canonical)
	a.seeded = append(a.seeded, true)
	a.seedOnly = append(a.seedOnly, idx)
	return idx
}

// rootOf returns the current set root for a variant.
func (a *identityArena) rootOf(variant string) int {
	return a.uf.find(a.byVariant[variant])
}

// sameRoot reports whether two variants already resolve to one identity.
func (a *identityArena) sameRoot(v, w string) bool {
	return a.uf.same(a.byVariant[v], a.byVariant[w])
}

// merge joins the variant's set into the target set and records which pass
// claimed the variant. The surviving root keeps a seeded display when either
// side has one, otherwise the longer display wins, ties going to the
// lexicographically smaller name.
func (a *identityArena) merge(variant string, target int, passID string) {
	src := a.rootOf(variant)
	dst := a.uf.find(target)

	display, seeded := a.display[dst], a.seeded[dst]
	if !seeded {
		switch {
		case a.seeded[src]:
			display, seeded = a.display[src], true
		case betterDisplay(a.display[src], display):
			display = a.display[src]
		}
	}

	root := a.uf.union(src, dst)
	a.display[root] = display
	a.seeded[root] = seeded
	a.claimed[variant] = passID
}

// betterDisplay prefers the longer, more complete name, breaking length
// ties with lexicographic order.
func betterDisplay(candidate, current string) bool {
	if len(candidate) != len(current) {
		return len(candidate) > len(current)
	}
	return candidate < current
}

// unresolved returns the variants not yet claimed by any pass, in sorted
// order.
func (a *identityArena) unresolved() []string {
	var out []string
	for _, v := range a.variants {
		if _, ok := a.claimed[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

// anchored reports whether a variant may serve as a merge anchor for the
// given unresolved variant: it must already be claimed, or precede the
// variant in sorted order so that exactly one side of an unresolved pair
// initiates the merge.
func (a *identityArena) anchored(anchor, variant string) bool {
	if _, ok := a.claimed[anchor]; ok {
		return true
	}
	return anchor < variant
}
