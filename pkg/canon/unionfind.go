package canon

// unionFind is a disjoint-set structure over arena indices. Roots are
// always the smallest index of their set so merge results do not depend on
// union call order.
type unionFind struct {
	parent []int
}

func newUnionFind(size int) *unionFind {
	parent := make([]int, size)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

// grow appends a new singleton set and returns its index.
func (u *unionFind) grow() int {
	idx := len(u.parent)
	u.parent = append(u.parent, idx)
	return idx
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union merges the sets of a and b and returns the surviving root, which is
// the smaller of the two roots.
func (u *unionFind) union(a, b int) int {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return ra
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	return ra
}

func (u *unionFind) same(a, b int) bool {
	return u.find(a) == u.find(b)
}
