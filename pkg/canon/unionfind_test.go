package canon

import "testing"

func TestUnionFindSame(t *testing.T) {
	u := newUnionFind(4)
	if u.same(0, 1) {
		t.Fatal("expected fresh elements to be in distinct sets")
	}
	u.union(0, 1)
	if !u.same(0, 1) {
		t.Fatal("expected united elements to share a set")
	}
	if u.same(1, 2) {
		t.Fatal("expected untouched element to stay separate")
	}
	u.union(2, 3)
	u.union(1, 3)
	for _, pair := range [][2]int{{0, 2}, {0, 3}, {1, 2}} {
		if !u.same(pair[0], pair[1]) {
			t.Fatalf("expected %d and %d to share a set after chained unions", pair[0], pair[1])
		}
	}
}

func TestUnionFindSmallestRootWins(t *testing.T) {
	u := newUnionFind(3)
	if root := u.union(2, 1); root != 1 {
		t.Fatalf("expected root 1, got %d", root)
	}
	if root := u.union(1, 0); root != 0 {
		t.Fatalf("expected root 0, got %d", root)
	}
	if u.find(2) != 0 {
		t.Fatalf("expected find(2) = 0, got %d", u.find(2))
	}
}
