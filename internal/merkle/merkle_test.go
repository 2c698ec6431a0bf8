package merkle

import "testing"

func TestEmptyTreeHasEmptyRoot(t *testing.T) {
	if root := BuildRoot(nil); root != "" {
		t.Fatalf("expected empty root for empty input, got %q", root)
	}
}

func TestRootDeterministicRegardlessOfInputOrder(t *testing.T) {
	m := map[string]string{
		"a.go": "hash-a",
		"b.go": "hash-b",
		"c.go": "hash-c",
	}
	root1 := BuildRoot(m)
	root2 := New().Build(m).Root()

	if root1 != root2 {
		t.Fatalf("root differs between calls: %q vs %q", root1, root2)
	}
	if root1 == "" {
		t.Fatal("expected non-empty root for non-empty input")
	}
}

func TestRootChangesWithAnyLeafChange(t *testing.T) {
	base := map[string]string{"a.go": "h1", "b.go": "h2"}
	changed := map[string]string{"a.go": "h1", "b.go": "h2-different"}

	if BuildRoot(base) == BuildRoot(changed) {
		t.Fatal("expected root to change when a leaf hash changes")
	}
}

func TestRootHandlesOddLeafCountByDuplicatingLast(t *testing.T) {
	odd := map[string]string{"a.go": "h1", "b.go": "h2", "c.go": "h3"}
	root := BuildRoot(odd)
	if root == "" {
		t.Fatal("expected non-empty root for odd leaf count")
	}
}

func TestSingleLeafRoot(t *testing.T) {
	root := BuildRoot(map[string]string{"only.go": "h1"})
	if root == "" {
		t.Fatal("expected non-empty root for single leaf")
	}
}
