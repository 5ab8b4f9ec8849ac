package search_test

import (
	"testing"

	"github.com/nikbrunner/bmtree/internal/search"
	"github.com/nikbrunner/bmtree/internal/tree"
)

func TestResolvePrimaryAncestor(t *testing.T) {
	tr := sampleTree(t)

	tests := []struct {
		name string
		id   string
		want string
	}{
		{"bookmark under toolbar folder", "gmail", "1"},
		{"nested folder under toolbar", "lkml", "1"},
		{"toolbar root itself", "1", "1"},
		{"primary folder under catch-all", "reading", "reading"},
		{"bookmark in primary folder", "blog", "reading"},
		{"bookmark directly under catch-all", "stray", "2"},
		{"catch-all root", "2", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := tr.Get(tt.id)
			if !ok {
				t.Fatalf("missing %q", tt.id)
			}

			got := search.ResolvePrimaryAncestor(tr, e)
			if got.ID != tt.want {
				t.Errorf("ResolvePrimaryAncestor(%q) = %q, want %q", tt.id, got.ID, tt.want)
			}
		})
	}
}

func TestResolvePrimaryAncestor_ReturnsPathNode(t *testing.T) {
	tr := sampleTree(t)

	tr.Walk(func(e *tree.Entry) bool {
		got := search.ResolvePrimaryAncestor(tr, e)

		onPath := false
		for _, p := range tr.Path(e.ID) {
			if p.ID == got.ID {
				onPath = true
			}
		}
		if !onPath {
			t.Errorf("%q resolved to %q which is not on its path", e.ID, got.ID)
		}
		if !tr.IsPrimaryRoot(got.ID) && !got.IsRoot() {
			t.Errorf("%q resolved to %q which is neither primary nor a root", e.ID, got.ID)
		}
		return true
	})
}

func TestResolvePrimaryAncestor_UnconfiguredForest(t *testing.T) {
	// Without the configured roots nothing is primary and every match falls
	// back to its forest root.
	tr := load(t,
		folder("a", "Imported",
			folder("b", "Deep",
				bookmark("c", "Leaf", "https://leaf.example"),
			),
		),
	)

	c, _ := tr.Get("c")
	if got := search.ResolvePrimaryAncestor(tr, c); got.ID != "a" {
		t.Errorf("expected fallback to forest root a, got %q", got.ID)
	}
}
