package search

import "github.com/nikbrunner/bmtree/internal/tree"

// ResolvePrimaryAncestor walks up from e to the first primary root. If e is
// itself a primary root it is returned unchanged. When no primary root lies
// on the path the forest root that was reached is returned instead, so every
// result can be grouped.
func ResolvePrimaryAncestor(t *tree.Tree, e *tree.Entry) *tree.Entry {
	cur := e
	for !t.IsPrimaryRoot(cur.ID) {
		parent := t.Parent(cur)
		if parent == nil {
			break
		}
		cur = parent
	}
	return cur
}
