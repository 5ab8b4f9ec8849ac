// Package search finds bookmark-tree entries by text and groups the matches
// for display.
package search

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nikbrunner/bmtree/internal/tree"
)

// Result is one matched entry with the folders it is displayed under.
type Result struct {
	Entry             *tree.Entry
	PrimaryAncestorID string
	ParentID          string // "" when the match is a forest root
}

// Search returns every entry whose title, or (for bookmarks) URL, contains
// query case-insensitively. Results follow a pre-order walk of the tree.
// An empty or whitespace-only query matches nothing.
func Search(t *tree.Tree, query string) []Result {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	lower := cases.Lower(language.Und)
	q := lower.String(query)

	var results []Result
	t.Walk(func(e *tree.Entry) bool {
		if matches(lower, e, q) {
			results = append(results, Result{
				Entry:             e,
				PrimaryAncestorID: ResolvePrimaryAncestor(t, e).ID,
				ParentID:          e.ParentID,
			})
		}
		return true
	})
	return results
}

func matches(lower cases.Caser, e *tree.Entry, q string) bool {
	if strings.Contains(lower.String(e.Title), q) {
		return true
	}
	return !e.IsFolder() && strings.Contains(lower.String(e.URL), q)
}
