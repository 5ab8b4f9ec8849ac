package search

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/nikbrunner/bmtree/internal/tree"
)

// FolderMatch is a fuzzy folder-name match used to pick move targets.
type FolderMatch struct {
	Folder         *tree.Entry
	Path           string
	MatchedIndexes []int
	Score          int
}

// folderPaths implements fuzzy.Source over folder paths.
type folderPaths struct {
	folders []*tree.Entry
	paths   []string
}

func (fp folderPaths) String(i int) string {
	return fp.paths[i]
}

func (fp folderPaths) Len() int {
	return len(fp.paths)
}

// FolderPath renders the slash-separated title path of an entry.
func FolderPath(t *tree.Tree, id string) string {
	path := t.Path(id)
	titles := make([]string, len(path))
	for i, e := range path {
		titles[i] = e.Title
	}
	return strings.Join(titles, " / ")
}

// FindFolders fuzzy-matches query against every folder path in the tree.
// Returns results sorted by match score (best first).
func FindFolders(t *tree.Tree, query string) []FolderMatch {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	var src folderPaths
	t.Walk(func(e *tree.Entry) bool {
		if e.IsFolder() {
			src.folders = append(src.folders, e)
			src.paths = append(src.paths, FolderPath(t, e.ID))
		}
		return true
	})

	matches := fuzzy.FindFrom(query, src)

	results := make([]FolderMatch, len(matches))
	for i, m := range matches {
		results[i] = FolderMatch{
			Folder:         src.folders[m.Index],
			Path:           src.paths[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return results
}
