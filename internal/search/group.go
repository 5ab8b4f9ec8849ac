package search

import (
	"slices"

	"github.com/nikbrunner/bmtree/internal/tree"
)

// Subgroup holds the matches sharing one immediate parent folder.
type Subgroup struct {
	FolderID string
	Folder   *tree.Entry // nil when the matches are forest roots

	// Bookmarks are the matched entries in search order. Folders matched by
	// title are included.
	Bookmarks []*tree.Entry
}

// Group holds the matches sharing one primary ancestor.
type Group struct {
	RootFolder *tree.Entry
	Subgroups  []Subgroup
}

// Count returns the number of matched entries in the group.
func (g Group) Count() int {
	n := 0
	for _, sg := range g.Subgroups {
		n += len(sg.Bookmarks)
	}
	return n
}

type partition struct {
	root  *tree.Entry
	order []string
	byID  map[string]*Subgroup
}

// GroupResults partitions results by primary ancestor and then by immediate
// parent. A primary folder matched by its own title is listed under itself
// rather than under its parent root. Groups spanning more folders come first;
// ties keep the order in which their primary ancestor was first seen. Groups
// and subgroups whose folder is titled reservedName are left out; a group is
// kept even when all of its subgroups were.
func GroupResults(t *tree.Tree, results []Result, reservedName string) []Group {
	if len(results) == 0 {
		return nil
	}

	var parts []*partition
	index := make(map[string]*partition)

	for _, r := range results {
		p, ok := index[r.PrimaryAncestorID]
		if !ok {
			root, _ := t.Get(r.PrimaryAncestorID)
			p = &partition{root: root, byID: make(map[string]*Subgroup)}
			index[r.PrimaryAncestorID] = p
			parts = append(parts, p)
		}

		key := r.ParentID
		if key != "" && r.Entry.ID == r.PrimaryAncestorID {
			key = r.Entry.ID
		}
		sg, ok := p.byID[key]
		if !ok {
			folder, _ := t.Get(key)
			sg = &Subgroup{FolderID: key, Folder: folder}
			p.byID[key] = sg
			p.order = append(p.order, key)
		}
		sg.Bookmarks = append(sg.Bookmarks, r.Entry)
	}

	groups := make([]Group, 0, len(parts))
	for _, p := range parts {
		if isReserved(p.root, reservedName) {
			continue
		}

		g := Group{RootFolder: p.root}
		for _, id := range p.order {
			sg := p.byID[id]
			if isReserved(sg.Folder, reservedName) {
				continue
			}
			g.Subgroups = append(g.Subgroups, *sg)
		}
		groups = append(groups, g)
	}

	slices.SortStableFunc(groups, func(a, b Group) int {
		return len(b.Subgroups) - len(a.Subgroups)
	})
	return groups
}

func isReserved(e *tree.Entry, reservedName string) bool {
	return e != nil && e.Title == reservedName
}
