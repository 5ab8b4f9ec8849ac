// Package tree holds the in-memory snapshot of the bookmark forest.
//
// Entries are kept in a flat table keyed by id and linked by ids. A Tree is
// never mutated after it is returned: RefreshSubtree builds a new Tree that
// shares every entry it did not touch with its predecessor.
package tree

import (
	"errors"
	"fmt"
	"time"

	"github.com/nikbrunner/bmtree/internal/model"
)

var (
	ErrStructuralCorruption = errors.New("structural corruption")
	ErrNotFound             = errors.New("node not found")
	ErrNotFolder            = errors.New("not a folder")
)

// Roles names the special roots of the forest.
type Roles struct {
	ToolbarID string // toolbar-equivalent root, always a primary root
	OtherID   string // catch-all root, its folder children are primary roots
}

// Entry is one node of a snapshot. Entries must be treated as read-only.
type Entry struct {
	ID        string
	Title     string
	URL       string
	Kind      model.NodeKind
	ParentID  string // "" = root
	ChildIDs  []string
	DateAdded time.Time
}

// IsFolder returns true if this entry is a folder.
func (e *Entry) IsFolder() bool {
	return e.Kind == model.KindFolder
}

// IsRoot returns true if this entry has no parent.
func (e *Entry) IsRoot() bool {
	return e.ParentID == ""
}

// Node converts the entry back into a shallow model.Node.
func (e *Entry) Node() model.Node {
	n := model.Node{
		ID:        e.ID,
		Title:     e.Title,
		URL:       e.URL,
		Kind:      e.Kind,
		DateAdded: e.DateAdded,
	}
	if e.ParentID != "" {
		n.ParentID = model.StringPtr(e.ParentID)
	}
	return n
}

// Tree is a snapshot of the bookmark forest.
type Tree struct {
	roles   Roles
	roots   []string
	byID    map[string]*Entry
	primary map[string]bool
}

// Empty returns a tree with no nodes.
func Empty(roles Roles) *Tree {
	return &Tree{
		roles:   roles,
		byID:    map[string]*Entry{},
		primary: map[string]bool{},
	}
}

// Load builds a snapshot from the root nodes supplied by a store.
// It fails with ErrStructuralCorruption if a node is reachable twice or
// declares a parent other than the folder containing it.
func Load(roots []model.Node, roles Roles) (*Tree, error) {
	t := Empty(roles)

	type frame struct {
		node     *model.Node
		parentID string
	}

	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: &roots[i]})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := f.node
		if err := checkNode(n, f.parentID); err != nil {
			return nil, err
		}
		if prev, ok := t.byID[n.ID]; ok {
			return nil, fmt.Errorf("%w: node %q listed under %q and %q",
				ErrStructuralCorruption, n.ID, displayParent(prev.ParentID), displayParent(f.parentID))
		}

		e := newEntry(n, f.parentID)
		if n.IsFolder() {
			e.ChildIDs = make([]string, len(n.Children))
			for i := range n.Children {
				e.ChildIDs[i] = n.Children[i].ID
			}
			for i := len(n.Children) - 1; i >= 0; i-- {
				stack = append(stack, frame{node: &n.Children[i], parentID: n.ID})
			}
		}

		t.byID[n.ID] = e
		if f.parentID == "" {
			t.roots = append(t.roots, n.ID)
		}
	}

	t.computePrimary()
	return t, nil
}

// checkNode validates a node against the folder it was found in.
func checkNode(n *model.Node, parentID string) error {
	if n.ID == "" {
		return fmt.Errorf("%w: node without id under %q", ErrStructuralCorruption, displayParent(parentID))
	}
	if n.ParentID != nil && *n.ParentID != parentID {
		return fmt.Errorf("%w: node %q declares parent %q but is listed under %q",
			ErrStructuralCorruption, n.ID, *n.ParentID, displayParent(parentID))
	}
	if !n.IsFolder() && len(n.Children) > 0 {
		return fmt.Errorf("%w: bookmark %q has children", ErrStructuralCorruption, n.ID)
	}
	return nil
}

func newEntry(n *model.Node, parentID string) *Entry {
	return &Entry{
		ID:        n.ID,
		Title:     n.Title,
		URL:       n.URL,
		Kind:      n.Kind,
		ParentID:  parentID,
		DateAdded: n.DateAdded,
	}
}

func displayParent(id string) string {
	if id == "" {
		return "<root>"
	}
	return id
}

// computePrimary rebuilds the primary-root set: the toolbar root and every
// folder directly under the other root.
func (t *Tree) computePrimary() {
	t.primary = make(map[string]bool)
	if e, ok := t.byID[t.roles.ToolbarID]; ok && e.IsFolder() {
		t.primary[e.ID] = true
	}
	if other, ok := t.byID[t.roles.OtherID]; ok {
		for _, id := range other.ChildIDs {
			if c, ok := t.byID[id]; ok && c.IsFolder() {
				t.primary[id] = true
			}
		}
	}
}

// Roles returns the special roots this tree was built with.
func (t *Tree) Roles() Roles {
	return t.roles
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.byID)
}

// Get finds an entry by ID.
func (t *Tree) Get(id string) (*Entry, bool) {
	e, ok := t.byID[id]
	return e, ok
}

// Roots returns the top-level entries in store order.
func (t *Tree) Roots() []*Entry {
	return t.lookup(t.roots)
}

// Children returns the children of a folder in store order.
// Returns nil for unknown ids and bookmarks.
func (t *Tree) Children(id string) []*Entry {
	e, ok := t.byID[id]
	if !ok {
		return nil
	}
	return t.lookup(e.ChildIDs)
}

func (t *Tree) lookup(ids []string) []*Entry {
	result := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := t.byID[id]; ok {
			result = append(result, e)
		}
	}
	return result
}

// Parent returns the parent of an entry, or nil for roots.
func (t *Tree) Parent(e *Entry) *Entry {
	if e == nil || e.ParentID == "" {
		return nil
	}
	return t.byID[e.ParentID]
}

// Walk visits every entry depth-first in pre-order, roots and children in
// stored order. Returning false from fn stops the walk.
func (t *Tree) Walk(fn func(e *Entry) bool) {
	stack := make([]string, 0, len(t.roots))
	for i := len(t.roots) - 1; i >= 0; i-- {
		stack = append(stack, t.roots[i])
	}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		e, ok := t.byID[id]
		if !ok {
			continue
		}
		if !fn(e) {
			return
		}
		for i := len(e.ChildIDs) - 1; i >= 0; i-- {
			stack = append(stack, e.ChildIDs[i])
		}
	}
}

// IsDescendant reports whether id lies strictly below ancestorID.
func (t *Tree) IsDescendant(id, ancestorID string) bool {
	e, ok := t.byID[id]
	if !ok {
		return false
	}
	for e.ParentID != "" {
		if e.ParentID == ancestorID {
			return true
		}
		next, ok := t.byID[e.ParentID]
		if !ok {
			return false
		}
		e = next
	}
	return false
}

// Path returns the entries from the forest root down to id, inclusive.
func (t *Tree) Path(id string) []*Entry {
	var path []*Entry
	for e, ok := t.byID[id]; ok; e, ok = t.byID[e.ParentID] {
		path = append(path, e)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// IsPrimaryRoot reports whether id is a grouping target for search results.
func (t *Tree) IsPrimaryRoot(id string) bool {
	return t.primary[id]
}

// PrimaryRoots returns the primary roots: the toolbar root first, then the
// folders under the other root in stored order.
func (t *Tree) PrimaryRoots() []*Entry {
	var result []*Entry
	if t.primary[t.roles.ToolbarID] {
		result = append(result, t.byID[t.roles.ToolbarID])
	}
	if other, ok := t.byID[t.roles.OtherID]; ok {
		for _, id := range other.ChildIDs {
			if t.primary[id] && id != t.roles.ToolbarID {
				result = append(result, t.byID[id])
			}
		}
	}
	return result
}
