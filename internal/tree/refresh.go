package tree

import (
	"fmt"
	"maps"
	"slices"

	"github.com/nikbrunner/bmtree/internal/model"
)

// RefreshSubtree returns a new Tree in which folderID's children are
// replaced by children. The receiver is left untouched.
//
// A folder child with nil Children keeps the descendants this tree already
// knows for it. A removed child is dropped with its descendants unless it has
// already been linked under another folder.
func (t *Tree) RefreshSubtree(folderID string, children []model.Node) (*Tree, error) {
	folder, ok := t.byID[folderID]
	if !ok {
		return nil, fmt.Errorf("refresh %q: %w", folderID, ErrNotFound)
	}
	if !folder.IsFolder() {
		return nil, fmt.Errorf("refresh %q: %w", folderID, ErrNotFolder)
	}

	r := &refresher{
		t: &Tree{
			roles: t.roles,
			roots: t.roots,
			byID:  maps.Clone(t.byID),
		},
		owned: make(map[string]bool),
		seen:  make(map[string]bool),
	}
	if err := r.replaceChildren(folderID, children); err != nil {
		return nil, err
	}

	r.t.computePrimary()
	return r.t, nil
}

// refresher applies one refresh to a cloned table. Entries are copied the
// first time they are modified so the previous Tree keeps its own.
type refresher struct {
	t          *Tree
	owned      map[string]bool
	seen       map[string]bool // ids listed anywhere in this refresh
	rootsOwned bool
}

func (r *refresher) mutable(id string) *Entry {
	e := r.t.byID[id]
	if r.owned[id] {
		return e
	}
	cp := *e
	cp.ChildIDs = slices.Clone(e.ChildIDs)
	r.t.byID[id] = &cp
	r.owned[id] = true
	return &cp
}

func (r *refresher) replaceChildren(folderID string, children []model.Node) error {
	ancestors := map[string]bool{folderID: true}
	for _, e := range r.t.Path(folderID) {
		ancestors[e.ID] = true
	}

	newIDs := make([]string, len(children))
	keep := make(map[string]bool, len(children))
	for i := range children {
		c := &children[i]
		if err := checkNode(c, folderID); err != nil {
			return err
		}
		if ancestors[c.ID] {
			return fmt.Errorf("%w: node %q would contain its own ancestor %q",
				ErrStructuralCorruption, folderID, c.ID)
		}
		if r.seen[c.ID] {
			return fmt.Errorf("%w: node %q listed twice under %q", ErrStructuralCorruption, c.ID, folderID)
		}
		r.seen[c.ID] = true
		keep[c.ID] = true
		newIDs[i] = c.ID
	}

	folder := r.mutable(folderID)
	oldIDs := folder.ChildIDs
	folder.ChildIDs = newIDs

	for i := range children {
		if err := r.link(folderID, &children[i]); err != nil {
			return err
		}
	}

	for _, id := range oldIDs {
		if keep[id] {
			continue
		}
		if e, ok := r.t.byID[id]; ok && e.ParentID == folderID {
			r.dropSubtree(id)
		}
	}
	return nil
}

// link installs child c under folderID, detaching it from any other parent.
func (r *refresher) link(folderID string, c *model.Node) error {
	prev, known := r.t.byID[c.ID]

	e := newEntry(c, folderID)
	if known && prev.ParentID != folderID {
		r.detach(prev)
	}

	if c.IsFolder() && known && prev.IsFolder() {
		e.ChildIDs = slices.Clone(prev.ChildIDs)
	}
	r.t.byID[c.ID] = e
	r.owned[c.ID] = true

	if c.IsFolder() && c.Children != nil {
		return r.replaceChildren(c.ID, c.Children)
	}
	return nil
}

// detach removes e from its current parent's child list (or the root list).
func (r *refresher) detach(e *Entry) {
	if e.ParentID == "" {
		if !r.rootsOwned {
			r.t.roots = slices.Clone(r.t.roots)
			r.rootsOwned = true
		}
		r.t.roots = slices.DeleteFunc(r.t.roots, func(id string) bool { return id == e.ID })
		return
	}
	if _, ok := r.t.byID[e.ParentID]; !ok {
		return
	}
	parent := r.mutable(e.ParentID)
	parent.ChildIDs = slices.DeleteFunc(parent.ChildIDs, func(id string) bool { return id == e.ID })
}

// dropSubtree removes id and every descendant still linked beneath it.
func (r *refresher) dropSubtree(id string) {
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		e, ok := r.t.byID[cur]
		if !ok {
			continue
		}
		delete(r.t.byID, cur)
		delete(r.owned, cur)
		for _, childID := range e.ChildIDs {
			if c, ok := r.t.byID[childID]; ok && c.ParentID == cur {
				stack = append(stack, childID)
			}
		}
	}
}
