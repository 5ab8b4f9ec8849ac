package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nikbrunner/bmtree/internal/model"
)

// Hooks let tests inject failures or delays into a Memory store. Each hook
// runs before the operation touches any state, outside the store lock.
type Hooks struct {
	ListRoots   func() error
	GetChildren func(folderID string) error
	MoveNode    func(nodeID, newParentID string) error
}

// CallCounts reports how often each read/write operation was invoked.
type CallCounts struct {
	ListRoots   int64
	GetChildren int64
	MoveNode    int64
}

type memNode struct {
	node     model.Node // Children is always nil here
	children []string
}

type memState struct {
	roots []string
	nodes map[string]*memNode
}

func (s memState) clone() memState {
	cp := memState{
		roots: slices.Clone(s.roots),
		nodes: make(map[string]*memNode, len(s.nodes)),
	}
	for id, n := range s.nodes {
		c := *n
		c.children = slices.Clone(n.children)
		cp.nodes[id] = &c
	}
	return cp
}

// Memory is an in-memory Store.
type Memory struct {
	mu    sync.RWMutex
	state memState

	// commit persists the new forest after a mutation. If it fails the
	// mutation is rolled back.
	commit func(roots []model.Node) error

	hooksMu sync.RWMutex
	hooks   Hooks

	listCalls     atomic.Int64
	childrenCalls atomic.Int64
	moveCalls     atomic.Int64

	events broadcaster
}

// NewMemory creates a Memory store holding only the fixed roots.
func NewMemory() *Memory {
	m, _ := NewMemoryFrom(DefaultRoots())
	return m
}

// NewMemoryFrom creates a Memory store holding the given forest.
func NewMemoryFrom(roots []model.Node) (*Memory, error) {
	state, err := buildState(roots)
	if err != nil {
		return nil, err
	}
	return &Memory{state: state}, nil
}

func buildState(roots []model.Node) (memState, error) {
	state := memState{nodes: make(map[string]*memNode)}

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

		n := *f.node
		n.Children = slices.Clone(n.Children)
		if n.ID == "" {
			n.ID = model.GenerateID()
		}
		if _, dup := state.nodes[n.ID]; dup {
			return memState{}, fmt.Errorf("duplicate node id %q", n.ID)
		}

		mn := &memNode{}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: &n.Children[i], parentID: n.ID})
		}
		for i := range n.Children {
			if n.Children[i].ID == "" {
				n.Children[i].ID = model.GenerateID()
			}
			mn.children = append(mn.children, n.Children[i].ID)
		}

		n.Children = nil
		n.ParentID = nil
		if f.parentID != "" {
			n.ParentID = model.StringPtr(f.parentID)
		} else {
			state.roots = append(state.roots, n.ID)
		}
		mn.node = n
		state.nodes[n.ID] = mn
	}
	return state, nil
}

// SetHooks replaces the failure-injection hooks.
func (m *Memory) SetHooks(h Hooks) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks = h
}

func (m *Memory) currentHooks() Hooks {
	m.hooksMu.RLock()
	defer m.hooksMu.RUnlock()
	return m.hooks
}

// Calls returns the number of store calls made so far.
func (m *Memory) Calls() CallCounts {
	return CallCounts{
		ListRoots:   m.listCalls.Load(),
		GetChildren: m.childrenCalls.Load(),
		MoveNode:    m.moveCalls.Load(),
	}
}

// Subscribe implements Store.
func (m *Memory) Subscribe() (<-chan model.ChangeEvent, func()) {
	return m.events.Subscribe()
}

// ListRoots implements Store.
func (m *Memory) ListRoots(ctx context.Context) ([]model.Node, error) {
	m.listCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h := m.currentHooks().ListRoots; h != nil {
		if err := h(); err != nil {
			return nil, err
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exportLocked(), nil
}

// exportLocked renders the nested forest. Caller holds m.mu.
func (m *Memory) exportLocked() []model.Node {
	roots := make([]model.Node, 0, len(m.state.roots))
	for _, id := range m.state.roots {
		roots = append(roots, m.subtreeLocked(id))
	}
	return roots
}

func (m *Memory) subtreeLocked(id string) model.Node {
	mn := m.state.nodes[id]
	n := mn.node
	if n.IsFolder() {
		n.Children = make([]model.Node, 0, len(mn.children))
		for _, childID := range mn.children {
			n.Children = append(n.Children, m.subtreeLocked(childID))
		}
	}
	return n
}

// GetChildren implements Store. Folder children are returned shallow.
func (m *Memory) GetChildren(ctx context.Context, folderID string) ([]model.Node, error) {
	m.childrenCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h := m.currentHooks().GetChildren; h != nil {
		if err := h(folderID); err != nil {
			return nil, err
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	folder, ok := m.state.nodes[folderID]
	if !ok {
		return nil, fmt.Errorf("get children of %q: %w", folderID, ErrNotFound)
	}
	if !folder.node.IsFolder() {
		return nil, fmt.Errorf("get children of %q: %w", folderID, ErrNotFolder)
	}

	children := make([]model.Node, 0, len(folder.children))
	for _, id := range folder.children {
		children = append(children, m.state.nodes[id].node)
	}
	return children, nil
}

// MoveNode implements Store.
func (m *Memory) MoveNode(ctx context.Context, nodeID, newParentID string) error {
	m.moveCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	if h := m.currentHooks().MoveNode; h != nil {
		if err := h(nodeID, newParentID); err != nil {
			return err
		}
	}

	var oldParentID string
	err := m.mutate(func(s *memState) error {
		n, ok := s.nodes[nodeID]
		if !ok {
			return fmt.Errorf("move %q: %w", nodeID, ErrNotFound)
		}
		if n.node.ParentID == nil {
			return fmt.Errorf("move %q: %w", nodeID, ErrRootMove)
		}
		target, ok := s.nodes[newParentID]
		if !ok {
			return fmt.Errorf("move %q to %q: %w", nodeID, newParentID, ErrNotFound)
		}
		if !target.node.IsFolder() {
			return fmt.Errorf("move %q to %q: %w", nodeID, newParentID, ErrNotFolder)
		}
		for cur := target; cur != nil; cur = s.nodes[cur.node.ParentIDValue()] {
			if cur.node.ID == nodeID {
				return fmt.Errorf("move %q to %q: %w", nodeID, newParentID, ErrCycle)
			}
		}

		oldParentID = *n.node.ParentID
		old := s.nodes[oldParentID]
		old.children = slices.DeleteFunc(old.children, func(id string) bool { return id == nodeID })
		target.children = append(target.children, nodeID)
		n.node.ParentID = model.StringPtr(newParentID)
		return nil
	})
	if err != nil {
		return err
	}

	m.events.publish(model.ChangeEvent{
		Kind:        model.EventMoved,
		NodeID:      nodeID,
		ParentID:    newParentID,
		OldParentID: oldParentID,
	})
	return nil
}

// Create implements Writer. The node (and any children it carries) is
// appended to parentID's children.
func (m *Memory) Create(ctx context.Context, parentID string, node model.Node) (model.Node, error) {
	if err := ctx.Err(); err != nil {
		return model.Node{}, err
	}
	if node.ID == "" {
		node.ID = model.GenerateID()
	}
	if node.DateAdded.IsZero() {
		node.DateAdded = time.Now()
	}
	node.ParentID = model.StringPtr(parentID)

	err := m.mutate(func(s *memState) error {
		parent, ok := s.nodes[parentID]
		if !ok {
			return fmt.Errorf("create under %q: %w", parentID, ErrNotFound)
		}
		if !parent.node.IsFolder() {
			return fmt.Errorf("create under %q: %w", parentID, ErrNotFolder)
		}

		sub, err := buildState([]model.Node{node})
		if err != nil {
			return err
		}
		for id := range sub.nodes {
			if _, dup := s.nodes[id]; dup {
				return fmt.Errorf("create %q: duplicate node id", id)
			}
		}
		for id, n := range sub.nodes {
			s.nodes[id] = n
		}
		s.nodes[node.ID].node.ParentID = model.StringPtr(parentID)
		parent.children = append(parent.children, node.ID)
		return nil
	})
	if err != nil {
		return model.Node{}, err
	}

	m.mu.RLock()
	if _, ok := m.state.nodes[node.ID]; ok {
		node = m.subtreeLocked(node.ID)
	}
	m.mu.RUnlock()

	m.events.publish(model.ChangeEvent{Kind: model.EventCreated, NodeID: node.ID, ParentID: parentID})
	return node, nil
}

// Remove implements Writer. Folders are removed with their contents.
func (m *Memory) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var parentID string
	err := m.mutate(func(s *memState) error {
		n, ok := s.nodes[id]
		if !ok {
			return fmt.Errorf("remove %q: %w", id, ErrNotFound)
		}
		if n.node.ParentID == nil {
			return fmt.Errorf("remove %q: %w", id, ErrRootMove)
		}
		parentID = *n.node.ParentID
		parent := s.nodes[parentID]
		parent.children = slices.DeleteFunc(parent.children, func(c string) bool { return c == id })

		stack := []string{id}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			stack = append(stack, s.nodes[cur].children...)
			delete(s.nodes, cur)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.events.publish(model.ChangeEvent{Kind: model.EventRemoved, NodeID: id, ParentID: parentID})
	return nil
}

// Update changes a node's title and URL.
func (m *Memory) Update(ctx context.Context, id, title, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var parentID string
	err := m.mutate(func(s *memState) error {
		n, ok := s.nodes[id]
		if !ok {
			return fmt.Errorf("update %q: %w", id, ErrNotFound)
		}
		n.node.Title = title
		if !n.node.IsFolder() {
			n.node.URL = url
		}
		parentID = n.node.ParentIDValue()
		return nil
	})
	if err != nil {
		return err
	}

	m.events.publish(model.ChangeEvent{Kind: model.EventChanged, NodeID: id, ParentID: parentID})
	return nil
}

// Reorder sets the order of a folder's children. childIDs must be a
// permutation of the current children.
func (m *Memory) Reorder(ctx context.Context, folderID string, childIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := m.mutate(func(s *memState) error {
		folder, ok := s.nodes[folderID]
		if !ok {
			return fmt.Errorf("reorder %q: %w", folderID, ErrNotFound)
		}
		current := slices.Clone(folder.children)
		proposed := slices.Clone(childIDs)
		slices.Sort(current)
		slices.Sort(proposed)
		if !slices.Equal(current, proposed) {
			return fmt.Errorf("reorder %q: child ids do not match current children", folderID)
		}
		folder.children = slices.Clone(childIDs)
		return nil
	})
	if err != nil {
		return err
	}

	m.events.publish(model.ChangeEvent{Kind: model.EventChildrenReordered, ParentID: folderID})
	return nil
}

// replaceAll swaps in a new forest without committing it.
func (m *Memory) replaceAll(roots []model.Node) error {
	state, err := buildState(roots)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	return nil
}

// mutate applies fn under the write lock. When a commit function is set the
// mutation runs on a copy that is only installed once the commit succeeds.
func (m *Memory) mutate(fn func(s *memState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.commit == nil {
		return fn(&m.state)
	}

	next := m.state.clone()
	if err := fn(&next); err != nil {
		return err
	}

	prev := m.state
	m.state = next
	if err := m.commit(m.exportLocked()); err != nil {
		m.state = prev
		return err
	}
	return nil
}
