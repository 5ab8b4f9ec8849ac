// Package reorganize moves nodes between folders through the store and
// brings a tree snapshot back in line with what the store confirms.
package reorganize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nikbrunner/bmtree/internal/model"
	"github.com/nikbrunner/bmtree/internal/store"
	"github.com/nikbrunner/bmtree/internal/tree"
)

var (
	ErrInvalidMove    = errors.New("invalid move")
	ErrMoveInProgress = errors.New("node is already being moved")
	ErrStoreWrite     = errors.New("store write failed")
	ErrStoreRead      = errors.New("store read failed")
)

// Service executes moves. It is safe for concurrent use.
type Service struct {
	store store.Store
	log   logrus.FieldLogger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = log }
}

// New creates a Service backed by st.
func New(st store.Store, opts ...Option) *Service {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Service{
		store:    st,
		log:      discard,
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks a move against t without touching the store.
func Validate(t *tree.Tree, nodeID, newParentID string) error {
	node, ok := t.Get(nodeID)
	if !ok {
		return fmt.Errorf("%w: node %q: %w", ErrInvalidMove, nodeID, tree.ErrNotFound)
	}
	if node.IsRoot() {
		return fmt.Errorf("%w: node %q is a root", ErrInvalidMove, nodeID)
	}
	target, ok := t.Get(newParentID)
	if !ok {
		return fmt.Errorf("%w: target %q: %w", ErrInvalidMove, newParentID, tree.ErrNotFound)
	}
	if !target.IsFolder() {
		return fmt.Errorf("%w: target %q: %w", ErrInvalidMove, newParentID, tree.ErrNotFolder)
	}
	if nodeID == newParentID {
		return fmt.Errorf("%w: %q cannot be moved into itself", ErrInvalidMove, nodeID)
	}
	if t.IsDescendant(newParentID, nodeID) {
		return fmt.Errorf("%w: %q is inside %q", ErrInvalidMove, newParentID, nodeID)
	}
	return nil
}

// Move reparents nodeID under newParentID, appending it to the new parent's
// children. It returns the tree to install: on success both affected folders
// are refreshed from the store; on a write failure t itself; on a read
// failure the last tree the store confirmed.
//
// The write is the point of no return. Cancelling ctx before it withdraws
// the move; after it the refresh runs to completion regardless.
func (s *Service) Move(ctx context.Context, t *tree.Tree, nodeID, newParentID string) (*tree.Tree, error) {
	if err := Validate(t, nodeID, newParentID); err != nil {
		return t, err
	}

	if !s.acquire(nodeID) {
		return t, fmt.Errorf("move %q: %w", nodeID, ErrMoveInProgress)
	}
	defer s.release(nodeID)

	if err := ctx.Err(); err != nil {
		return t, err
	}

	node, _ := t.Get(nodeID)
	oldParentID := node.ParentID
	log := s.log.WithFields(logrus.Fields{
		"node": nodeID,
		"from": oldParentID,
		"to":   newParentID,
	})

	if err := s.store.MoveNode(ctx, nodeID, newParentID); err != nil {
		log.WithError(err).Warn("store rejected move")
		return t, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	log.Debug("moved")

	// New parent first: it detaches the node from the old parent, so a
	// failed old-parent read cannot leave the node listed twice.
	next, err := Refresh(context.WithoutCancel(ctx), s.store, t, newParentID, oldParentID)
	if err != nil {
		log.WithError(err).Warn("refresh after move")
	}
	return next, err
}

// Refresh re-reads the children of folderIDs from st concurrently and
// applies them to t in the given order, each listing on top of the previous
// one. Duplicate ids are read once. If a read or refresh fails, the tree
// with the folders applied so far is returned together with the error, so
// a stale subtree is never blanked out.
func Refresh(ctx context.Context, st store.Store, t *tree.Tree, folderIDs ...string) (*tree.Tree, error) {
	seen := make(map[string]bool, len(folderIDs))
	folderIDs = slices.DeleteFunc(slices.Clone(folderIDs), func(id string) bool {
		dup := seen[id]
		seen[id] = true
		return dup
	})

	listings := make([][]model.Node, len(folderIDs))
	readErrs := make([]error, len(folderIDs))

	var g errgroup.Group
	for i, id := range folderIDs {
		g.Go(func() error {
			listings[i], readErrs[i] = st.GetChildren(ctx, id)
			return readErrs[i]
		})
	}
	_ = g.Wait()

	for i, id := range folderIDs {
		if readErrs[i] != nil {
			return t, fmt.Errorf("%w: children of %q: %w", ErrStoreRead, id, readErrs[i])
		}
		pending := unknownFolders(t, listings[i], nil)
		next, err := t.RefreshSubtree(id, listings[i])
		if err != nil {
			return t, fmt.Errorf("refresh %q: %w", id, err)
		}
		t = next

		// Listings are shallow: a folder this tree has never seen needs its
		// own contents read.
		for len(pending) > 0 {
			id := pending[0]
			pending = pending[1:]

			children, err := st.GetChildren(ctx, id)
			if err != nil {
				return t, fmt.Errorf("%w: children of %q: %w", ErrStoreRead, id, err)
			}
			pending = unknownFolders(t, children, pending)
			next, err := t.RefreshSubtree(id, children)
			if err != nil {
				return t, fmt.Errorf("refresh %q: %w", id, err)
			}
			t = next
		}
	}
	return t, nil
}

// unknownFolders appends the ids of folders in nodes that t does not hold and
// whose contents were not listed.
func unknownFolders(t *tree.Tree, nodes []model.Node, ids []string) []string {
	for i := range nodes {
		n := &nodes[i]
		if !n.IsFolder() {
			continue
		}
		if n.Children != nil {
			ids = unknownFolders(t, n.Children, ids)
			continue
		}
		if _, ok := t.Get(n.ID); !ok {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

func (s *Service) acquire(nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[nodeID]; busy {
		return false
	}
	s.inFlight[nodeID] = struct{}{}
	return true
}

func (s *Service) release(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, nodeID)
}
