// Package engine ties the tree snapshot, search and reorganize packages to a
// store. Reads are lock-free against the last installed snapshot; every
// snapshot write is serialized and applied in arrival order.
package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/nikbrunner/bmtree/internal/config"
	"github.com/nikbrunner/bmtree/internal/model"
	"github.com/nikbrunner/bmtree/internal/reorganize"
	"github.com/nikbrunner/bmtree/internal/search"
	"github.com/nikbrunner/bmtree/internal/store"
	"github.com/nikbrunner/bmtree/internal/tree"
)

// Engine owns the current snapshot of one store.
type Engine struct {
	store    store.Store
	roles    tree.Roles
	reserved string
	log      logrus.FieldLogger
	mover    *reorganize.Service

	snapshot atomic.Pointer[tree.Tree]
	writeMu  sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an Engine. The snapshot is empty until Load succeeds.
func New(st store.Store, cfg config.Config, opts ...Option) *Engine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Engine{
		store:    st,
		roles:    cfg.Roles(),
		reserved: cfg.OtherRootName,
		log:      discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.mover = reorganize.New(st, reorganize.WithLogger(e.log))
	e.snapshot.Store(tree.Empty(e.roles))
	return e
}

// Tree returns the last installed snapshot. It is never nil.
func (e *Engine) Tree() *tree.Tree {
	return e.snapshot.Load()
}

// Load replaces the snapshot with the store's full forest. On error the
// previous snapshot stays installed.
func (e *Engine) Load(ctx context.Context) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.loadLocked(ctx)
}

func (e *Engine) loadLocked(ctx context.Context) error {
	roots, err := e.store.ListRoots(ctx)
	if err != nil {
		return fmt.Errorf("%w: list roots: %w", reorganize.ErrStoreRead, err)
	}
	t, err := tree.Load(roots, e.roles)
	if err != nil {
		return err
	}
	e.snapshot.Store(t)
	e.log.WithField("nodes", t.Len()).Debug("snapshot loaded")
	return nil
}

// Search matches query against the current snapshot and groups the results
// for display.
func (e *Engine) Search(query string) []search.Group {
	t := e.Tree()
	return search.GroupResults(t, search.Search(t, query), e.reserved)
}

// MoveItem moves nodeID under newParentID and returns once the refreshed
// snapshot is installed. Searches keep using the previous snapshot until
// then.
func (e *Engine) MoveItem(ctx context.Context, nodeID, newParentID string) error {
	base := e.Tree()
	oldParentID := ""
	if n, ok := base.Get(nodeID); ok {
		oldParentID = n.ParentID
	}

	next, err := e.mover.Move(ctx, base, nodeID, newParentID)
	if next == base {
		return err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if cur := e.Tree(); cur != base {
		// Another write landed while the move was in flight. Apply the
		// confirmed listings on top of it instead of discarding it.
		next, err = reorganize.Refresh(context.WithoutCancel(ctx), e.store, cur, newParentID, oldParentID)
	}
	e.snapshot.Store(next)
	return err
}

// Run applies store change notifications to the snapshot until ctx is done
// or the store closes its stream.
func (e *Engine) Run(ctx context.Context) error {
	events, cancel := e.store.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := e.Apply(ctx, ev); err != nil {
				e.log.WithError(err).WithFields(logrus.Fields{
					"event": ev.Kind,
					"node":  ev.NodeID,
				}).Warn("apply change")
			}
		}
	}
}

// Apply brings the snapshot in line with one change notification. Affected
// folders are re-read; an event without a parent, or naming a folder the
// snapshot does not know, triggers a full reload.
func (e *Engine) Apply(ctx context.Context, ev model.ChangeEvent) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	folders := ev.AffectedFolders()
	cur := e.Tree()
	if len(folders) == 0 || !knowsAll(cur, folders) {
		return e.loadLocked(ctx)
	}

	next, err := reorganize.Refresh(ctx, e.store, cur, folders...)
	if next != cur {
		e.snapshot.Store(next)
	}
	if err != nil {
		return fmt.Errorf("%s %q: %w", ev.Kind, ev.NodeID, err)
	}

	e.log.WithFields(logrus.Fields{
		"event":   ev.Kind,
		"node":    ev.NodeID,
		"folders": folders,
	}).Debug("applied change")
	return nil
}

func knowsAll(t *tree.Tree, ids []string) bool {
	for _, id := range ids {
		if e, ok := t.Get(id); !ok || !e.IsFolder() {
			return false
		}
	}
	return true
}
