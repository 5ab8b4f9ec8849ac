// Package store defines the external bookmark store the engine talks to and
// provides in-memory, JSON file and SQLite implementations of it.
package store

import (
	"context"
	"errors"

	"github.com/nikbrunner/bmtree/internal/model"
)

// Fixed roots created by every store in this package.
const (
	ToolbarRootID    = "1"
	ToolbarRootTitle = "Bookmarks Bar"
	OtherRootID      = "2"
	OtherRootTitle   = "Other Bookmarks"
)

var (
	ErrNotFound  = errors.New("node not found")
	ErrNotFolder = errors.New("not a folder")
	ErrCycle     = errors.New("folder cannot be moved into itself")
	ErrRootMove  = errors.New("roots cannot be moved")
)

// Store is the persistent bookmark store.
type Store interface {
	// ListRoots returns every root with its full subtree loaded.
	ListRoots(ctx context.Context) ([]model.Node, error)

	// GetChildren returns the direct children of a folder in display order.
	// Folder children may come back with Children == nil (not loaded).
	GetChildren(ctx context.Context, folderID string) ([]model.Node, error)

	// MoveNode reparents a node, appending it to the new parent's children.
	MoveNode(ctx context.Context, nodeID, newParentID string) error

	// Subscribe returns the change-notification stream and a function that
	// ends the subscription and closes the channel.
	Subscribe() (<-chan model.ChangeEvent, func())
}

// Writer is implemented by stores that accept new content.
type Writer interface {
	Create(ctx context.Context, parentID string, node model.Node) (model.Node, error)
	Remove(ctx context.Context, id string) error
}

// DefaultRoots returns the empty fixed roots.
func DefaultRoots() []model.Node {
	return []model.Node{
		{ID: ToolbarRootID, Title: ToolbarRootTitle, Kind: model.KindFolder, Children: []model.Node{}},
		{ID: OtherRootID, Title: OtherRootTitle, Kind: model.KindFolder, Children: []model.Node{}},
	}
}
