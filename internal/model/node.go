package model

import "time"

// NodeKind distinguishes folders from bookmarks.
type NodeKind int

const (
	KindFolder NodeKind = iota
	KindBookmark
)

// String returns the kind name used in storage and JSON.
func (k NodeKind) String() string {
	if k == KindBookmark {
		return "bookmark"
	}
	return "folder"
}

// ParseNodeKind maps a stored kind name back to a NodeKind.
func ParseNodeKind(s string) NodeKind {
	if s == "bookmark" {
		return KindBookmark
	}
	return KindFolder
}

// Node is one entry of the bookmark forest as exchanged with a store.
type Node struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Kind      NodeKind  `json:"kind"`
	ParentID  *string   `json:"parentId"` // nil = root
	DateAdded time.Time `json:"dateAdded"`

	// Children is nil when the store did not load them (shallow listing).
	// An empty, non-nil slice is an empty folder.
	Children []Node `json:"children,omitempty"`
}

// IsFolder returns true if the node is a folder.
func (n Node) IsFolder() bool {
	return n.Kind == KindFolder
}

// NewFolderParams holds parameters for creating a new folder Node.
type NewFolderParams struct {
	Title    string
	ParentID *string
}

// NewFolder creates an empty folder with a generated ID.
func NewFolder(params NewFolderParams) Node {
	return Node{
		ID:        GenerateID(),
		Title:     params.Title,
		Kind:      KindFolder,
		ParentID:  params.ParentID,
		DateAdded: time.Now(),
		Children:  []Node{},
	}
}

// NewBookmarkParams holds parameters for creating a new bookmark Node.
type NewBookmarkParams struct {
	Title    string
	URL      string
	ParentID *string
}

// NewBookmark creates a bookmark with a generated ID.
func NewBookmark(params NewBookmarkParams) Node {
	return Node{
		ID:        GenerateID(),
		Title:     params.Title,
		URL:       params.URL,
		Kind:      KindBookmark,
		ParentID:  params.ParentID,
		DateAdded: time.Now(),
	}
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// ParentIDValue returns the parent id or "" for roots.
func (n Node) ParentIDValue() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}
