package model

// EventKind is the kind of structural change a store reports.
type EventKind int

const (
	EventCreated EventKind = iota
	EventRemoved
	EventChanged
	EventMoved
	EventChildrenReordered
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventRemoved:
		return "removed"
	case EventChanged:
		return "changed"
	case EventMoved:
		return "moved"
	case EventChildrenReordered:
		return "childrenReordered"
	}
	return "unknown"
}

// ChangeEvent is one entry of a store's change-notification stream.
type ChangeEvent struct {
	Kind   EventKind
	NodeID string

	// ParentID is the folder whose children changed. For EventMoved it is
	// the new parent.
	ParentID string

	// OldParentID is set for EventMoved only.
	OldParentID string
}

// AffectedFolders returns the folders whose child lists need a refresh.
func (e ChangeEvent) AffectedFolders() []string {
	var ids []string
	if e.ParentID != "" {
		ids = append(ids, e.ParentID)
	}
	if e.OldParentID != "" && e.OldParentID != e.ParentID {
		ids = append(ids, e.OldParentID)
	}
	return ids
}
