package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nikbrunner/bmtree/internal/model"
	"github.com/nikbrunner/bmtree/internal/store"
)

type writableStore interface {
	store.Store
	store.Writer
}

// seed fills s with:
//
//	1 Bookmarks Bar
//	  work/
//	    gmail
//	  gh
//	2 Other Bookmarks
//	  dev/
//	    go/
func seed(t *testing.T, s writableStore) {
	t.Helper()
	ctx := context.Background()

	work := model.Node{ID: "work", Title: "work", Kind: model.KindFolder, Children: []model.Node{
		{ID: "gmail", Title: "Gmail", URL: "https://mail.google.com", Kind: model.KindBookmark},
	}}
	dev := model.Node{ID: "dev", Title: "dev", Kind: model.KindFolder, Children: []model.Node{
		{ID: "go", Title: "go", Kind: model.KindFolder, Children: []model.Node{}},
	}}
	gh := model.Node{ID: "gh", Title: "GitHub", URL: "https://github.com", Kind: model.KindBookmark}

	for _, c := range []struct {
		parent string
		node   model.Node
	}{
		{store.ToolbarRootID, work},
		{store.ToolbarRootID, gh},
		{store.OtherRootID, dev},
	} {
		if _, err := s.Create(ctx, c.parent, c.node); err != nil {
			t.Fatalf("seed %s: %v", c.node.ID, err)
		}
	}
}

func childIDs(nodes []model.Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func backends(t *testing.T) map[string]func(t *testing.T) writableStore {
	return map[string]func(t *testing.T) writableStore{
		"memory": func(t *testing.T) writableStore {
			return store.NewMemory()
		},
		"json": func(t *testing.T) writableStore {
			s, err := store.OpenJSONFile(filepath.Join(t.TempDir(), "bookmarks.json"))
			if err != nil {
				t.Fatalf("open json store: %v", err)
			}
			return s
		},
		"sqlite": func(t *testing.T) writableStore {
			s, err := store.NewSQLite(filepath.Join(t.TempDir(), "bookmarks.db"))
			if err != nil {
				t.Fatalf("open sqlite store: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStore_ListRootsReturnsFullForest(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)

			roots, err := s.ListRoots(context.Background())
			if err != nil {
				t.Fatalf("ListRoots: %v", err)
			}
			if got := childIDs(roots); !equalIDs(got, []string{"1", "2"}) {
				t.Fatalf("expected roots [1 2], got %v", got)
			}
			if roots[0].ParentID != nil {
				t.Errorf("expected root without parent, got %q", *roots[0].ParentID)
			}
			if got := childIDs(roots[0].Children); !equalIDs(got, []string{"work", "gh"}) {
				t.Errorf("expected toolbar children [work gh], got %v", got)
			}
			work := roots[0].Children[0]
			if got := childIDs(work.Children); !equalIDs(got, []string{"gmail"}) {
				t.Errorf("expected work children [gmail], got %v", got)
			}
			if work.Children[0].ParentIDValue() != "work" {
				t.Errorf("expected gmail parent work, got %q", work.Children[0].ParentIDValue())
			}
			goFolder := roots[1].Children[0].Children[0]
			if goFolder.Children == nil {
				t.Error("expected empty folder to have loaded (non-nil) children")
			}
		})
	}
}

func TestStore_GetChildren(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)
			ctx := context.Background()

			children, err := s.GetChildren(ctx, store.ToolbarRootID)
			if err != nil {
				t.Fatalf("GetChildren: %v", err)
			}
			if got := childIDs(children); !equalIDs(got, []string{"work", "gh"}) {
				t.Errorf("expected [work gh], got %v", got)
			}
			if children[1].URL != "https://github.com" {
				t.Errorf("expected gh url, got %q", children[1].URL)
			}

			if _, err := s.GetChildren(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
			if _, err := s.GetChildren(ctx, "gh"); !errors.Is(err, store.ErrNotFolder) {
				t.Errorf("expected ErrNotFolder, got %v", err)
			}
		})
	}
}

func TestStore_MoveNodeAppendsAndNotifies(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)
			ctx := context.Background()

			events, cancel := s.Subscribe()
			defer cancel()

			if err := s.MoveNode(ctx, "work", "dev"); err != nil {
				t.Fatalf("MoveNode: %v", err)
			}

			toolbar, _ := s.GetChildren(ctx, store.ToolbarRootID)
			if got := childIDs(toolbar); !equalIDs(got, []string{"gh"}) {
				t.Errorf("expected toolbar [gh], got %v", got)
			}
			dev, _ := s.GetChildren(ctx, "dev")
			if got := childIDs(dev); !equalIDs(got, []string{"go", "work"}) {
				t.Errorf("expected dev [go work], got %v", got)
			}
			if dev[1].ParentIDValue() != "dev" {
				t.Errorf("expected work parent dev, got %q", dev[1].ParentIDValue())
			}

			e := <-events
			want := model.ChangeEvent{Kind: model.EventMoved, NodeID: "work", ParentID: "dev", OldParentID: store.ToolbarRootID}
			if e != want {
				t.Errorf("expected %+v, got %+v", want, e)
			}

			// Moving back restores the original parent, appended last.
			if err := s.MoveNode(ctx, "work", store.ToolbarRootID); err != nil {
				t.Fatalf("MoveNode back: %v", err)
			}
			toolbar, _ = s.GetChildren(ctx, store.ToolbarRootID)
			if got := childIDs(toolbar); !equalIDs(got, []string{"gh", "work"}) {
				t.Errorf("expected toolbar [gh work], got %v", got)
			}
		})
	}
}

func TestStore_MoveNodeRejects(t *testing.T) {
	tests := []struct {
		name    string
		node    string
		parent  string
		wantErr error
	}{
		{"into itself", "dev", "dev", store.ErrCycle},
		{"into descendant", "dev", "go", store.ErrCycle},
		{"into bookmark", "work", "gh", store.ErrNotFolder},
		{"unknown node", "nope", "dev", store.ErrNotFound},
		{"unknown parent", "gh", "nope", store.ErrNotFound},
		{"root", store.OtherRootID, "work", store.ErrRootMove},
	}

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)

			for _, tt := range tests {
				err := s.MoveNode(context.Background(), tt.node, tt.parent)
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("%s: expected %v, got %v", tt.name, tt.wantErr, err)
				}
			}

			roots, _ := s.ListRoots(context.Background())
			if got := childIDs(roots[1].Children); !equalIDs(got, []string{"dev"}) {
				t.Errorf("expected store unchanged, Other children %v", got)
			}
		})
	}
}

func TestStore_RemoveDropsSubtree(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)
			ctx := context.Background()

			events, cancel := s.Subscribe()
			defer cancel()

			if err := s.Remove(ctx, "work"); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			toolbar, _ := s.GetChildren(ctx, store.ToolbarRootID)
			if got := childIDs(toolbar); !equalIDs(got, []string{"gh"}) {
				t.Errorf("expected toolbar [gh], got %v", got)
			}
			if _, err := s.GetChildren(ctx, "work"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("expected removed folder to be gone, got %v", err)
			}
			if err := s.MoveNode(ctx, "gmail", "dev"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("expected removed child to be gone, got %v", err)
			}

			e := <-events
			if e.Kind != model.EventRemoved || e.NodeID != "work" || e.ParentID != store.ToolbarRootID {
				t.Errorf("unexpected event %+v", e)
			}

			if err := s.Remove(ctx, store.ToolbarRootID); !errors.Is(err, store.ErrRootMove) {
				t.Errorf("expected ErrRootMove, got %v", err)
			}
		})
	}
}

func TestStore_CreateRejectsBookmarkParent(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			seed(t, s)

			_, err := s.Create(context.Background(), "gh", model.NewBookmark(model.NewBookmarkParams{Title: "x", URL: "https://x"}))
			if !errors.Is(err, store.ErrNotFolder) {
				t.Errorf("expected ErrNotFolder, got %v", err)
			}
		})
	}
}

func TestStore_CreateLeavesInputUntouched(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			node := model.Node{Title: "Imported", Kind: model.KindFolder, Children: []model.Node{
				{Title: "Deep", URL: "https://deep.example.com", Kind: model.KindBookmark},
			}}

			created, err := s.Create(context.Background(), store.OtherRootID, node)
			if err != nil {
				t.Fatal(err)
			}
			if node.Children[0].ID != "" {
				t.Errorf("caller's child was assigned id %q", node.Children[0].ID)
			}
			if len(created.Children) != 1 || created.Children[0].ID == "" {
				t.Errorf("expected created child with generated id, got %+v", created.Children)
			}
		})
	}
}
