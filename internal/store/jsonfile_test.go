package store_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nikbrunner/bmtree/internal/model"
	"github.com/nikbrunner/bmtree/internal/store"
)

func TestJSONFile_MissingFileHasFixedRoots(t *testing.T) {
	s, err := store.OpenJSONFile(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatalf("OpenJSONFile: %v", err)
	}

	roots, err := s.ListRoots(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := childIDs(roots); !equalIDs(got, []string{store.ToolbarRootID, store.OtherRootID}) {
		t.Errorf("expected fixed roots, got %v", got)
	}
	if roots[1].Title != store.OtherRootTitle {
		t.Errorf("expected %q, got %q", store.OtherRootTitle, roots[1].Title)
	}
}

func TestJSONFile_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bookmarks.json")

	s, err := store.OpenJSONFile(path)
	if err != nil {
		t.Fatal(err)
	}
	seed(t, s)
	if err := s.MoveNode(context.Background(), "gh", "dev"); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to be written: %v", err)
	}

	reopened, err := store.OpenJSONFile(path)
	if err != nil {
		t.Fatal(err)
	}
	dev, err := reopened.GetChildren(context.Background(), "dev")
	if err != nil {
		t.Fatal(err)
	}
	if got := childIDs(dev); !equalIDs(got, []string{"go", "gh"}) {
		t.Errorf("expected dev [go gh] after reopen, got %v", got)
	}
}

func TestJSONFile_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.OpenJSONFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestJSONFile_WatchReloadsExternalChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.json")
	s, err := store.OpenJSONFile(path)
	if err != nil {
		t.Fatal(err)
	}

	events, cancel := s.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	roots := store.DefaultRoots()
	roots[1].Children = []model.Node{{ID: "ext", Title: "External", URL: "https://example.com", Kind: model.KindBookmark}}
	data, err := json.Marshal(map[string]any{"version": 1, "roots": roots})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-events:
		if e.Kind != model.EventChanged || e.ParentID != "" {
			t.Errorf("expected parentless change event, got %+v", e)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event after external write")
	}

	other, err := s.GetChildren(context.Background(), store.OtherRootID)
	if err != nil {
		t.Fatal(err)
	}
	if got := childIDs(other); !equalIDs(got, []string{"ext"}) {
		t.Errorf("expected reloaded children [ext], got %v", got)
	}

	stop()
	if err := <-done; err != nil {
		t.Errorf("Watch: %v", err)
	}
}
