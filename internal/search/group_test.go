package search_test

import (
	"testing"

	"github.com/nikbrunner/bmtree/internal/search"
	"gotest.tools/v3/assert"
)

func subgroupIDs(g search.Group) []string {
	ids := make([]string, len(g.Subgroups))
	for i, sg := range g.Subgroups {
		ids[i] = sg.FolderID
	}
	return ids
}

func TestGroupResults_Scenario(t *testing.T) {
	tr := load(t,
		folder("1", "Bar",
			folder("work", "Work",
				bookmark("gmail", "Gmail", "https://mail.google.com"),
			),
		),
		folder("2", reserved),
	)

	results := search.Search(tr, "mail")
	assert.DeepEqual(t, resultIDs(results), []string{"gmail"})

	gmail, _ := tr.Get("gmail")
	if got := search.ResolvePrimaryAncestor(tr, gmail); got.Title != "Bar" {
		t.Errorf("expected Gmail to resolve to Bar, got %q", got.Title)
	}

	groups := search.GroupResults(tr, results, reserved)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if g.RootFolder.Title != "Bar" {
		t.Errorf("expected group Bar, got %q", g.RootFolder.Title)
	}
	if len(g.Subgroups) != 1 || g.Subgroups[0].Folder.Title != "Work" {
		t.Fatalf("expected one Work subgroup, got %v", subgroupIDs(g))
	}
	if len(g.Subgroups[0].Bookmarks) != 1 || g.Subgroups[0].Bookmarks[0].ID != "gmail" {
		t.Errorf("expected Gmail in Work subgroup")
	}
}

func TestGroupResults_Empty(t *testing.T) {
	tr := sampleTree(t)

	if groups := search.GroupResults(tr, nil, reserved); len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
}

func TestGroupResults_PartitionsAndOrders(t *testing.T) {
	tr := sampleTree(t)

	// "mail" hits: gmail (Bar/Work), mailing (Bar/Work), blog (Reading),
	// stray (catch-all root, dropped).
	groups := search.GroupResults(tr, search.Search(tr, "mail"), reserved)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	assert.Equal(t, groups[0].RootFolder.ID, "1")
	assert.DeepEqual(t, subgroupIDs(groups[0]), []string{"work"})
	assert.Equal(t, groups[0].Count(), 2)

	assert.Equal(t, groups[1].RootFolder.ID, "reading")
	assert.DeepEqual(t, subgroupIDs(groups[1]), []string{"reading"})
}

func TestGroupResults_SortsBySubgroupCountStable(t *testing.T) {
	tr := sampleTree(t)

	// "https" hits every bookmark. Reading and News have one folder each,
	// Bar spans Work, Mailing Lists and Bar itself.
	groups := search.GroupResults(tr, search.Search(tr, "https"), reserved)

	var roots []string
	for _, g := range groups {
		roots = append(roots, g.RootFolder.ID)
	}
	assert.DeepEqual(t, roots, []string{"1", "reading", "news"})
	assert.DeepEqual(t, subgroupIDs(groups[0]), []string{"work", "mailing", "1"})

	for i := 1; i < len(groups); i++ {
		if len(groups[i-1].Subgroups) < len(groups[i].Subgroups) {
			t.Errorf("groups not sorted by subgroup count at %d", i)
		}
	}
}

func TestGroupResults_TiesKeepFirstSeenOrder(t *testing.T) {
	tr := sampleTree(t)

	hn, _ := tr.Get("hn")
	blog, _ := tr.Get("blog")
	results := []search.Result{
		{Entry: hn, PrimaryAncestorID: "news", ParentID: "news"},
		{Entry: blog, PrimaryAncestorID: "reading", ParentID: "reading"},
	}

	groups := search.GroupResults(tr, results, reserved)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].RootFolder.ID != "news" || groups[1].RootFolder.ID != "reading" {
		t.Errorf("expected first-seen order news, reading; got %s, %s",
			groups[0].RootFolder.ID, groups[1].RootFolder.ID)
	}
}

func TestGroupResults_PrimaryFolderMatchedByTitle(t *testing.T) {
	tr := sampleTree(t)

	// Reading sits directly under the catch-all root; it is listed under
	// itself instead of vanishing with the reserved subgroup.
	groups := search.GroupResults(tr, search.Search(tr, "reading"), reserved)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	assert.Equal(t, groups[0].RootFolder.ID, "reading")
	assert.DeepEqual(t, subgroupIDs(groups[0]), []string{"reading"})
	assert.Equal(t, groups[0].Subgroups[0].Bookmarks[0].ID, "reading")
}

func TestGroupResults_KeepsGroupWithOnlyReservedSubgroups(t *testing.T) {
	tr := load(t,
		folder("1", "Bar",
			folder("nested", reserved,
				bookmark("x", "X", "https://x.example.com"),
			),
		),
		folder("2", reserved),
	)

	groups := search.GroupResults(tr, search.Search(tr, "x.example"), reserved)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	assert.Equal(t, groups[0].RootFolder.ID, "1")
	assert.Equal(t, len(groups[0].Subgroups), 0)
}

func TestGroupResults_DropsReservedFolders(t *testing.T) {
	tr := sampleTree(t)

	for _, g := range search.GroupResults(tr, search.Search(tr, "e"), reserved) {
		if g.RootFolder.Title == reserved {
			t.Error("catch-all root must never be a group")
		}
		for _, sg := range g.Subgroups {
			if sg.Folder != nil && sg.Folder.Title == reserved {
				t.Errorf("catch-all root must never be a subgroup of %q", g.RootFolder.ID)
			}
		}
	}
}

func TestGroupResults_RootMatchHasNoFolder(t *testing.T) {
	tr := sampleTree(t)

	groups := search.GroupResults(tr, search.Search(tr, "bar"), reserved)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	sg := groups[0].Subgroups[0]
	if sg.FolderID != "" || sg.Folder != nil {
		t.Errorf("expected root-level subgroup without folder, got %q", sg.FolderID)
	}
}
