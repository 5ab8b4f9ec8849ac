package search_test

import (
	"testing"

	"github.com/nikbrunner/bmtree/internal/model"
	"github.com/nikbrunner/bmtree/internal/search"
	"github.com/nikbrunner/bmtree/internal/tree"
)

const reserved = "Other Bookmarks"

var testRoles = tree.Roles{ToolbarID: "1", OtherID: "2"}

func folder(id, title string, children ...model.Node) model.Node {
	if children == nil {
		children = []model.Node{}
	}
	return model.Node{ID: id, Title: title, Kind: model.KindFolder, Children: children}
}

func bookmark(id, title, url string) model.Node {
	return model.Node{ID: id, Title: title, URL: url, Kind: model.KindBookmark}
}

func load(t *testing.T, roots ...model.Node) *tree.Tree {
	t.Helper()
	tr, err := tree.Load(roots, testRoles)
	if err != nil {
		t.Fatalf("failed to load tree: %v", err)
	}
	return tr
}

// sampleTree builds a toolbar root "Bar" and a catch-all root:
//
//	1 Bar
//	  work Work
//	    gmail Gmail (https://mail.google.com)
//	    mailing Mailing Lists (folder)
//	      lkml LKML (https://lkml.org)
//	  gh GitHub (https://github.com)
//	2 Other Bookmarks
//	  reading Reading
//	    blog Mail Blog (https://blog.example.com)
//	  news News
//	    hn Hacker News (https://news.ycombinator.com)
//	  stray Stray Mail (https://stray.example.com)
func sampleTree(t *testing.T) *tree.Tree {
	return load(t,
		folder("1", "Bar",
			folder("work", "Work",
				bookmark("gmail", "Gmail", "https://mail.google.com"),
				folder("mailing", "Mailing Lists",
					bookmark("lkml", "LKML", "https://lkml.org"),
				),
			),
			bookmark("gh", "GitHub", "https://github.com"),
		),
		folder("2", reserved,
			folder("reading", "Reading",
				bookmark("blog", "Mail Blog", "https://blog.example.com"),
			),
			folder("news", "News",
				bookmark("hn", "Hacker News", "https://news.ycombinator.com"),
			),
			bookmark("stray", "Stray Mail", "https://stray.example.com"),
		),
	)
}

func resultIDs(results []search.Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Entry.ID
	}
	return ids
}
