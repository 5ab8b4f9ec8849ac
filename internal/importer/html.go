// Package importer reads Netscape bookmark HTML files.
package importer

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"

	"github.com/nikbrunner/bmtree/internal/model"
	"github.com/nikbrunner/bmtree/internal/store"
	"github.com/nikbrunner/bmtree/internal/tree"
)

// pending is a folder or bookmark whose children are still being parsed.
type pending struct {
	node     model.Node
	children []*pending
	toolbar  bool
}

func (p *pending) build() model.Node {
	n := p.node
	if n.IsFolder() {
		n.Children = make([]model.Node, 0, len(p.children))
		for _, c := range p.children {
			child := c.build()
			child.ParentID = model.StringPtr(n.ID)
			n.Children = append(n.Children, child)
		}
	}
	return n
}

// Document is a parsed bookmark file.
type Document struct {
	// Nodes are the top-level entries, without parents.
	Nodes []model.Node
	// ToolbarID is the id of the top-level folder flagged as the browser
	// toolbar (PERSONAL_TOOLBAR_FOLDER), if any.
	ToolbarID string
}

// ParseHTML parses Netscape bookmark HTML into a nested forest.
func ParseHTML(r io.Reader) (Document, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Document{}, err
	}

	root := &pending{node: model.Node{Kind: model.KindFolder}}

	// Track current folder stack for hierarchy
	stack := []*pending{root}
	var pendingFolder *pending // folder waiting to be pushed on next DL

	var parse func(*html.Node)
	parse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "h3":
				// Folder definition - get name from text content
				name := getTextContent(n)
				if name != "" {
					parent := stack[len(stack)-1]
					folder := &pending{
						node: model.NewFolder(model.NewFolderParams{Title: name}),
						toolbar: len(stack) == 1 &&
							strings.EqualFold(getAttr(n, "personal_toolbar_folder"), "true"),
					}
					folder.node.DateAdded = parseDate(getAttr(n, "add_date"))
					parent.children = append(parent.children, folder)

					// Mark this folder as pending - will be pushed when we see the next DL
					pendingFolder = folder
				}
				return // Don't recurse into H3

			case "a":
				// Bookmark definition
				href := getAttr(n, "href")
				if href == "" {
					// Skip bookmarks without URL
					return
				}

				title := getTextContent(n)
				if title == "" {
					title = href // fallback to URL as title
				}

				bookmark := model.NewBookmark(model.NewBookmarkParams{Title: title, URL: href})
				bookmark.DateAdded = parseDate(getAttr(n, "add_date"))

				parent := stack[len(stack)-1]
				parent.children = append(parent.children, &pending{node: bookmark})
				return // Don't recurse into A

			case "dl":
				// Definition list - marks folder contents
				// If we have a pending folder, push it now
				pushedFolder := false
				if pendingFolder != nil {
					stack = append(stack, pendingFolder)
					pendingFolder = nil
					pushedFolder = true
				}

				// Process children
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					parse(c)
				}

				// Pop if we pushed
				if pushedFolder && len(stack) > 1 {
					stack = stack[:len(stack)-1]
				}
				return // Don't recurse further, we handled children
			}
		}

		// Recurse into children
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			parse(c)
		}
	}

	parse(doc)

	var out Document
	for _, p := range root.children {
		n := p.build()
		if p.toolbar && out.ToolbarID == "" {
			out.ToolbarID = n.ID
		}
		out.Nodes = append(out.Nodes, n)
	}
	return out, nil
}

func parseDate(s string) time.Time {
	if s != "" {
		if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(ts, 0)
		}
	}
	return time.Now()
}

// getTextContent returns the text content of a node.
func getTextContent(n *html.Node) string {
	var text strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(text.String())
}

// getAttr returns the value of an attribute, case-insensitive.
func getAttr(n *html.Node, key string) string {
	key = strings.ToLower(key)
	for _, attr := range n.Attr {
		if strings.ToLower(attr.Key) == key {
			return attr.Val
		}
	}
	return ""
}

// Placement is an imported node and the folder it goes into.
type Placement struct {
	ParentID string
	Node     model.Node
}

// Place maps a parsed document onto the roots of t. The toolbar folder and
// any top-level folder titled like a root are merged into that root; every
// other top-level entry goes under the other root.
func Place(t *tree.Tree, doc Document) []Placement {
	fold := cases.Fold()
	rootByTitle := make(map[string]string)
	for _, r := range t.Roots() {
		rootByTitle[fold.String(r.Title)] = r.ID
	}
	roles := t.Roles()

	var out []Placement
	for _, n := range doc.Nodes {
		target := ""
		if n.IsFolder() {
			if n.ID == doc.ToolbarID {
				target = roles.ToolbarID
			} else {
				target = rootByTitle[fold.String(n.Title)]
			}
		}
		if target == "" {
			out = append(out, Placement{ParentID: roles.OtherID, Node: n})
			continue
		}
		for _, c := range n.Children {
			out = append(out, Placement{ParentID: target, Node: c})
		}
	}
	return out
}

// Import creates every placement in w and returns how many nodes were
// created, counting descendants.
func Import(ctx context.Context, w store.Writer, placements []Placement) (int, error) {
	created := 0
	for _, p := range placements {
		if _, err := w.Create(ctx, p.ParentID, p.Node); err != nil {
			return created, err
		}
		created += countNodes(p.Node)
	}
	return created, nil
}

func countNodes(n model.Node) int {
	count := 1
	for _, c := range n.Children {
		count += countNodes(c)
	}
	return count
}
