// Package exporter writes bookmark trees as Netscape bookmark HTML.
package exporter

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nikbrunner/bmtree/internal/tree"
)

// DefaultExportPath returns the default export file path.
// Format: ~/Downloads/bookmarks-export-YYYY-MM-DD.html
func DefaultExportPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("bookmarks-export-%s.html", time.Now().Format("2006-01-02"))
	return filepath.Join(home, "Downloads", filename), nil
}

// ExportHTML exports the tree to Netscape bookmark HTML format. Each root
// becomes a top-level folder; the toolbar root is flagged so browsers
// import it as their toolbar.
func ExportHTML(t *tree.Tree) string {
	var b strings.Builder

	// Header
	b.WriteString("<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	b.WriteString("<META HTTP-EQUIV=\"Content-Type\" CONTENT=\"text/html; charset=UTF-8\">\n")
	b.WriteString("<TITLE>Bookmarks</TITLE>\n")
	b.WriteString("<H1>Bookmarks</H1>\n")
	b.WriteString("<DL><p>\n")

	toolbarID := t.Roles().ToolbarID
	for _, root := range t.Roots() {
		writeEntry(&b, t, root, 1, root.ID == toolbarID)
	}

	// Footer
	b.WriteString("</DL><p>\n")

	return b.String()
}

// writeEntry recursively writes one entry in stored child order.
func writeEntry(b *strings.Builder, t *tree.Tree, e *tree.Entry, indent int, toolbar bool) {
	prefix := strings.Repeat("    ", indent)

	if !e.IsFolder() {
		fmt.Fprintf(b,
			"%s<DT><A HREF=\"%s\" ADD_DATE=\"%d\">%s</A>\n",
			prefix,
			html.EscapeString(e.URL),
			e.DateAdded.Unix(),
			html.EscapeString(e.Title),
		)
		return
	}

	attrs := ""
	if !e.DateAdded.IsZero() {
		attrs += fmt.Sprintf(" ADD_DATE=\"%d\"", e.DateAdded.Unix())
	}
	if toolbar {
		attrs += " PERSONAL_TOOLBAR_FOLDER=\"true\""
	}
	fmt.Fprintf(b, "%s<DT><H3%s>%s</H3>\n", prefix, attrs, html.EscapeString(e.Title))
	fmt.Fprintf(b, "%s<DL><p>\n", prefix)
	for _, c := range t.Children(e.ID) {
		writeEntry(b, t, c, indent+1, false)
	}
	fmt.Fprintf(b, "%s</DL><p>\n", prefix)
}
