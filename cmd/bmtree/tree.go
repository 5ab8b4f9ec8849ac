package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikbrunner/bmtree/internal/tree"
)

func newTreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the bookmark tree with ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.engine.Load(cmd.Context()); err != nil {
				return err
			}
			t := a.engine.Tree()
			for _, root := range t.Roots() {
				printEntry(out(cmd), t, root, 0)
			}
			return nil
		},
	}
}

func printEntry(w io.Writer, t *tree.Tree, e *tree.Entry, depth int) {
	indent := strings.Repeat("  ", depth)
	if !e.IsFolder() {
		fmt.Fprintf(w, "%s%s  %s  [%s]\n", indent, e.Title, e.URL, e.ID)
		return
	}
	fmt.Fprintf(w, "%s%s/  [%s]\n", indent, e.Title, e.ID)
	for _, c := range t.Children(e.ID) {
		printEntry(w, t, c, depth+1)
	}
}
