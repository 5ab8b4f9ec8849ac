package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikbrunner/bmtree/internal/search"
	"github.com/nikbrunner/bmtree/internal/tree"
)

func newMoveCmd(a *app) *cobra.Command {
	var (
		toID   string
		toName string
	)

	cmd := &cobra.Command{
		Use:   "move <node-id>",
		Short: "Move a bookmark or folder into another folder",
		Long: `Move a node to the end of another folder. The target is given either by
id or by a fuzzy folder name; with a name the best match is used.

Examples:
  bmtree move 8f0c... --to-id 1
  bmtree move 8f0c... --to "reading later"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (toID == "") == (toName == "") {
				return errors.New("exactly one of --to-id or --to is required")
			}
			if err := a.engine.Load(cmd.Context()); err != nil {
				return err
			}
			t := a.engine.Tree()

			target := toID
			if toName != "" {
				id, err := resolveFolder(t, toName)
				if err != nil {
					return err
				}
				target = id
			}

			if err := a.engine.MoveItem(cmd.Context(), args[0], target); err != nil {
				return err
			}

			t = a.engine.Tree()
			moved, _ := t.Get(args[0])
			fmt.Fprintf(out(cmd), "Moved %s to %s\n", moved.Title, search.FolderPath(t, target))
			return nil
		},
	}
	cmd.Flags().StringVar(&toID, "to-id", "", "id of the target folder")
	cmd.Flags().StringVar(&toName, "to", "", "fuzzy name of the target folder")
	return cmd
}

func resolveFolder(t *tree.Tree, name string) (string, error) {
	matches := search.FindFolders(t, name)
	if len(matches) == 0 {
		return "", fmt.Errorf("no folder matches %q", name)
	}
	return matches[0].Folder.ID, nil
}

func newFoldersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "folders <query>",
		Short: "Fuzzy-find folders (move targets)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.engine.Load(cmd.Context()); err != nil {
				return err
			}
			matches := search.FindFolders(a.engine.Tree(), strings.Join(args, " "))
			if len(matches) == 0 {
				fmt.Fprintln(out(cmd), "No matches.")
				return nil
			}
			for _, m := range matches {
				fmt.Fprintf(out(cmd), "%s  [%s]\n", m.Path, m.Folder.ID)
			}
			return nil
		},
	}
}
