package main

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikbrunner/bmtree/internal/picker"
	"github.com/nikbrunner/bmtree/internal/search"
)

func newSearchCmd(a *app) *cobra.Command {
	var pick bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search titles and URLs, grouped by sidebar folder",
		Long: `Search every bookmark and folder whose title (or URL) contains the query,
ignoring case. Results are grouped by their sidebar-level folder and then
by the folder that directly contains them.

Examples:
  bmtree search mail
  bmtree search "go docs" --pick`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.engine.Load(cmd.Context()); err != nil {
				return err
			}

			query := strings.Join(args, " ")
			groups := a.engine.Search(query)

			if !pick {
				printGroups(cmd, groups)
				return nil
			}

			if len(groups) == 0 {
				fmt.Fprintf(out(cmd), "No bookmarks found for '%s'\n", query)
				return nil
			}
			selected, err := picker.Run(groups, query)
			if err != nil {
				return fmt.Errorf("run picker: %w", err)
			}
			if selected == nil || selected.IsFolder() {
				return nil
			}
			fmt.Fprintf(out(cmd), "Opening: %s\n", selected.Title)
			openURL(selected.URL)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&pick, "pick", "p", false, "choose a result interactively and open it")
	return cmd
}

func printGroups(cmd *cobra.Command, groups []search.Group) {
	w := out(cmd)
	if len(groups) == 0 {
		fmt.Fprintln(w, "No matches.")
		return
	}
	for _, g := range groups {
		fmt.Fprintln(w, g.RootFolder.Title)
		for _, sg := range g.Subgroups {
			label := "(top level)"
			if sg.Folder != nil {
				label = sg.Folder.Title
			}
			fmt.Fprintf(w, "  %s\n", label)
			for _, e := range sg.Bookmarks {
				if e.IsFolder() {
					fmt.Fprintf(w, "    %s/  [%s]\n", e.Title, e.ID)
					continue
				}
				fmt.Fprintf(w, "    %s  %s  [%s]\n", e.Title, e.URL, e.ID)
			}
		}
	}
}

// openURL opens a URL in the default browser.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	}
	if cmd != nil {
		_ = cmd.Start()
	}
}
