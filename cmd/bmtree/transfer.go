package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nikbrunner/bmtree/internal/exporter"
	"github.com/nikbrunner/bmtree/internal/importer"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.html>",
		Short: "Import bookmarks from a Netscape HTML export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			doc, err := importer.ParseHTML(file)
			if err != nil {
				return fmt.Errorf("parse HTML: %w", err)
			}

			if err := a.engine.Load(cmd.Context()); err != nil {
				return err
			}
			created, err := importer.Import(cmd.Context(), a.store, importer.Place(a.engine.Tree(), doc))
			if err != nil {
				return fmt.Errorf("import after %d nodes: %w", created, err)
			}

			fmt.Fprintf(out(cmd), "Imported %d bookmarks and folders\n", created)
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Export bookmarks to Netscape HTML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Determine output path
			var outputPath string
			if len(args) == 1 {
				outputPath = args[0]
			} else {
				var err error
				outputPath, err = exporter.DefaultExportPath()
				if err != nil {
					return fmt.Errorf("default export path: %w", err)
				}
			}

			if err := a.engine.Load(cmd.Context()); err != nil {
				return err
			}
			t := a.engine.Tree()

			if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(outputPath, []byte(exporter.ExportHTML(t)), 0644); err != nil {
				return err
			}

			fmt.Fprintf(out(cmd), "Exported %d nodes to %s\n", t.Len(), outputPath)
			return nil
		},
	}
}
