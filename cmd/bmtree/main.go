package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nikbrunner/bmtree/internal/config"
	"github.com/nikbrunner/bmtree/internal/engine"
	"github.com/nikbrunner/bmtree/internal/store"
)

// backend is a store that also accepts imports.
type backend interface {
	store.Store
	store.Writer
}

// app is the state shared by all subcommands, built once before any of
// them runs.
type app struct {
	cfg    config.Config
	log    *logrus.Logger
	store  backend
	engine *engine.Engine
	close  func() error
}

func main() {
	var (
		a          app
		configPath string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:   "bmtree",
		Short: "Search, group and reorganize a bookmark tree",
		Long: `bmtree keeps an in-memory snapshot of a bookmark tree and works on it:
full-text search grouped by sidebar folder, and moves that stay in sync
with the backing store.

Data Storage:
  ~/.config/bmtree/bookmarks.db    (backend: sqlite)
  ~/.config/bmtree/bookmarks.json  (backend: json)
  ~/.config/bmtree/config.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// This runs once before any subcommand
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger := logrus.New()
			logger.SetOutput(os.Stderr)
			logger.SetLevel(cfg.Level())
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}

			st, closeStore, err := openStore(cfg, logger)
			if err != nil {
				return fmt.Errorf("open %s store: %w", cfg.Backend, err)
			}

			a = app{
				cfg:    cfg,
				log:    logger,
				store:  st,
				engine: engine.New(st, cfg, engine.WithLogger(logger)),
				close:  closeStore,
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.close != nil {
				return a.close()
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/bmtree/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(newSearchCmd(&a))
	rootCmd.AddCommand(newFoldersCmd(&a))
	rootCmd.AddCommand(newMoveCmd(&a))
	rootCmd.AddCommand(newTreeCmd(&a))
	rootCmd.AddCommand(newImportCmd(&a))
	rootCmd.AddCommand(newExportCmd(&a))
	rootCmd.AddCommand(newWatchCmd(&a))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore opens the configured backend.
func openStore(cfg config.Config, log logrus.FieldLogger) (backend, func() error, error) {
	switch cfg.Backend {
	case config.BackendJSON:
		s, err := store.OpenJSONFile(cfg.JSONPath, store.WithJSONLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	default:
		s, err := store.NewSQLite(cfg.DatabasePath, store.WithSQLiteLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

// out is where command results are printed.
func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
