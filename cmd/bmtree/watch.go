package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nikbrunner/bmtree/internal/store"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the snapshot in sync with store changes until interrupted",
		Long: `Load the tree and apply every change notification from the store until
interrupted. With the json backend, edits to the bookmarks file made by
other programs are picked up too. Run with --verbose to see each change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.engine.Load(ctx); err != nil {
				return err
			}
			a.log.WithField("nodes", a.engine.Tree().Len()).Info("watching for changes")

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return a.engine.Run(ctx) })
			if js, ok := a.store.(*store.JSONFile); ok {
				g.Go(func() error { return js.Watch(ctx) })
			}
			return g.Wait()
		},
	}
}
