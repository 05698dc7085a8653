package cli

import (
	"okr-cli/internal/store"
	"okr-cli/internal/syncer"

	"github.com/spf13/cobra"
)

func newSyncCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the tree, the SQL mirror, and the spreadsheet",
	}
	cmd.AddCommand(newSyncPushCmd(app))
	cmd.AddCommand(newSyncRestoreCmd(app))
	cmd.AddCommand(newSyncCleanupCmd(app))
	return cmd
}

func newSyncPushCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Upsert the whole tree into SQL, then every SQL row into the spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			if err := e.db.SyncTree(ctx, e.session.Doc, e.session.User); err != nil {
				return writeErr(cmd, err)
			}
			pushed, err := e.engine.PushAll(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"rowsPushed": pushed},
			})
		},
	}
	return cmd
}

func newSyncRestoreCmd(app *App) *cobra.Command {
	var rebuildTree bool
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Import every worksheet into the SQL mirror (cold-start recovery)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			counts, err := e.engine.Restore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			imported := make(map[string]int, len(counts))
			for t, n := range counts {
				imported[store.SheetName(t)] = n
			}

			// A missing or empty tree file is rebuilt from the restored rows.
			rebuilt := false
			if rebuildTree || len(e.session.Doc.Nodes) == 0 {
				doc, err := e.db.BuildDocument(ctx, e.session.User)
				if err != nil {
					return writeErr(cmd, err)
				}
				e.session.Doc = doc
				if err := doc.Save(e.session.Path); err != nil {
					return writeErr(cmd, err)
				}
				rebuilt = true
			}

			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"imported":    imported,
					"treeRebuilt": rebuilt,
				},
			})
		},
	}
	cmd.Flags().BoolVar(&rebuildTree, "rebuild-tree", false, "Rebuild the local tree file from the restored rows")
	return cmd
}

func newSyncCleanupCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove rows that no longer exist in the tree (SQL, then spreadsheet)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			live := syncer.LiveSet(e.session.Doc)
			removed, err := e.engine.CleanupSweep(ctx, e.session.User, live)
			if err != nil {
				return writeErr(cmd, err)
			}
			out := make(map[string][]string, len(removed))
			for t, keys := range removed {
				if len(keys) > 0 {
					out[store.SheetName(t)] = keys
				}
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"removed": out}})
		},
	}
	return cmd
}
