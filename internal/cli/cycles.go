package cli

import (
	"errors"

	"okr-cli/internal/model"

	"github.com/spf13/cobra"
)

func newCyclesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "Planning cycles (quarters)",
	}
	cmd.AddCommand(newCyclesListCmd(app))
	cmd.AddCommand(newCyclesAddCmd(app))
	return cmd
}

func newCyclesListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cycles, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			cycles, err := e.db.ListCycles(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": cycles})
		},
	}
	return cmd
}

func newCyclesAddCmd(app *App) *cobra.Command {
	var title, start, end string
	var active bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a planning cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			if title == "" {
				return writeErr(cmd, errors.New("missing --title"))
			}
			startAt, err := parseWhen(start)
			if err != nil {
				return writeErr(cmd, err)
			}
			endAt, err := parseWhen(end)
			if err != nil {
				return writeErr(cmd, err)
			}

			c := model.Cycle{
				ID:        model.NewID(),
				Title:     title,
				StartDate: startAt,
				EndDate:   endAt,
				IsActive:  active,
			}
			if err := e.db.CreateCycle(ctx, c); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": c})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Cycle title, e.g. 2026-Q3")
	cmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "End date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&active, "active", true, "Mark the cycle active")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}
