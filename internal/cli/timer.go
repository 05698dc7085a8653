package cli

import (
	"github.com/spf13/cobra"
)

func newTimerCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Start and stop the single active task timer",
	}
	cmd.AddCommand(newTimerStartCmd(app))
	cmd.AddCommand(newTimerStopCmd(app))
	cmd.AddCommand(newTimerStatusCmd(app))
	return cmd
}

func newTimerStartCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <task-id>",
		Short: "Start the timer on a task (stops any other running timer first)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			n, err := e.session.StartTimer(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": n})
		},
	}
	return cmd
}

func newTimerStopCmd(app *App) *cobra.Command {
	var summary string
	cmd := &cobra.Command{
		Use:   "stop <task-id>",
		Short: "Stop the timer and record a work log entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			entry, err := e.session.StopTimer(ctx, args[0], summary)
			if err != nil {
				return writeErr(cmd, err)
			}
			if entry == nil {
				return writeOut(cmd, app, map[string]any{
					"data": nil,
					"meta": map[string]any{"_hint": "no timer was running"},
				})
			}
			return writeOut(cmd, app, map[string]any{"data": entry})
		},
	}
	cmd.Flags().StringVar(&summary, "summary", "", "What was done during this interval")
	return cmd
}

func newTimerStatusCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the task with a running timer, if any",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			return writeOut(cmd, app, map[string]any{"data": e.session.ActiveTimer()})
		},
	}
	return cmd
}
