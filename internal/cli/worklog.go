package cli

import (
	"errors"
	"sort"
	"time"

	"okr-cli/internal/tree"

	"github.com/spf13/cobra"
)

func newLogCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Work log entries on tasks",
	}
	cmd.AddCommand(newLogAddCmd(app))
	cmd.AddCommand(newLogRmCmd(app))
	cmd.AddCommand(newLogListCmd(app))
	return cmd
}

func parseWhen(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("unrecognized time; use RFC3339 or YYYY-MM-DD")
}

func newLogAddCmd(app *App) *cobra.Command {
	var minutes int
	var summary, at string

	cmd := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Record time manually, without a timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			if minutes <= 0 {
				return writeErr(cmd, errors.New("--minutes must be positive"))
			}
			when, err := parseWhen(at)
			if err != nil {
				return writeErr(cmd, err)
			}

			entry, err := e.session.AddManualLog(ctx, args[0], minutes, summary, when)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": entry})
		},
	}

	cmd.Flags().IntVar(&minutes, "minutes", 0, "Minutes worked")
	cmd.Flags().StringVar(&summary, "summary", "", "What was done")
	cmd.Flags().StringVar(&at, "at", "", "Start time (default: now)")
	_ = cmd.MarkFlagRequired("minutes")
	return cmd
}

func newLogRmCmd(app *App) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "rm <task-id>",
		Short: "Remove the work log entry with the given start time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			when, err := parseWhen(at)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.session.DeleteWorkLog(ctx, args[0], when); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"removedAt": when}})
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Start time of the entry to remove (RFC3339)")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newLogListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <task-id>",
		Short: "List work log entries for a task, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			n, err := e.session.Get(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if n.Task == nil {
				return writeErr(cmd, tree.ErrNotTask)
			}

			out := append(n.Task.WorkLog[:0:0], n.Task.WorkLog...)
			sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })

			return writeOut(cmd, app, map[string]any{
				"data": out,
				"meta": map[string]any{"total": len(out), "minutes": n.Task.TimeSpent},
			})
		},
	}
	return cmd
}
