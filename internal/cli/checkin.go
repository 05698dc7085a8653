package cli

import (
	"errors"
	"time"

	"okr-cli/internal/model"
	"okr-cli/internal/tree"

	"github.com/spf13/cobra"
)

func newCheckinCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Confidence check-ins on key results",
	}
	cmd.AddCommand(newCheckinAddCmd(app))
	cmd.AddCommand(newCheckinListCmd(app))
	return cmd
}

func newCheckinAddCmd(app *App) *cobra.Command {
	var value float64
	var confidence int
	var comment string

	cmd := &cobra.Command{
		Use:   "add <key-result-id>",
		Short: "Record a check-in and move the key result's current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			n, err := e.session.Get(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if n.Type != model.NodeKeyResult {
				return writeErr(cmd, errors.New("check-ins attach to key results only"))
			}
			if confidence < 1 || confidence > 10 {
				return writeErr(cmd, errors.New("--confidence must be 1..10"))
			}

			// The check-in is the provenance record; the key result's current
			// value moves through the normal update path so progress rolls up.
			if _, err := e.session.Update(ctx, n.ID, tree.Patch{CurrentValue: &value}); err != nil {
				return writeErr(cmd, err)
			}
			ci := model.CheckIn{
				ID:          model.NewID(),
				KeyResultID: n.ID,
				Value:       value,
				Confidence:  confidence,
				Comment:     comment,
				CreatedAt:   time.Now().UTC(),
			}
			if err := e.db.AddCheckIn(ctx, ci); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": ci})
		},
	}

	cmd.Flags().Float64Var(&value, "value", 0, "New current value of the key result")
	cmd.Flags().IntVar(&confidence, "confidence", 5, "Confidence score 1..10")
	cmd.Flags().StringVar(&comment, "comment", "", "Optional note")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func newCheckinListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <key-result-id>",
		Short: "List check-ins for a key result, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			checkins, err := e.db.ListCheckIns(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": checkins})
		},
	}
	return cmd
}
