package cli

import (
	"strings"

	"okr-cli/internal/format"
	"okr-cli/internal/model"
	"okr-cli/internal/tree"

	"github.com/spf13/cobra"
)

func newAddCmd(app *App) *cobra.Command {
	var parentID, typ, title, description string
	var assignees []string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a node (GOAL at the root, or the parent's child type below it)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			nodeType := model.NodeType(strings.ToUpper(strings.TrimSpace(typ)))
			if typ == "" && parentID != "" {
				// Infer from the parent: each level has exactly one child type.
				parent, err := e.session.Get(parentID)
				if err != nil {
					return writeErr(cmd, err)
				}
				nodeType = model.ChildType[parent.Type]
			}
			if typ == "" && parentID == "" {
				nodeType = model.NodeGoal
			}

			n, err := e.session.Add(ctx, tree.AddRequest{
				ParentID:    parentID,
				Type:        nodeType,
				Title:       title,
				Description: description,
				Assignees:   assignees,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": n})
		},
	}

	cmd.Flags().StringVar(&parentID, "parent", "", "Parent node id (empty creates a root goal)")
	cmd.Flags().StringVar(&typ, "type", "", "Node type: GOAL|OBJECTIVE|KEY_RESULT|TASK (default: inferred from parent)")
	cmd.Flags().StringVar(&title, "title", "", "Title (default: auto-numbered)")
	cmd.Flags().StringVar(&description, "desc", "", "Description")
	cmd.Flags().StringSliceVar(&assignees, "assignee", nil, "Assignee username (repeatable)")
	return cmd
}

func newUpdateCmd(app *App) *cobra.Command {
	var title, description, status, unit string
	var progress, estimate int
	var target, current float64
	var assignees []string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update node fields (leaf progress, task status, key result values)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			var p tree.Patch
			if cmd.Flags().Changed("title") {
				p.Title = &title
			}
			if cmd.Flags().Changed("desc") {
				p.Description = &description
			}
			if cmd.Flags().Changed("assignee") {
				p.Assignees = &assignees
			}
			if cmd.Flags().Changed("progress") {
				p.Progress = &progress
			}
			if cmd.Flags().Changed("status") {
				st := model.TaskStatus(status)
				p.Status = &st
			}
			if cmd.Flags().Changed("estimate") {
				p.EstimatedMinutes = &estimate
			}
			if cmd.Flags().Changed("target") {
				p.TargetValue = &target
			}
			if cmd.Flags().Changed("current") {
				p.CurrentValue = &current
			}
			if cmd.Flags().Changed("unit") {
				p.Unit = &unit
			}

			n, err := e.session.Update(ctx, args[0], p)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": n})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "desc", "", "New description")
	cmd.Flags().StringSliceVar(&assignees, "assignee", nil, "Replace assignees (repeatable)")
	cmd.Flags().IntVar(&progress, "progress", 0, "Progress percent (leaf nodes only)")
	cmd.Flags().StringVar(&status, "status", "", "Task status: todo|in_progress|done|blocked")
	cmd.Flags().IntVar(&estimate, "estimate", 0, "Task estimate in minutes")
	cmd.Flags().Float64Var(&target, "target", 0, "Key result target value")
	cmd.Flags().Float64Var(&current, "current", 0, "Key result current value")
	cmd.Flags().StringVar(&unit, "unit", "", "Key result unit")
	return cmd
}

func newDeleteCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a node and its whole subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			if err := e.session.Delete(ctx, args[0]); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"deleted": args[0]}})
		},
	}
	return cmd
}

func newShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one node with its aggregate time",
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
			total, _ := e.session.TotalTime(args[0])
			return writeOut(cmd, app, map[string]any{
				"data": n,
				"meta": map[string]any{"totalTimeMinutes": total},
			})
		},
	}
	return cmd
}

func newTreeCmd(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tree [id]",
		Short: "Print the goal tree as an outline (or one subtree)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			rootID := ""
			if len(args) == 1 {
				rootID = args[0]
				if _, err := e.session.Get(rootID); err != nil {
					return writeErr(cmd, err)
				}
			}
			if asJSON {
				return writeOut(cmd, app, map[string]any{"data": e.session.Doc})
			}
			if err := format.WriteTree(cmd.OutOrStdout(), e.session.Doc, rootID); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the raw document as JSON")
	return cmd
}

func newTimeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "time <id>",
		Short: "Total minutes logged in the node's subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.close()

			total, err := e.session.TotalTime(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"id":      args[0],
					"minutes": total,
					"display": format.Minutes(total),
				},
			})
		},
	}
	return cmd
}
