package store

import (
	"context"
	"database/sql"

	"okr-cli/internal/model"
	"okr-cli/internal/tree"
)

// BuildDocument reconstructs the user's in-memory tree from the relational
// mirror. The six-level schema folds back onto four levels: shim strategies
// vanish (objectives attach straight to the goal) and tasks that hang off an
// initiative re-attach to the initiative's key result. This is the cold-start
// path when the local tree file is missing or lost.
func (d *DB) BuildDocument(ctx context.Context, user string) (*tree.Document, error) {
	doc := tree.NewDocument()

	attach := func(n *model.Node, parentExt string) {
		doc.Nodes[n.ID] = n
		if parentExt == "" {
			doc.RootIDs = append(doc.RootIDs, n.ID)
			return
		}
		if p, ok := doc.Nodes[parentExt]; ok {
			n.ParentID = &p.ID
			p.Children = append(p.Children, n.ID)
		}
	}

	rows, err := d.sql.QueryContext(ctx, `
		SELECT external_id, cycle_id, title, description, progress, created_at
		FROM goal WHERE user_id = ? ORDER BY id`, user)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		n := &model.Node{Type: model.NodeGoal, CreatedBy: user}
		var created string
		if err := rows.Scan(&n.ID, &n.CycleID, &n.Title, &n.Description, &n.Progress, &created); err != nil {
			rows.Close()
			return nil, err
		}
		n.CreatedAt, _ = parseTime(created)
		attach(n, "")
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = d.sql.QueryContext(ctx, `
		SELECT o.external_id, g.external_id, o.title, o.description, o.progress, o.created_at
		`+fromObjective+` WHERE g.user_id = ? ORDER BY o.id`, user)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		n := &model.Node{Type: model.NodeObjective, CreatedBy: user}
		var parent, created string
		if err := rows.Scan(&n.ID, &parent, &n.Title, &n.Description, &n.Progress, &created); err != nil {
			rows.Close()
			return nil, err
		}
		n.CreatedAt, _ = parseTime(created)
		attach(n, parent)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = d.sql.QueryContext(ctx, `
		SELECT k.external_id, o.external_id, k.title, k.description, k.progress,
			k.target_value, k.current_value, k.unit, k.created_at
		`+fromKeyResult+` WHERE g.user_id = ? ORDER BY k.id`, user)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		n := &model.Node{Type: model.NodeKeyResult, CreatedBy: user, KeyResult: &model.KeyResultMeta{}}
		var parent, created string
		if err := rows.Scan(&n.ID, &parent, &n.Title, &n.Description, &n.Progress,
			&n.KeyResult.TargetValue, &n.KeyResult.CurrentValue, &n.KeyResult.Unit, &created); err != nil {
			rows.Close()
			return nil, err
		}
		n.CreatedAt, _ = parseTime(created)
		attach(n, parent)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = d.sql.QueryContext(ctx, `
		SELECT t.external_id, COALESCE(k.external_id, ik.external_id), t.title, t.description,
			t.progress, t.status, t.estimated_minutes, t.total_time_spent, t.timer_started_at, t.created_at
		`+fromTask+` WHERE g.user_id = ? ORDER BY t.id`, user)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		n := &model.Node{Type: model.NodeTask, CreatedBy: user, Task: &model.TaskMeta{}}
		var parent, status, created string
		var timerAt sql.NullString
		if err := rows.Scan(&n.ID, &parent, &n.Title, &n.Description, &n.Progress,
			&status, &n.Task.EstimatedMinutes, &n.Task.TimeSpent, &timerAt, &created); err != nil {
			rows.Close()
			return nil, err
		}
		n.Task.Status = model.TaskStatus(status)
		if timerAt.Valid {
			if t, ok := parseTime(timerAt.String); ok {
				n.Task.TimerStartedAt = &t
			}
		}
		n.CreatedAt, _ = parseTime(created)
		attach(n, parent)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = d.sql.QueryContext(ctx, `
		SELECT w.external_id, t.external_id, w.start_time, w.end_time, w.duration_minutes, w.note
		`+fromWorkLog+` WHERE g.user_id = ? ORDER BY w.id`, user)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var e model.WorkLogEntry
		var taskExt, start string
		var end sql.NullString
		if err := rows.Scan(&e.ID, &taskExt, &start, &end, &e.DurationMinutes, &e.Summary); err != nil {
			rows.Close()
			return nil, err
		}
		e.StartedAt, _ = parseTime(start)
		if end.Valid {
			if t, ok := parseTime(end.String); ok {
				e.EndedAt = &t
			}
		}
		if n, ok := doc.Nodes[taskExt]; ok && n.Task != nil {
			n.Task.WorkLog = append(n.Task.WorkLog, e)
		}
	}
	return doc, rows.Close()
}
