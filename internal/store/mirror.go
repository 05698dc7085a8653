package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"okr-cli/internal/model"
)

// Table names the relational tables. Level tables mirror tree nodes; the
// rest are link/provenance tables.
type Table string

const (
	TableUser       Table = "user"
	TableCycle      Table = "cycle"
	TableGoal       Table = "goal"
	TableStrategy   Table = "strategy"
	TableObjective  Table = "objective"
	TableKeyResult  Table = "key_result"
	TableInitiative Table = "initiative"
	TableTask       Table = "task"
	TableCheckIn    Table = "check_in"
	TableWorkLog    Table = "work_log"
)

// levelTables is the probe order for FindByExternalID: top-down, matching
// how often each level is written.
var levelTables = []Table{
	TableGoal, TableStrategy, TableObjective, TableKeyResult, TableInitiative, TableTask,
}

// ErrNoRow reports an external id with no relational row in any level table.
var ErrNoRow = errors.New("no row for external id")

// ShimStrategyPrefix marks the auto strategy rows that bridge the 4-level
// tree onto the 6-level schema: each goal row owns exactly one shim strategy
// and objectives hang off it.
const ShimStrategyPrefix = "shim-strategy-"

const shimStrategyTitle = "[Auto] Strategy"

// nodeOps is the per-type create/update dispatch, built once at Open time
// so the generic mirror entry points never switch on type themselves.
type nodeOps struct {
	table  Table
	create func(ctx context.Context, n, parent *model.Node, user string) error
	update func(ctx context.Context, n, parent *model.Node) (int64, error)
}

func buildDispatch(d *DB) map[model.NodeType]nodeOps {
	return map[model.NodeType]nodeOps{
		model.NodeGoal:      {table: TableGoal, create: d.createGoal, update: d.updateGoal},
		model.NodeObjective: {table: TableObjective, create: d.createObjective, update: d.updateObjective},
		model.NodeKeyResult: {table: TableKeyResult, create: d.createKeyResult, update: d.updateKeyResult},
		model.NodeTask:      {table: TableTask, create: d.createTask, update: d.updateTask},
	}
}

// CreateNode inserts the relational counterpart of a tree node.
func (d *DB) CreateNode(ctx context.Context, n *model.Node, parent *model.Node, user string) error {
	ops, ok := d.ops[n.Type]
	if !ok {
		return fmt.Errorf("no relational mapping for node type %s", n.Type)
	}
	return ops.create(ctx, n, parent, user)
}

// UpdateNode applies the fixed field mapping for the node's type. A missing
// row (a create the mirror missed while unreachable) is recreated instead,
// which is what lets the cleanup/restore cycle converge.
func (d *DB) UpdateNode(ctx context.Context, n *model.Node, parent *model.Node) error {
	ops, ok := d.ops[n.Type]
	if !ok {
		return fmt.Errorf("no relational mapping for node type %s", n.Type)
	}
	affected, err := ops.update(ctx, n, parent)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ops.create(ctx, n, parent, n.CreatedBy)
	}
	return nil
}

// DeleteNode removes the row addressed by external id, whatever its level.
// Deleting a goal also removes its shim strategy; FK cascades take care of
// dependent rows either way.
func (d *DB) DeleteNode(ctx context.Context, externalID string) error {
	table, _, err := d.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, ErrNoRow) {
			return nil
		}
		return err
	}
	if table == TableGoal {
		if _, err := d.sql.ExecContext(ctx,
			`DELETE FROM strategy WHERE external_id = ?`, ShimStrategyPrefix+externalID); err != nil {
			return err
		}
	}
	_, err = d.sql.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE external_id = ?`, table), externalID)
	return err
}

// DependentLogKeys lists the work-log and check-in external ids that the FK
// cascades would silently take along when the row addressed by externalID is
// deleted. Callers push matching spreadsheet row deletions before removing
// the node itself.
func (d *DB) DependentLogKeys(ctx context.Context, table Table, externalID string) (map[Table][]string, error) {
	var queries map[Table]string
	switch table {
	case TableGoal:
		queries = map[Table]string{
			TableWorkLog: `SELECT w.external_id ` + fromWorkLog + ` WHERE g.external_id = ?`,
			TableCheckIn: `SELECT c.external_id ` + fromCheckIn + ` WHERE g.external_id = ?`,
		}
	case TableStrategy:
		queries = map[Table]string{
			TableWorkLog: `SELECT w.external_id ` + fromWorkLog + ` WHERE s.external_id = ?`,
			TableCheckIn: `SELECT c.external_id ` + fromCheckIn + ` WHERE s.external_id = ?`,
		}
	case TableObjective:
		queries = map[Table]string{
			TableWorkLog: `SELECT w.external_id ` + fromWorkLog + ` WHERE o.external_id = ?`,
			TableCheckIn: `SELECT c.external_id ` + fromCheckIn + ` WHERE o.external_id = ?`,
		}
	case TableKeyResult:
		queries = map[Table]string{
			TableWorkLog: `SELECT w.external_id ` + fromWorkLog + ` WHERE COALESCE(k.external_id, ik.external_id) = ?`,
			TableCheckIn: `SELECT c.external_id ` + fromCheckIn + ` WHERE k.external_id = ?`,
		}
	case TableInitiative:
		queries = map[Table]string{
			TableWorkLog: `SELECT w.external_id ` + fromWorkLog + ` WHERE i.external_id = ?`,
		}
	case TableTask:
		queries = map[Table]string{
			TableWorkLog: `SELECT w.external_id ` + fromWorkLog + ` WHERE t.external_id = ?`,
		}
	default:
		return nil, nil
	}

	keys := make(map[Table][]string, len(queries))
	for t, q := range queries {
		rows, err := d.sql.QueryContext(ctx, q, externalID)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var ext string
			if err := rows.Scan(&ext); err != nil {
				rows.Close()
				return nil, err
			}
			keys[t] = append(keys[t], ext)
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// FindByExternalID locates a row without knowing its table in advance: a
// linear probe across the level tables, fine at this data scale. It returns
// the concrete table so dispatchers can pick the type-specific path.
func (d *DB) FindByExternalID(ctx context.Context, externalID string) (Table, int64, error) {
	for _, t := range levelTables {
		var id int64
		err := d.sql.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT id FROM %s WHERE external_id = ?`, t), externalID).Scan(&id)
		switch {
		case err == nil:
			return t, id, nil
		case errors.Is(err, sql.ErrNoRows):
			continue
		default:
			return "", 0, err
		}
	}
	return "", 0, fmt.Errorf("%w: %s", ErrNoRow, externalID)
}

func (d *DB) rowID(ctx context.Context, table Table, externalID string) (int64, error) {
	var id int64
	err := d.sql.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE external_id = ?`, table), externalID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s (%s)", ErrNoRow, externalID, table)
	}
	return id, err
}

func (d *DB) createGoal(ctx context.Context, n, _ *model.Node, user string) error {
	res, err := d.sql.ExecContext(ctx, `
		INSERT INTO goal(external_id, user_id, cycle_id, title, description, progress, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		n.ID, user, n.CycleID, n.Title, n.Description, n.Progress, formatTime(n.CreatedAt))
	if err != nil {
		return err
	}
	goalID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	_, err = d.ensureShimStrategy(ctx, goalID, n.ID, formatTime(n.CreatedAt))
	return err
}

// ensureShimStrategy inserts (or finds) the single auto strategy row that
// sits between a goal and its objectives.
func (d *DB) ensureShimStrategy(ctx context.Context, goalID int64, goalExternalID, createdAt string) (int64, error) {
	ext := ShimStrategyPrefix + goalExternalID
	if id, err := d.rowID(ctx, TableStrategy, ext); err == nil {
		return id, nil
	} else if !errors.Is(err, ErrNoRow) {
		return 0, err
	}
	res, err := d.sql.ExecContext(ctx, `
		INSERT INTO strategy(external_id, goal_id, title, created_at)
		VALUES(?, ?, ?, ?)`,
		ext, goalID, shimStrategyTitle, createdAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *DB) createObjective(ctx context.Context, n, parent *model.Node, _ string) error {
	if parent == nil {
		return fmt.Errorf("objective %s has no parent goal", n.ID)
	}
	goalID, err := d.rowID(ctx, TableGoal, parent.ID)
	if err != nil {
		return err
	}
	strategyID, err := d.ensureShimStrategy(ctx, goalID, parent.ID, formatTime(parent.CreatedAt))
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, `
		INSERT INTO objective(external_id, strategy_id, title, description, progress, created_at)
		VALUES(?, ?, ?, ?, ?, ?)`,
		n.ID, strategyID, n.Title, n.Description, n.Progress, formatTime(n.CreatedAt))
	return err
}

func (d *DB) createKeyResult(ctx context.Context, n, parent *model.Node, _ string) error {
	if parent == nil {
		return fmt.Errorf("key result %s has no parent objective", n.ID)
	}
	objectiveID, err := d.rowID(ctx, TableObjective, parent.ID)
	if err != nil {
		return err
	}
	kr := n.KeyResult
	if kr == nil {
		kr = &model.KeyResultMeta{TargetValue: 100, Unit: "%"}
	}
	_, err = d.sql.ExecContext(ctx, `
		INSERT INTO key_result(external_id, objective_id, title, description, progress,
			target_value, current_value, unit, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, objectiveID, n.Title, n.Description, n.Progress,
		kr.TargetValue, kr.CurrentValue, kr.Unit, formatTime(n.CreatedAt))
	return err
}

func (d *DB) createTask(ctx context.Context, n, parent *model.Node, _ string) error {
	if parent == nil {
		return fmt.Errorf("task %s has no parent", n.ID)
	}

	// Exactly one of key_result_id / initiative_id is populated, the other
	// explicitly nulled, decided by the parent's type at write time.
	var krID, initiativeID any
	switch parent.Type {
	case model.NodeKeyResult:
		id, err := d.rowID(ctx, TableKeyResult, parent.ID)
		if err != nil {
			return err
		}
		krID = id
	default:
		id, err := d.rowID(ctx, TableInitiative, parent.ID)
		if err != nil {
			return err
		}
		initiativeID = id
	}

	task := n.Task
	if task == nil {
		task = &model.TaskMeta{Status: model.StatusTodo}
	}
	var timerAt any
	if task.TimerStartedAt != nil {
		timerAt = formatTime(*task.TimerStartedAt)
	}
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO task(external_id, key_result_id, initiative_id, title, description, progress,
			status, estimated_minutes, total_time_spent, timer_started_at, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, krID, initiativeID, n.Title, n.Description, n.Progress,
		string(task.Status), task.EstimatedMinutes, task.TimeSpent, timerAt, formatTime(n.CreatedAt))
	return err
}

func (d *DB) updateGoal(ctx context.Context, n, _ *model.Node) (int64, error) {
	res, err := d.sql.ExecContext(ctx, `
		UPDATE goal SET cycle_id = ?, title = ?, description = ?, progress = ?, updated_at = ?
		WHERE external_id = ?`,
		n.CycleID, n.Title, n.Description, n.Progress, nowRFC3339(), n.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) updateObjective(ctx context.Context, n, _ *model.Node) (int64, error) {
	res, err := d.sql.ExecContext(ctx, `
		UPDATE objective SET title = ?, description = ?, progress = ?, updated_at = ?
		WHERE external_id = ?`,
		n.Title, n.Description, n.Progress, nowRFC3339(), n.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) updateKeyResult(ctx context.Context, n, _ *model.Node) (int64, error) {
	kr := n.KeyResult
	if kr == nil {
		kr = &model.KeyResultMeta{TargetValue: 100, Unit: "%"}
	}
	res, err := d.sql.ExecContext(ctx, `
		UPDATE key_result SET title = ?, description = ?, progress = ?,
			target_value = ?, current_value = ?, unit = ?, updated_at = ?
		WHERE external_id = ?`,
		n.Title, n.Description, n.Progress,
		kr.TargetValue, kr.CurrentValue, kr.Unit, nowRFC3339(), n.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) updateTask(ctx context.Context, n, _ *model.Node) (int64, error) {
	task := n.Task
	if task == nil {
		task = &model.TaskMeta{Status: model.StatusTodo}
	}
	var timerAt any
	if task.TimerStartedAt != nil {
		timerAt = formatTime(*task.TimerStartedAt)
	}
	res, err := d.sql.ExecContext(ctx, `
		UPDATE task SET title = ?, description = ?, progress = ?,
			status = ?, estimated_minutes = ?, total_time_spent = ?, timer_started_at = ?, updated_at = ?
		WHERE external_id = ?`,
		n.Title, n.Description, n.Progress,
		string(task.Status), task.EstimatedMinutes, task.TimeSpent, timerAt, nowRFC3339(), n.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SaveWorkLog inserts a work-log row for a task, keyed by the entry id.
// Re-saving an already-mirrored entry is a no-op, which keeps tree→SQL
// syncs idempotent.
func (d *DB) SaveWorkLog(ctx context.Context, taskExternalID string, e model.WorkLogEntry) error {
	taskID, err := d.rowID(ctx, TableTask, taskExternalID)
	if err != nil {
		return err
	}
	var end any
	if e.EndedAt != nil {
		end = formatTime(*e.EndedAt)
	}
	_, err = d.sql.ExecContext(ctx, `
		INSERT OR IGNORE INTO work_log(external_id, task_id, start_time, end_time, duration_minutes, note)
		VALUES(?, ?, ?, ?, ?, ?)`,
		e.ID, taskID, formatTime(e.StartedAt), end, e.DurationMinutes, e.Summary)
	return err
}

func (d *DB) DeleteWorkLog(ctx context.Context, taskExternalID, entryID string) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM work_log WHERE external_id = ?`, entryID)
	return err
}
