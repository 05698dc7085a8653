package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RestoreOrder is the only import order that satisfies every foreign key:
// referenced tables strictly before referencing ones.
var RestoreOrder = []Table{
	TableUser, TableCycle, TableGoal, TableStrategy, TableObjective,
	TableKeyResult, TableInitiative, TableTask, TableCheckIn, TableWorkLog,
}

// SheetName maps a table to its worksheet title.
func SheetName(t Table) string {
	switch t {
	case TableUser:
		return "Users"
	case TableCycle:
		return "Cycles"
	case TableGoal:
		return "Goals"
	case TableStrategy:
		return "Strategies"
	case TableObjective:
		return "Objectives"
	case TableKeyResult:
		return "KeyResults"
	case TableInitiative:
		return "Initiatives"
	case TableTask:
		return "Tasks"
	case TableCheckIn:
		return "CheckIns"
	case TableWorkLog:
		return "WorkLogs"
	}
	return string(t)
}

// Headers returns the worksheet header row for a table. Column 1 is always
// the row's external key; reference columns carry parent external ids, never
// internal numeric ids.
func Headers(t Table) []string {
	switch t {
	case TableUser:
		return []string{"username", "display_name", "role", "created_at", "is_active"}
	case TableCycle:
		return []string{"cycle_id", "title", "start_date", "end_date", "is_active"}
	case TableGoal:
		return []string{"goal_id", "user", "cycle_id", "title", "description", "progress", "created_at"}
	case TableStrategy:
		return []string{"strategy_id", "goal_id", "title", "description", "progress", "created_at"}
	case TableObjective:
		return []string{"objective_id", "strategy_id", "title", "description", "progress", "created_at"}
	case TableKeyResult:
		return []string{"key_result_id", "objective_id", "title", "description", "progress",
			"target_value", "current_value", "unit", "created_at"}
	case TableInitiative:
		return []string{"initiative_id", "key_result_id", "title", "description", "progress", "created_at"}
	case TableTask:
		return []string{"task_id", "key_result_id", "initiative_id", "title", "description", "progress",
			"status", "estimated_minutes", "total_time_spent", "timer_started_at", "created_at"}
	case TableCheckIn:
		return []string{"check_in_id", "key_result_id", "value", "confidence_score", "comment", "created_at"}
	case TableWorkLog:
		return []string{"work_log_id", "task_id", "start_time", "end_time", "duration_minutes", "note"}
	}
	return nil
}

// ExportRow renders one row in the layout Headers describes, ready to push
// to the spreadsheet. Parent references come back as external ids via joins.
func (d *DB) ExportRow(ctx context.Context, t Table, key string) ([]string, error) {
	switch t {
	case TableUser:
		var username, display, role, created string
		var active int
		err := d.sql.QueryRowContext(ctx,
			`SELECT username, display_name, role, created_at, is_active FROM user WHERE username = ?`,
			key).Scan(&username, &display, &role, &created, &active)
		if err != nil {
			return nil, err
		}
		return []string{username, display, role, created, strconv.Itoa(active)}, nil
	case TableCycle:
		var ext, title, start, end string
		var active int
		err := d.sql.QueryRowContext(ctx,
			`SELECT external_id, title, start_date, end_date, is_active FROM cycle WHERE external_id = ?`,
			key).Scan(&ext, &title, &start, &end, &active)
		if err != nil {
			return nil, err
		}
		return []string{ext, title, start, end, strconv.Itoa(active)}, nil
	case TableGoal:
		var ext, user, cycle, title, desc, created string
		var progress int
		err := d.sql.QueryRowContext(ctx, `
			SELECT external_id, user_id, cycle_id, title, description, progress, created_at
			FROM goal WHERE external_id = ?`,
			key).Scan(&ext, &user, &cycle, &title, &desc, &progress, &created)
		if err != nil {
			return nil, err
		}
		return []string{ext, user, cycle, title, desc, strconv.Itoa(progress), created}, nil
	case TableStrategy:
		var ext, goal, title, desc, created string
		var progress int
		err := d.sql.QueryRowContext(ctx, `
			SELECT s.external_id, g.external_id, s.title, s.description, s.progress, s.created_at
			`+fromStrategy+` WHERE s.external_id = ?`,
			key).Scan(&ext, &goal, &title, &desc, &progress, &created)
		if err != nil {
			return nil, err
		}
		return []string{ext, goal, title, desc, strconv.Itoa(progress), created}, nil
	case TableObjective:
		var ext, strategy, title, desc, created string
		var progress int
		err := d.sql.QueryRowContext(ctx, `
			SELECT o.external_id, s.external_id, o.title, o.description, o.progress, o.created_at
			`+fromObjective+` WHERE o.external_id = ?`,
			key).Scan(&ext, &strategy, &title, &desc, &progress, &created)
		if err != nil {
			return nil, err
		}
		return []string{ext, strategy, title, desc, strconv.Itoa(progress), created}, nil
	case TableKeyResult:
		var ext, objective, title, desc, unit, created string
		var progress int
		var target, current float64
		err := d.sql.QueryRowContext(ctx, `
			SELECT k.external_id, o.external_id, k.title, k.description, k.progress,
				k.target_value, k.current_value, k.unit, k.created_at
			`+fromKeyResult+` WHERE k.external_id = ?`,
			key).Scan(&ext, &objective, &title, &desc, &progress, &target, &current, &unit, &created)
		if err != nil {
			return nil, err
		}
		return []string{ext, objective, title, desc, strconv.Itoa(progress),
			formatFloat(target), formatFloat(current), unit, created}, nil
	case TableInitiative:
		var ext, kr, title, desc, created string
		var progress int
		err := d.sql.QueryRowContext(ctx, `
			SELECT i.external_id, k.external_id, i.title, i.description, i.progress, i.created_at
			`+fromInitiative+` WHERE i.external_id = ?`,
			key).Scan(&ext, &kr, &title, &desc, &progress, &created)
		if err != nil {
			return nil, err
		}
		return []string{ext, kr, title, desc, strconv.Itoa(progress), created}, nil
	case TableTask:
		var ext, title, desc, status, created string
		var kr, initiative, timerAt sql.NullString
		var progress, estimated, spent int
		err := d.sql.QueryRowContext(ctx, `
			SELECT t.external_id, k.external_id, i.external_id, t.title, t.description, t.progress,
				t.status, t.estimated_minutes, t.total_time_spent, t.timer_started_at, t.created_at
			FROM task t
			LEFT JOIN key_result k ON t.key_result_id = k.id
			LEFT JOIN initiative i ON t.initiative_id = i.id
			WHERE t.external_id = ?`,
			key).Scan(&ext, &kr, &initiative, &title, &desc, &progress,
			&status, &estimated, &spent, &timerAt, &created)
		if err != nil {
			return nil, err
		}
		return []string{ext, kr.String, initiative.String, title, desc, strconv.Itoa(progress),
			status, strconv.Itoa(estimated), strconv.Itoa(spent), timerAt.String, created}, nil
	case TableCheckIn:
		var ext, kr, comment, created string
		var value float64
		var confidence int
		err := d.sql.QueryRowContext(ctx, `
			SELECT c.external_id, k.external_id, c.value, c.confidence_score, c.comment, c.created_at
			FROM check_in c JOIN key_result k ON c.key_result_id = k.id
			WHERE c.external_id = ?`,
			key).Scan(&ext, &kr, &value, &confidence, &comment, &created)
		if err != nil {
			return nil, err
		}
		return []string{ext, kr, formatFloat(value), strconv.Itoa(confidence), comment, created}, nil
	case TableWorkLog:
		var ext, task, start, note string
		var end sql.NullString
		var duration int
		err := d.sql.QueryRowContext(ctx, `
			SELECT w.external_id, t.external_id, w.start_time, w.end_time, w.duration_minutes, w.note
			FROM work_log w JOIN task t ON w.task_id = t.id
			WHERE w.external_id = ?`,
			key).Scan(&ext, &task, &start, &end, &duration, &note)
		if err != nil {
			return nil, err
		}
		return []string{ext, task, start, end.String, strconv.Itoa(duration), note}, nil
	}
	return nil, fmt.Errorf("no export for table %s", t)
}

// ImportRow inserts one spreadsheet row, resolving parent external ids to
// numeric keys and coercing dates to RFC3339. Rows whose key already exists
// are left untouched so repeated restores converge; the returned bool is
// true only when a row was actually inserted. A missing parent or an
// unparseable date cell is an error; the caller decides whether to skip the
// row or abort.
func (d *DB) ImportRow(ctx context.Context, t Table, row []string) (bool, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	key := cell(0)
	if key == "" {
		return false, errors.New("row has no key")
	}
	switch t {
	case TableUser:
		created, err := coerceTime(cell(3))
		if err != nil {
			return false, err
		}
		return inserted(d.sql.ExecContext(ctx, `
			INSERT OR IGNORE INTO user(username, display_name, role, created_at, is_active)
			VALUES(?, ?, ?, ?, ?)`,
			key, cell(1), defaultString(cell(2), "member"), created, coerceBool(cell(4))))
	case TableCycle:
		start, err := coerceTime(cell(2))
		if err != nil {
			return false, err
		}
		end, err := coerceTime(cell(3))
		if err != nil {
			return false, err
		}
		return inserted(d.sql.ExecContext(ctx, `
			INSERT OR IGNORE INTO cycle(external_id, title, start_date, end_date, is_active)
			VALUES(?, ?, ?, ?, ?)`,
			key, cell(1), start, end, coerceBool(cell(4))))
	case TableGoal:
		created, err := coerceTime(cell(6))
		if err != nil {
			return false, err
		}
		return inserted(d.sql.ExecContext(ctx, `
			INSERT OR IGNORE INTO goal(external_id, user_id, cycle_id, title, description, progress, created_at)
			VALUES(?, ?, ?, ?, ?, ?, ?)`,
			key, cell(1), cell(2), cell(3), cell(4), atoi(cell(5)), created))
	case TableStrategy:
		goalID, err := d.rowID(ctx, TableGoal, cell(1))
		if err != nil {
			return false, err
		}
		created, err := coerceTime(cell(5))
		if err != nil {
			return false, err
		}
		return inserted(d.sql.ExecContext(ctx, `
			INSERT OR IGNORE INTO strategy(external_id, goal_id, title, description, progress, created_at)
			VALUES(?, ?, ?, ?, ?, ?)`,
			key, goalID, cell(2), cell(3), atoi(cell(4)), created))
	case TableObjective:
		strategyID, err := d.rowID(ctx, TableStrategy, cell(1))
		if err != nil {
			return false, err
		}
		created, err := coerceTime(cell(5))
		if err != nil {
			return false, err
		}
		return inserted(d.sql.ExecContext(ctx, `
			INSERT OR IGNORE INTO objective(external_id, strategy_id, title, description, progress, created_at)
			VALUES(?, ?, ?, ?, ?, ?)`,
			key, strategyID, cell(2), cell(3), atoi(cell(4)), created))
	case TableKeyResult:
		objectiveID, err := d.rowID(ctx, TableObjective, cell(1))
		if err != nil {
			return false, err
		}
		created, err := coerceTime(cell(8))
		if err != nil {
			return false, err
		}
		return inserted(d.sql.ExecContext(ctx, `
			INSERT OR IGNORE INTO key_result(external_id, objective_id, title, description, progress,
				target_value, current_value, unit, created_at)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			key, objectiveID, cell(2), cell(3), atoi(cell(4)),
			atof(cell(5)), atof(cell(6)), defaultString(cell(7), "%"), created))
	case TableInitiative:
		krID, err := d.rowID(ctx, TableKeyResult, cell(1))
		if err != nil {
			return false, err
		}
		created, err := coerceTime(cell(5))
		if err != nil {
			return false, err
		}
		return inserted(d.sql.ExecContext(ctx, `
			INSERT OR IGNORE INTO initiative(external_id, key_result_id, title, description, progress, created_at)
			VALUES(?, ?, ?, ?, ?, ?)`,
			key, krID, cell(2), cell(3), atoi(cell(4)), created))
	case TableTask:
		var krID, initiativeID any
		switch {
		case cell(1) != "":
			id, err := d.rowID(ctx, TableKeyResult, cell(1))
			if err != nil {
				return false, err
			}
			krID = id
		case cell(2) != "":
			id, err := d.rowID(ctx, TableInitiative, cell(2))
			if err != nil {
				return false, err
			}
			initiativeID = id
		default:
			return false, fmt.Errorf("task %s references neither key result nor initiative", key)
		}
		var timerAt any
		if v, err := coerceTime(cell(9)); err != nil {
			return false, err
		} else if v != "" {
			timerAt = v
		}
		created, err := coerceTime(cell(10))
		if err != nil {
			return false, err
		}
		return inserted(d.sql.ExecContext(ctx, `
			INSERT OR IGNORE INTO task(external_id, key_result_id, initiative_id, title, description,
				progress, status, estimated_minutes, total_time_spent, timer_started_at, created_at)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			key, krID, initiativeID, cell(3), cell(4),
			atoi(cell(5)), defaultString(cell(6), "todo"), atoi(cell(7)), atoi(cell(8)),
			timerAt, created))
	case TableCheckIn:
		krID, err := d.rowID(ctx, TableKeyResult, cell(1))
		if err != nil {
			return false, err
		}
		created, err := coerceTime(cell(5))
		if err != nil {
			return false, err
		}
		return inserted(d.sql.ExecContext(ctx, `
			INSERT OR IGNORE INTO check_in(external_id, key_result_id, value, confidence_score, comment, created_at)
			VALUES(?, ?, ?, ?, ?, ?)`,
			key, krID, atof(cell(2)), atoi(cell(3)), cell(4), created))
	case TableWorkLog:
		taskID, err := d.rowID(ctx, TableTask, cell(1))
		if err != nil {
			return false, err
		}
		start, err := coerceTime(cell(2))
		if err != nil {
			return false, err
		}
		var end any
		if v, err := coerceTime(cell(3)); err != nil {
			return false, err
		} else if v != "" {
			end = v
		}
		return inserted(d.sql.ExecContext(ctx, `
			INSERT OR IGNORE INTO work_log(external_id, task_id, start_time, end_time, duration_minutes, note)
			VALUES(?, ?, ?, ?, ?, ?)`,
			key, taskID, start, end, atoi(cell(4)), cell(5)))
	}
	return false, fmt.Errorf("no import for table %s", t)
}

// inserted folds an INSERT OR IGNORE result into "did a row land".
func inserted(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// coerceTime normalizes whatever date shape a spreadsheet cell held to
// RFC3339. An empty cell stays empty; anything else that does not parse is
// an error, never stored raw.
func coerceTime(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	t, ok := parseTime(s)
	if !ok {
		return "", fmt.Errorf("unparseable date %q", s)
	}
	return formatTime(t), nil
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func coerceBool(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "1", "true", "yes":
		return 1
	}
	return 0
}
