package store

import (
	"context"
	"database/sql"
	"time"

	"okr-cli/internal/model"

	_ "modernc.org/sqlite"
)

// DB is the relational mirror: one table per hierarchy level plus users,
// cycles, check-ins and work logs. It is the authoritative store for reads;
// every row carries the external id as a unique secondary key, distinct from
// the internal numeric key, so cross-store joins never touch numeric ids.
type DB struct {
	sql *sql.DB
	ops map[model.NodeType]nodeOps
}

// Open opens (and migrates) the mirror database at path.
func Open(ctx context.Context, path string) (*DB, error) {
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL enables one writer + many readers; busy_timeout avoids
	// "database is locked" flakiness when CLI invocations overlap.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	d := &DB{sql: db}
	d.ops = buildDispatch(d)
	return d, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user (
			id INTEGER PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'member',
			created_at TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS cycle (
			id INTEGER PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS goal (
			id INTEGER PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			cycle_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			progress INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_goal_user ON goal(user_id);`,
		`CREATE TABLE IF NOT EXISTS strategy (
			id INTEGER PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			goal_id INTEGER NOT NULL REFERENCES goal(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			progress INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_strategy_goal ON strategy(goal_id);`,
		`CREATE TABLE IF NOT EXISTS objective (
			id INTEGER PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			strategy_id INTEGER NOT NULL REFERENCES strategy(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			progress INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_objective_strategy ON objective(strategy_id);`,
		`CREATE TABLE IF NOT EXISTS key_result (
			id INTEGER PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			objective_id INTEGER NOT NULL REFERENCES objective(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			progress INTEGER NOT NULL DEFAULT 0,
			target_value REAL NOT NULL DEFAULT 100,
			current_value REAL NOT NULL DEFAULT 0,
			unit TEXT NOT NULL DEFAULT '%',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_key_result_objective ON key_result(objective_id);`,
		`CREATE TABLE IF NOT EXISTS initiative (
			id INTEGER PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			key_result_id INTEGER NOT NULL REFERENCES key_result(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			progress INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_initiative_kr ON initiative(key_result_id);`,
		`CREATE TABLE IF NOT EXISTS task (
			id INTEGER PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			key_result_id INTEGER REFERENCES key_result(id) ON DELETE CASCADE,
			initiative_id INTEGER REFERENCES initiative(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			progress INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'todo',
			estimated_minutes INTEGER NOT NULL DEFAULT 0,
			total_time_spent INTEGER NOT NULL DEFAULT 0,
			timer_started_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_task_kr ON task(key_result_id);`,
		`CREATE INDEX IF NOT EXISTS idx_task_initiative ON task(initiative_id);`,
		`CREATE TABLE IF NOT EXISTS work_log (
			id INTEGER PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			task_id INTEGER NOT NULL REFERENCES task(id) ON DELETE CASCADE,
			start_time TEXT NOT NULL,
			end_time TEXT,
			duration_minutes INTEGER NOT NULL DEFAULT 0,
			note TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_work_log_task ON work_log(task_id);`,
		`CREATE TABLE IF NOT EXISTS check_in (
			id INTEGER PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			key_result_id INTEGER NOT NULL REFERENCES key_result(id) ON DELETE CASCADE,
			value REAL NOT NULL DEFAULT 0,
			confidence_score INTEGER NOT NULL DEFAULT 5,
			comment TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_check_in_kr ON check_in(key_result_id);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseTime accepts the ISO-8601-ish layouts that show up in spreadsheet
// cells and in our own RFC3339 output.
func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
