package store

import (
	"context"
	"strings"
)

// joins from each level table up to the owning goal, so the sweep only ever
// touches the calling user's rows. Tasks carry two possible parent paths,
// hence the COALESCE.
const (
	fromStrategy = `FROM strategy s JOIN goal g ON s.goal_id = g.id`
	fromObjective = `FROM objective o
		JOIN strategy s ON o.strategy_id = s.id
		JOIN goal g ON s.goal_id = g.id`
	fromKeyResult = `FROM key_result k
		JOIN objective o ON k.objective_id = o.id
		JOIN strategy s ON o.strategy_id = s.id
		JOIN goal g ON s.goal_id = g.id`
	fromInitiative = `FROM initiative i
		JOIN key_result k ON i.key_result_id = k.id
		JOIN objective o ON k.objective_id = o.id
		JOIN strategy s ON o.strategy_id = s.id
		JOIN goal g ON s.goal_id = g.id`
	fromTask = `FROM task t
		LEFT JOIN key_result k ON t.key_result_id = k.id
		LEFT JOIN initiative i ON t.initiative_id = i.id
		LEFT JOIN key_result ik ON i.key_result_id = ik.id
		JOIN objective o ON o.id = COALESCE(k.objective_id, ik.objective_id)
		JOIN strategy s ON o.strategy_id = s.id
		JOIN goal g ON s.goal_id = g.id`
	fromWorkLog = `FROM work_log w
		JOIN task t ON w.task_id = t.id
		LEFT JOIN key_result k ON t.key_result_id = k.id
		LEFT JOIN initiative i ON t.initiative_id = i.id
		LEFT JOIN key_result ik ON i.key_result_id = ik.id
		JOIN objective o ON o.id = COALESCE(k.objective_id, ik.objective_id)
		JOIN strategy s ON o.strategy_id = s.id
		JOIN goal g ON s.goal_id = g.id`
	fromCheckIn = `FROM check_in c
		JOIN key_result k ON c.key_result_id = k.id
		JOIN objective o ON k.objective_id = o.id
		JOIN strategy s ON o.strategy_id = s.id
		JOIN goal g ON s.goal_id = g.id`
)

// Cleanup removes the user's rows whose external id is absent from the live
// set, deepest level first so parents outlive their children for the whole
// sweep. Shim strategies have no tree counterpart; one is live exactly when
// its goal is live. Check-ins likewise never appear in the live set; one is
// live exactly when its key result is. The returned map lists removed
// external ids per table so callers can push matching row deletions to the
// spreadsheet mirror.
func (d *DB) Cleanup(ctx context.Context, user string, live map[string]bool) (map[Table][]string, error) {
	isLive := func(ext string) bool {
		if strings.HasPrefix(ext, ShimStrategyPrefix) {
			return live[strings.TrimPrefix(ext, ShimStrategyPrefix)]
		}
		return live[ext]
	}

	// Decide everything before deleting anything: the scoping joins need
	// parent rows that a partial sweep would already have removed.
	sweeps := []struct {
		table Table
		query string
	}{
		{TableCheckIn, `SELECT c.external_id, k.external_id ` + fromCheckIn + ` WHERE g.user_id = ?`},
		{TableWorkLog, `SELECT w.external_id, w.external_id ` + fromWorkLog + ` WHERE g.user_id = ?`},
		{TableTask, `SELECT t.external_id, t.external_id ` + fromTask + ` WHERE g.user_id = ?`},
		{TableInitiative, `SELECT i.external_id, i.external_id ` + fromInitiative + ` WHERE g.user_id = ?`},
		{TableKeyResult, `SELECT k.external_id, k.external_id ` + fromKeyResult + ` WHERE g.user_id = ?`},
		{TableObjective, `SELECT o.external_id, o.external_id ` + fromObjective + ` WHERE g.user_id = ?`},
		{TableStrategy, `SELECT s.external_id, s.external_id ` + fromStrategy + ` WHERE g.user_id = ?`},
		{TableGoal, `SELECT external_id, external_id FROM goal WHERE user_id = ?`},
	}

	doomed := make(map[Table][]string, len(sweeps))
	for _, sw := range sweeps {
		rows, err := d.sql.QueryContext(ctx, sw.query, user)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			// liveKey is the id the live set actually tracks: the row's
			// own external id everywhere except check_in, which is keyed
			// off its key result.
			var ext, liveKey string
			if err := rows.Scan(&ext, &liveKey); err != nil {
				rows.Close()
				return nil, err
			}
			if !isLive(liveKey) {
				doomed[sw.table] = append(doomed[sw.table], ext)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}

	for _, sw := range sweeps {
		for _, ext := range doomed[sw.table] {
			if sw.table == TableInitiative {
				// Surviving tasks under a doomed initiative move up to
				// its key result; the cascade would otherwise take them.
				if _, err := d.sql.ExecContext(ctx, `
					UPDATE task
					SET key_result_id = (SELECT key_result_id FROM initiative WHERE external_id = ?),
						initiative_id = NULL
					WHERE initiative_id = (SELECT id FROM initiative WHERE external_id = ?)`,
					ext, ext); err != nil {
					return nil, err
				}
			}
			if _, err := d.sql.ExecContext(ctx,
				`DELETE FROM `+string(sw.table)+` WHERE external_id = ?`, ext); err != nil {
				return nil, err
			}
		}
	}
	return doomed, nil
}
