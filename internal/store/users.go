package store

import (
	"context"
	"time"

	"okr-cli/internal/model"
)

// EnsureUser inserts the user row if it does not exist yet. Called on every
// CLI invocation so the acting user always has a row for goals to hang off.
func (d *DB) EnsureUser(ctx context.Context, username string) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT OR IGNORE INTO user(username, display_name, role, created_at)
		VALUES(?, ?, 'member', ?)`,
		username, username, nowRFC3339())
	return err
}

func (d *DB) CreateUser(ctx context.Context, u model.User) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO user(username, display_name, role, created_at, is_active)
		VALUES(?, ?, ?, ?, ?)`,
		u.Username, u.DisplayName, string(u.Role), formatTime(u.CreatedAt), boolToInt(u.IsActive))
	return err
}

func (d *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT username, display_name, role, created_at, is_active FROM user ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		var role, created string
		var active int
		if err := rows.Scan(&u.Username, &u.DisplayName, &role, &created, &active); err != nil {
			return nil, err
		}
		u.Role = model.UserRole(role)
		u.CreatedAt, _ = parseTime(created)
		u.IsActive = active != 0
		out = append(out, u)
	}
	return out, rows.Err()
}

func (d *DB) CreateCycle(ctx context.Context, c model.Cycle) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO cycle(external_id, title, start_date, end_date, is_active)
		VALUES(?, ?, ?, ?, ?)`,
		c.ID, c.Title, formatTime(c.StartDate), formatTime(c.EndDate), boolToInt(c.IsActive))
	return err
}

func (d *DB) ListCycles(ctx context.Context) ([]model.Cycle, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT external_id, title, start_date, end_date, is_active FROM cycle ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Cycle
	for rows.Next() {
		var c model.Cycle
		var start, end string
		var active int
		if err := rows.Scan(&c.ID, &c.Title, &start, &end, &active); err != nil {
			return nil, err
		}
		c.StartDate, _ = parseTime(start)
		c.EndDate, _ = parseTime(end)
		c.IsActive = active != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// ActiveCycle returns the most recently started active cycle, or nil when
// no cycle is recorded yet.
func (d *DB) ActiveCycle(ctx context.Context) (*model.Cycle, error) {
	cycles, err := d.ListCycles(ctx)
	if err != nil {
		return nil, err
	}
	var pick *model.Cycle
	for i := range cycles {
		if cycles[i].IsActive {
			pick = &cycles[i]
		}
	}
	return pick, nil
}

func (d *DB) AddCheckIn(ctx context.Context, ci model.CheckIn) error {
	krID, err := d.rowID(ctx, TableKeyResult, ci.KeyResultID)
	if err != nil {
		return err
	}
	created := ci.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = d.sql.ExecContext(ctx, `
		INSERT INTO check_in(external_id, key_result_id, value, confidence_score, comment, created_at)
		VALUES(?, ?, ?, ?, ?, ?)`,
		ci.ID, krID, ci.Value, ci.Confidence, ci.Comment, formatTime(created))
	return err
}

func (d *DB) ListCheckIns(ctx context.Context, keyResultExternalID string) ([]model.CheckIn, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT c.external_id, c.value, c.confidence_score, c.comment, c.created_at
		FROM check_in c JOIN key_result k ON c.key_result_id = k.id
		WHERE k.external_id = ? ORDER BY c.created_at`,
		keyResultExternalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CheckIn
	for rows.Next() {
		var ci model.CheckIn
		var created string
		if err := rows.Scan(&ci.ID, &ci.Value, &ci.Confidence, &ci.Comment, &created); err != nil {
			return nil, err
		}
		ci.KeyResultID = keyResultExternalID
		ci.CreatedAt, _ = parseTime(created)
		out = append(out, ci)
	}
	return out, rows.Err()
}

// Keys lists every external key in a table, in insertion order. The push
// side of a full sync iterates these.
func (d *DB) Keys(ctx context.Context, t Table) ([]string, error) {
	col := "external_id"
	if t == TableUser {
		col = "username"
	}
	rows, err := d.sql.QueryContext(ctx,
		`SELECT `+col+` FROM `+string(t)+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
