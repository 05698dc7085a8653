package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"okr-cli/internal/model"
)

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v.UTC()
}

func TestImportRowResolvesParentsAndCoercesDates(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	rows := map[Table][]string{
		TableUser:      {"alice", "Alice", "admin", "2026-08-01", "1"},
		TableCycle:     {"c1", "2026-Q3", "2026-07-01", "2026-09-30", "true"},
		TableGoal:      {"g1", "alice", "c1", "Ship v2", "", "0", "2026-08-01 09:00:00"},
		TableStrategy:  {ShimStrategyPrefix + "g1", "g1", "[Auto] Strategy", "", "0", "2026-08-01T09:00:00"},
		TableObjective: {"o1", ShimStrategyPrefix + "g1", "Stabilize", "", "0", "2026-08-01T09:00:00Z"},
		TableKeyResult: {"k1", "o1", "Crash-free", "", "40", "100", "40", "%", "2026-08-01T09:00:00Z"},
	}
	for _, table := range RestoreOrder[:6] {
		added, err := d.ImportRow(ctx, table, rows[table])
		if err != nil {
			t.Fatalf("import %s: %v", table, err)
		}
		if !added {
			t.Fatalf("import %s reported no insert", table)
		}
	}

	// Re-import converges instead of duplicating, and says so.
	added, err := d.ImportRow(ctx, TableGoal, rows[TableGoal])
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if added {
		t.Fatalf("re-import reported an insert for an existing row")
	}
	if got := rowCount(t, d, TableGoal); got != 1 {
		t.Fatalf("goal rows = %d; want 1", got)
	}

	// Parent references resolve to numeric keys.
	var strategyID int64
	if err := d.sql.QueryRow(
		"SELECT strategy_id FROM objective WHERE external_id = 'o1'").Scan(&strategyID); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if strategyID == 0 {
		t.Fatalf("objective did not resolve its parent strategy")
	}

	// The imported date was normalized to RFC3339.
	var created string
	if err := d.sql.QueryRow(
		"SELECT created_at FROM goal WHERE external_id = 'g1'").Scan(&created); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if created != "2026-08-01T09:00:00Z" {
		t.Fatalf("created_at = %q; want normalized RFC3339", created)
	}

	// A row referencing a missing parent fails without poisoning anything.
	if _, err := d.ImportRow(ctx, TableObjective,
		[]string{"o-bad", "no-such-strategy", "x", "", "0", ""}); err == nil {
		t.Fatalf("expected error for missing parent")
	}

	// So does a date cell that parses as nothing; silently storing the raw
	// string would corrupt the column for every later read.
	if _, err := d.ImportRow(ctx, TableGoal,
		[]string{"g-bad", "alice", "c1", "Bad date", "", "0", "not-a-date"}); err == nil {
		t.Fatalf("expected error for unparseable date")
	}
	if got := rowCount(t, d, TableGoal); got != 1 {
		t.Fatalf("goal rows = %d after rejected import; want 1", got)
	}
}

func TestTaskImportRequiresExactlyOneParent(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	chain(t, d, "alice")

	if _, err := d.ImportRow(ctx, TableTask,
		[]string{"t2", "k1", "", "Sheet task", "", "10", "todo", "0", "0", "", "2026-08-01"}); err != nil {
		t.Fatalf("import under key result: %v", err)
	}
	if _, err := d.ImportRow(ctx, TableTask,
		[]string{"t-bad", "", "", "orphan", "", "0", "todo", "0", "0", "", ""}); err == nil {
		t.Fatalf("expected error for task with no parent reference")
	}

	var krID, initiativeID any
	if err := d.sql.QueryRow(
		"SELECT key_result_id, initiative_id FROM task WHERE external_id = 't2'").Scan(&krID, &initiativeID); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if krID == nil || initiativeID != nil {
		t.Fatalf("task parent columns = %v/%v; want key_result set, initiative NULL", krID, initiativeID)
	}
}

func TestExportRowRoundTrip(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	chain(t, d, "alice")

	row, err := d.ExportRow(ctx, TableObjective, "o1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	want := []string{"o1", ShimStrategyPrefix + "g1", "title o1", "", "0", "2026-08-01T10:00:00Z"}
	if diff := cmp.Diff(want, row); diff != "" {
		t.Fatalf("objective row mismatch (-want +got):\n%s", diff)
	}

	row, err = d.ExportRow(ctx, TableKeyResult, "k1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	want = []string{"k1", "o1", "title k1", "", "0", "100", "0", "%", "2026-08-01T10:00:00Z"}
	if diff := cmp.Diff(want, row); diff != "" {
		t.Fatalf("key result row mismatch (-want +got):\n%s", diff)
	}

	if len(row) != len(Headers(TableKeyResult)) {
		t.Fatalf("exported %d cells for %d headers", len(row), len(Headers(TableKeyResult)))
	}
}

func TestBuildDocumentFoldsSchemaBack(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	chain(t, d, "alice")

	// Rows that only exist in sheet imports: an initiative with a task under
	// it, which the four-level tree re-attaches to the key result.
	if _, err := d.ImportRow(ctx, TableInitiative,
		[]string{"i1", "k1", "Spike", "", "0", "2026-08-01"}); err != nil {
		t.Fatalf("import initiative: %v", err)
	}
	if _, err := d.ImportRow(ctx, TableTask,
		[]string{"t2", "", "i1", "Prototype", "", "0", "in_progress", "0", "25", "", "2026-08-01"}); err != nil {
		t.Fatalf("import task: %v", err)
	}
	if _, err := d.ImportRow(ctx, TableWorkLog,
		[]string{"wl1", "t2", "2026-08-01T09:00:00Z", "2026-08-01T09:25:00Z", "25", "spiked"}); err != nil {
		t.Fatalf("import work log: %v", err)
	}

	doc, err := d.BuildDocument(ctx, "alice")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if len(doc.RootIDs) != 1 || doc.RootIDs[0] != "g1" {
		t.Fatalf("roots = %v; want [g1]", doc.RootIDs)
	}
	goal := doc.Nodes["g1"]
	if goal == nil || len(goal.Children) != 1 || goal.Children[0] != "o1" {
		t.Fatalf("objectives attach straight to the goal; got %+v", goal)
	}

	kr := doc.Nodes["k1"]
	if kr == nil || len(kr.Children) != 2 {
		t.Fatalf("key result children = %+v; want t1 and re-attached t2", kr)
	}

	t2 := doc.Nodes["t2"]
	if t2 == nil || t2.ParentID == nil || *t2.ParentID != "k1" {
		t.Fatalf("initiative task not re-attached to key result: %+v", t2)
	}
	if t2.Task == nil || t2.Task.Status != model.StatusInProgress || t2.Task.TimeSpent != 25 {
		t.Fatalf("task meta lost: %+v", t2.Task)
	}
	if len(t2.Task.WorkLog) != 1 || t2.Task.WorkLog[0].DurationMinutes != 25 {
		t.Fatalf("work log lost: %+v", t2.Task.WorkLog)
	}
}

func TestUsersAndCyclesRoundTrip(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	u := model.User{Username: "alice", DisplayName: "Alice", Role: model.RoleAdmin,
		CreatedAt: ts(t, "2026-08-01T08:00:00Z"), IsActive: true}
	if err := d.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	users, err := d.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]model.User{u}, users); diff != "" {
		t.Fatalf("users mismatch (-want +got):\n%s", diff)
	}

	c1 := model.Cycle{ID: "c1", Title: "2026-Q2",
		StartDate: ts(t, "2026-04-01T00:00:00Z"), EndDate: ts(t, "2026-06-30T00:00:00Z")}
	c2 := model.Cycle{ID: "c2", Title: "2026-Q3", IsActive: true,
		StartDate: ts(t, "2026-07-01T00:00:00Z"), EndDate: ts(t, "2026-09-30T00:00:00Z")}
	for _, c := range []model.Cycle{c2, c1} {
		if err := d.CreateCycle(ctx, c); err != nil {
			t.Fatalf("create cycle: %v", err)
		}
	}
	cycles, err := d.ListCycles(ctx)
	if err != nil {
		t.Fatalf("list cycles: %v", err)
	}
	// Ordered by start date regardless of insertion order.
	if diff := cmp.Diff([]model.Cycle{c1, c2}, cycles); diff != "" {
		t.Fatalf("cycles mismatch (-want +got):\n%s", diff)
	}

	active, err := d.ActiveCycle(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active == nil || active.ID != "c2" {
		t.Fatalf("active cycle = %+v; want c2", active)
	}
}

func TestCheckIns(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	chain(t, d, "alice")

	ci := model.CheckIn{ID: "ci1", KeyResultID: "k1", Value: 42, Confidence: 7,
		Comment: "on track", CreatedAt: ts(t, "2026-08-01T15:00:00Z")}
	if err := d.AddCheckIn(ctx, ci); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := d.ListCheckIns(ctx, "k1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]model.CheckIn{ci}, got); diff != "" {
		t.Fatalf("check-ins mismatch (-want +got):\n%s", diff)
	}
}
