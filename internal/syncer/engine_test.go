package syncer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"okr-cli/internal/model"
	"okr-cli/internal/sheets"
	"okr-cli/internal/store"
	"okr-cli/internal/tree"
)

func testEngine(t *testing.T) (*Engine, *store.DB, *sheets.Memory) {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mem := sheets.NewMemory()
	e := New(db, mem, func(format string, args ...any) { t.Logf(format, args...) })
	if err := e.EnsureSheets(context.Background()); err != nil {
		t.Fatalf("ensure sheets: %v", err)
	}
	return e, db, mem
}

func goalNode(id, title string) *model.Node {
	return &model.Node{
		ID:        id,
		Type:      model.NodeGoal,
		Title:     title,
		CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Children:  []string{},
	}
}

func childNode(id string, typ model.NodeType, parent *model.Node) *model.Node {
	n := &model.Node{
		ID:        id,
		Type:      typ,
		Title:     "title " + id,
		CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Children:  []string{},
	}
	switch typ {
	case model.NodeKeyResult:
		n.KeyResult = &model.KeyResultMeta{TargetValue: 100, Unit: "%"}
	case model.NodeTask:
		n.Task = &model.TaskMeta{Status: model.StatusTodo}
	}
	n.ParentID = &parent.ID
	parent.Children = append(parent.Children, id)
	return n
}

func findRow(rows [][]string, key string) []string {
	for _, r := range rows {
		if len(r) > 0 && r[0] == key {
			return r
		}
	}
	return nil
}

func TestCreatePushesGoalAndShimRows(t *testing.T) {
	e, _, mem := testEngine(t)
	ctx := context.Background()

	if err := e.CreateNode(ctx, goalNode("g1", "Ship v2"), nil, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	e.Close()

	row := findRow(mem.Snapshot("Goals"), "g1")
	if row == nil {
		t.Fatalf("goal row never reached the sheet: %v", mem.Snapshot("Goals"))
	}
	if row[1] != "alice" || row[3] != "Ship v2" {
		t.Fatalf("goal row = %v", row)
	}
	if findRow(mem.Snapshot("Strategies"), store.ShimStrategyPrefix+"g1") == nil {
		t.Fatalf("shim strategy row missing: %v", mem.Snapshot("Strategies"))
	}
	if findRow(mem.Snapshot("Users"), "alice") == nil {
		t.Fatalf("user row missing")
	}
}

func TestUpdateRewritesRowInPlace(t *testing.T) {
	e, _, mem := testEngine(t)
	ctx := context.Background()

	g := goalNode("g1", "Ship v2")
	if err := e.CreateNode(ctx, g, nil, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	g.Title = "Ship v2 (scoped)"
	g.Progress = 30
	if err := e.UpdateNode(ctx, g, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	e.Close()

	rows := mem.Snapshot("Goals")
	if len(rows) != 1 {
		t.Fatalf("update appended instead of rewriting: %d rows", len(rows))
	}
	if rows[0][3] != "Ship v2 (scoped)" || rows[0][5] != "30" {
		t.Fatalf("row = %v", rows[0])
	}
}

func TestDeleteRemovesSheetRows(t *testing.T) {
	e, _, mem := testEngine(t)
	ctx := context.Background()

	if err := e.CreateNode(ctx, goalNode("g1", "doomed"), nil, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := e.DeleteNode(ctx, "g1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	e.Close()

	if row := findRow(mem.Snapshot("Goals"), "g1"); row != nil {
		t.Fatalf("goal row survived delete: %v", row)
	}
	if row := findRow(mem.Snapshot("Strategies"), store.ShimStrategyPrefix+"g1"); row != nil {
		t.Fatalf("shim row survived delete: %v", row)
	}
}

func TestDeleteReconcilesDependentLogRows(t *testing.T) {
	e, db, mem := testEngine(t)
	ctx := context.Background()

	goal := goalNode("g1", "Ship v2")
	objective := childNode("o1", model.NodeObjective, goal)
	kr := childNode("k1", model.NodeKeyResult, objective)
	task := childNode("t1", model.NodeTask, kr)
	for _, c := range []struct{ n, parent *model.Node }{
		{goal, nil}, {objective, goal}, {kr, objective}, {task, kr},
	} {
		if err := e.CreateNode(ctx, c.n, c.parent, "alice"); err != nil {
			t.Fatalf("create %s: %v", c.n.ID, err)
		}
	}

	end := time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC)
	if err := e.SaveWorkLog(ctx, "t1", model.WorkLogEntry{
		ID: "wl1", StartedAt: end.Add(-time.Hour), EndedAt: &end, DurationMinutes: 60,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.AddCheckIn(ctx, model.CheckIn{ID: "ci1", KeyResultID: "k1", Value: 10,
		CreatedAt: end}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := e.PushAll(ctx); err != nil {
		t.Fatalf("push all: %v", err)
	}
	if findRow(mem.Snapshot("WorkLogs"), "wl1") == nil ||
		findRow(mem.Snapshot("CheckIns"), "ci1") == nil {
		t.Fatalf("log rows never reached the sheet")
	}

	// Deleting the task takes its work log with it in SQL; the sheet rows
	// have to follow.
	if err := e.DeleteNode(ctx, "t1"); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	// Same for a key result and its check-ins.
	if err := e.DeleteNode(ctx, "k1"); err != nil {
		t.Fatalf("delete key result: %v", err)
	}
	e.Close()

	if row := findRow(mem.Snapshot("Tasks"), "t1"); row != nil {
		t.Fatalf("task row survived delete: %v", row)
	}
	if row := findRow(mem.Snapshot("WorkLogs"), "wl1"); row != nil {
		t.Fatalf("work log row survived its task: %v", row)
	}
	if row := findRow(mem.Snapshot("CheckIns"), "ci1"); row != nil {
		t.Fatalf("check-in row survived its key result: %v", row)
	}
}

func TestRestoreIsIdempotent(t *testing.T) {
	e, db, mem := testEngine(t)
	ctx := context.Background()

	seed := map[string][][]string{
		"Users":  {{"alice", "Alice", "member", "2026-08-01", "1"}},
		"Goals":  {{"g1", "alice", "", "Ship v2", "", "0", "2026-08-01"}},
		"Strategies": {
			{store.ShimStrategyPrefix + "g1", "g1", "[Auto] Strategy", "", "0", "2026-08-01"},
		},
		"Objectives": {{"o1", store.ShimStrategyPrefix + "g1", "Stabilize", "", "0", "2026-08-01"}},
		"KeyResults": {{"k1", "o1", "Crash-free", "", "40", "100", "40", "%", "2026-08-01"}},
		// Broken row: its parent does not exist anywhere.
		"Tasks": {{"t-bad", "k-missing", "", "orphan", "", "0", "todo", "0", "0", "", ""}},
	}
	for title, rows := range seed {
		ws := mem.Sheet(title)
		for _, r := range rows {
			if err := ws.AppendRow(ctx, r); err != nil {
				t.Fatalf("seed %s: %v", title, err)
			}
		}
	}

	for i := 0; i < 2; i++ {
		counts, err := e.Restore(ctx)
		if err != nil {
			t.Fatalf("restore %d: %v", i, err)
		}
		if i == 0 {
			if counts[store.TableGoal] != 1 || counts[store.TableKeyResult] != 1 {
				t.Fatalf("counts = %v", counts)
			}
			// The orphan row is skipped, not fatal.
			if counts[store.TableTask] != 0 {
				t.Fatalf("orphan task imported: %v", counts)
			}
			continue
		}
		// Every row already landed, so the second run imports nothing.
		for table, n := range counts {
			if n != 0 {
				t.Fatalf("second restore counted %d %s rows as imported", n, table)
			}
		}
	}
	e.Close()

	doc, err := db.BuildDocument(ctx, "alice")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(doc.RootIDs) != 1 || len(doc.Nodes) != 3 {
		t.Fatalf("restored tree = %d roots, %d nodes; want 1/3", len(doc.RootIDs), len(doc.Nodes))
	}
	kr := doc.Nodes["k1"]
	if kr == nil || kr.KeyResult == nil || kr.KeyResult.CurrentValue != 40 {
		t.Fatalf("key result values lost: %+v", kr)
	}
}

func TestCleanupSweepDeletesSheetRows(t *testing.T) {
	e, _, mem := testEngine(t)
	ctx := context.Background()

	keep := goalNode("g-keep", "stays")
	drop := goalNode("g-drop", "goes")
	for _, g := range []*model.Node{keep, drop} {
		if err := e.CreateNode(ctx, g, nil, "alice"); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	doc := tree.NewDocument()
	doc.Nodes[keep.ID] = keep
	doc.RootIDs = []string{keep.ID}

	removed, err := e.CleanupSweep(ctx, "alice", LiveSet(doc))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if got := removed[store.TableGoal]; len(got) != 1 || got[0] != "g-drop" {
		t.Fatalf("removed = %v", removed)
	}
	e.Close()

	if findRow(mem.Snapshot("Goals"), "g-keep") == nil {
		t.Fatalf("live goal row swept")
	}
	if findRow(mem.Snapshot("Goals"), "g-drop") != nil {
		t.Fatalf("dead goal row survived")
	}
	if findRow(mem.Snapshot("Strategies"), store.ShimStrategyPrefix+"g-drop") != nil {
		t.Fatalf("dead shim row survived")
	}
}

func TestPushAllRecoversDroppedWrites(t *testing.T) {
	e, db, mem := testEngine(t)
	ctx := context.Background()

	// A row that reached SQL but never the sheet: write to the store
	// directly, bypassing the engine.
	if err := db.CreateNode(ctx, goalNode("g1", "silent"), nil, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if findRow(mem.Snapshot("Goals"), "g1") != nil {
		t.Fatalf("row should not be on the sheet yet")
	}

	pushed, err := e.PushAll(ctx)
	if err != nil {
		t.Fatalf("push all: %v", err)
	}
	if pushed < 2 { // goal + shim strategy
		t.Fatalf("pushed = %d; want at least goal and shim", pushed)
	}
	e.Close()

	if findRow(mem.Snapshot("Goals"), "g1") == nil {
		t.Fatalf("goal row still missing after full push")
	}
}

func TestLiveSetIncludesWorkLogEntries(t *testing.T) {
	doc := tree.NewDocument()
	end := time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC)
	task := &model.Node{
		ID:   "t1",
		Type: model.NodeTask,
		Task: &model.TaskMeta{
			WorkLog: []model.WorkLogEntry{{ID: "wl1", StartedAt: end.Add(-time.Hour), EndedAt: &end}},
		},
	}
	doc.Nodes[task.ID] = task

	live := LiveSet(doc)
	if !live["t1"] || !live["wl1"] {
		t.Fatalf("live = %v; want t1 and wl1", live)
	}
}
