package tree

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"okr-cli/internal/model"
)

// recordMirror records mirror calls and can be told to fail, for checking
// that mirror outages never block tree mutations.
type recordMirror struct {
	calls []string
	fail  bool
}

func (m *recordMirror) err() error {
	if m.fail {
		return errors.New("mirror down")
	}
	return nil
}

func (m *recordMirror) CreateNode(_ context.Context, n, _ *model.Node, _ string) error {
	m.calls = append(m.calls, "create "+string(n.Type))
	return m.err()
}

func (m *recordMirror) UpdateNode(_ context.Context, n, _ *model.Node) error {
	m.calls = append(m.calls, "update "+string(n.Type))
	return m.err()
}

func (m *recordMirror) DeleteNode(_ context.Context, externalID string) error {
	m.calls = append(m.calls, "delete "+externalID)
	return m.err()
}

func (m *recordMirror) SaveWorkLog(_ context.Context, taskID string, e model.WorkLogEntry) error {
	m.calls = append(m.calls, fmt.Sprintf("worklog %s %dm", taskID, e.DurationMinutes))
	return m.err()
}

func (m *recordMirror) DeleteWorkLog(_ context.Context, taskID, entryID string) error {
	m.calls = append(m.calls, "worklog-delete "+taskID)
	return m.err()
}

func timerSession(t *testing.T) (*Session, *model.Node, *recordMirror) {
	t.Helper()
	mirror := &recordMirror{}
	s := testSession()
	s.Mirror = mirror

	_, _, kr := buildChain(t, s)
	task, err := s.Add(context.Background(), AddRequest{ParentID: kr.ID, Type: model.NodeTask, Title: "migrate"})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	return s, task, mirror
}

func TestTimerStartStop(t *testing.T) {
	s, task, _ := timerSession(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return start }
	if _, err := s.StartTimer(ctx, task.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if task.Task.TimerStartedAt == nil || !task.Task.TimerStartedAt.Equal(start) {
		t.Fatalf("timer not running from %v: %+v", start, task.Task.TimerStartedAt)
	}
	if got := s.ActiveTimer(); got == nil || got.ID != task.ID {
		t.Fatalf("ActiveTimer = %v; want %s", got, task.ID)
	}

	s.Now = func() time.Time { return start.Add(95 * time.Minute) }
	entry, err := s.StopTimer(ctx, task.ID, "wrote the migration")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if entry == nil || entry.DurationMinutes != 95 {
		t.Fatalf("entry = %+v; want 95 minutes", entry)
	}
	if task.Task.TimeSpent != 95 {
		t.Fatalf("TimeSpent = %d; want 95", task.Task.TimeSpent)
	}
	if task.Task.TimerStartedAt != nil {
		t.Fatalf("timer still running after stop")
	}
	if len(task.Task.WorkLog) != 1 || task.Task.WorkLog[0].Summary != "wrote the migration" {
		t.Fatalf("work log = %+v", task.Task.WorkLog)
	}
	if s.ActiveTimer() != nil {
		t.Fatalf("ActiveTimer should be nil after stop")
	}
}

func TestStopWithoutTimerIsNoop(t *testing.T) {
	s, task, _ := timerSession(t)

	entry, err := s.StopTimer(context.Background(), task.ID, "")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil entry; got %+v", entry)
	}
	if len(task.Task.WorkLog) != 0 || task.Task.TimeSpent != 0 {
		t.Fatalf("no-op stop mutated the task: %+v", task.Task)
	}
}

func TestSingleActiveTimerInvariant(t *testing.T) {
	s, taskA, _ := timerSession(t)
	ctx := context.Background()

	kr := s.Doc.Nodes[*taskA.ParentID]
	taskB, err := s.Add(ctx, AddRequest{ParentID: kr.ID, Type: model.NodeTask, Title: "docs"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return start }
	if _, err := s.StartTimer(ctx, taskA.ID); err != nil {
		t.Fatalf("start A: %v", err)
	}

	// Starting B force-stops A and logs its interval.
	s.Now = func() time.Time { return start.Add(30 * time.Minute) }
	if _, err := s.StartTimer(ctx, taskB.ID); err != nil {
		t.Fatalf("start B: %v", err)
	}

	if taskA.Task.TimerStartedAt != nil {
		t.Fatalf("task A timer still running")
	}
	if taskA.Task.TimeSpent != 30 || len(taskA.Task.WorkLog) != 1 {
		t.Fatalf("task A interval not logged: spent=%d log=%d", taskA.Task.TimeSpent, len(taskA.Task.WorkLog))
	}
	if got := s.ActiveTimer(); got == nil || got.ID != taskB.ID {
		t.Fatalf("ActiveTimer = %v; want %s", got, taskB.ID)
	}
}

func TestTimerRejectsNonTasks(t *testing.T) {
	s, task, _ := timerSession(t)
	kr := s.Doc.Nodes[*task.ParentID]

	if _, err := s.StartTimer(context.Background(), kr.ID); !errors.Is(err, ErrNotTask) {
		t.Fatalf("expected ErrNotTask; got %v", err)
	}
	if _, err := s.AddManualLog(context.Background(), kr.ID, 10, "", time.Time{}); !errors.Is(err, ErrNotTask) {
		t.Fatalf("expected ErrNotTask; got %v", err)
	}
}

func TestManualLogAndDelete(t *testing.T) {
	s, task, mirror := timerSession(t)
	ctx := context.Background()

	at := time.Date(2026, 8, 2, 14, 0, 0, 0, time.UTC)
	entry, err := s.AddManualLog(ctx, task.ID, 45, "review", at)
	if err != nil {
		t.Fatalf("add log: %v", err)
	}
	if entry.DurationMinutes != 45 || !entry.StartedAt.Equal(at) {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.EndedAt == nil || !entry.EndedAt.Equal(at.Add(45*time.Minute)) {
		t.Fatalf("end = %v; want start+45m", entry.EndedAt)
	}
	if task.Task.TimeSpent != 45 {
		t.Fatalf("TimeSpent = %d; want 45", task.Task.TimeSpent)
	}

	// Deleting by a non-matching time is a silent no-op.
	if err := s.DeleteWorkLog(ctx, task.ID, at.Add(time.Minute)); err != nil {
		t.Fatalf("delete miss: %v", err)
	}
	if task.Task.TimeSpent != 45 || len(task.Task.WorkLog) != 1 {
		t.Fatalf("no-op delete mutated the task")
	}

	if err := s.DeleteWorkLog(ctx, task.ID, at); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if task.Task.TimeSpent != 0 || len(task.Task.WorkLog) != 0 {
		t.Fatalf("entry not removed: spent=%d log=%d", task.Task.TimeSpent, len(task.Task.WorkLog))
	}

	found := false
	for _, c := range mirror.calls {
		if c == "worklog-delete "+task.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("work log delete never mirrored: %v", mirror.calls)
	}
}

func TestTotalTimeAggregates(t *testing.T) {
	s, task, _ := timerSession(t)
	ctx := context.Background()

	kr := s.Doc.Nodes[*task.ParentID]
	objective := s.Doc.Nodes[*kr.ParentID]
	goal := s.Doc.Nodes[*objective.ParentID]
	other, _ := s.Add(ctx, AddRequest{ParentID: kr.ID, Type: model.NodeTask})

	if _, err := s.AddManualLog(ctx, task.ID, 30, "", time.Time{}); err != nil {
		t.Fatalf("log: %v", err)
	}
	if _, err := s.AddManualLog(ctx, other.ID, 15, "", time.Time{}); err != nil {
		t.Fatalf("log: %v", err)
	}

	for _, c := range []struct {
		id   string
		want int
	}{{task.ID, 30}, {other.ID, 15}, {kr.ID, 45}, {objective.ID, 45}, {goal.ID, 45}} {
		got, err := s.TotalTime(c.id)
		if err != nil {
			t.Fatalf("TotalTime(%s): %v", c.id, err)
		}
		if got != c.want {
			t.Fatalf("TotalTime(%s) = %d; want %d", c.id, got, c.want)
		}
	}
}

func TestMirrorFailureNeverBlocksMutation(t *testing.T) {
	mirror := &recordMirror{fail: true}
	s := testSession()
	s.Mirror = mirror

	goal, err := s.Add(context.Background(), AddRequest{Type: model.NodeGoal, Title: "resilient"})
	if err != nil {
		t.Fatalf("add with failing mirror: %v", err)
	}
	if s.Doc.Nodes[goal.ID] == nil {
		t.Fatalf("node missing from tree")
	}
	if len(mirror.calls) == 0 {
		t.Fatalf("mirror was never attempted")
	}
}
