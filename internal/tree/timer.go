package tree

import (
	"context"
	"time"

	"okr-cli/internal/model"
)

// StartTimer starts the clock on a task. Only one timer may run across the
// whole forest, so any other running timer is stopped (and its interval
// logged) first.
func (s *Session) StartTimer(ctx context.Context, id string) (*model.Node, error) {
	n, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if n.Task == nil {
		return nil, ErrNotTask
	}

	for _, other := range s.Doc.Nodes {
		if other.ID == id || other.Task == nil || other.Task.TimerStartedAt == nil {
			continue
		}
		s.closeTimer(ctx, other, "")
	}

	now := s.now()
	n.Task.TimerStartedAt = &now
	s.mirrorWrite("update", func() error { return s.Mirror.UpdateNode(ctx, n, s.parentOf(n)) })

	return n, s.save()
}

// StopTimer stops a running timer, appends the closed interval to the work
// log and folds it into the task's time total. A task with no running timer
// is a no-op and returns a nil entry.
func (s *Session) StopTimer(ctx context.Context, id, summary string) (*model.WorkLogEntry, error) {
	n, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if n.Task == nil {
		return nil, ErrNotTask
	}
	if n.Task.TimerStartedAt == nil {
		return nil, nil
	}

	entry := s.closeTimer(ctx, n, summary)
	return entry, s.save()
}

func (s *Session) closeTimer(ctx context.Context, n *model.Node, summary string) *model.WorkLogEntry {
	started := n.Task.TimerStartedAt.UTC()
	now := s.now()
	entry := model.WorkLogEntry{
		ID:              model.NewID(),
		StartedAt:       started,
		EndedAt:         &now,
		DurationMinutes: int(now.Sub(started).Minutes()),
		Summary:         summary,
	}
	n.Task.WorkLog = append(n.Task.WorkLog, entry)
	n.Task.TimeSpent += entry.DurationMinutes
	n.Task.TimerStartedAt = nil

	s.mirrorWrite("update", func() error { return s.Mirror.UpdateNode(ctx, n, s.parentOf(n)) })
	s.mirrorWrite("worklog", func() error { return s.Mirror.SaveWorkLog(ctx, n.ID, entry) })
	return &entry
}

// AddManualLog appends an already-closed interval (the "quick add" path).
func (s *Session) AddManualLog(ctx context.Context, id string, minutes int, summary string, at time.Time) (*model.WorkLogEntry, error) {
	n, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if n.Task == nil {
		return nil, ErrNotTask
	}

	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()
	end := at.Add(time.Duration(minutes) * time.Minute)
	entry := model.WorkLogEntry{
		ID:              model.NewID(),
		StartedAt:       at,
		EndedAt:         &end,
		DurationMinutes: minutes,
		Summary:         summary,
	}
	n.Task.WorkLog = append(n.Task.WorkLog, entry)
	n.Task.TimeSpent += minutes

	s.mirrorWrite("update", func() error { return s.Mirror.UpdateNode(ctx, n, s.parentOf(n)) })
	s.mirrorWrite("worklog", func() error { return s.Mirror.SaveWorkLog(ctx, n.ID, entry) })

	return &entry, s.save()
}

// DeleteWorkLog removes the entry whose StartedAt matches exactly and
// subtracts its duration from the time total. No match is a silent no-op.
func (s *Session) DeleteWorkLog(ctx context.Context, id string, startedAt time.Time) error {
	n, err := s.Get(id)
	if err != nil {
		return err
	}
	if n.Task == nil {
		return ErrNotTask
	}

	for i, entry := range n.Task.WorkLog {
		if !entry.StartedAt.Equal(startedAt) {
			continue
		}
		n.Task.WorkLog = append(n.Task.WorkLog[:i], n.Task.WorkLog[i+1:]...)
		n.Task.TimeSpent -= entry.DurationMinutes
		if n.Task.TimeSpent < 0 {
			n.Task.TimeSpent = 0
		}
		e := entry
		s.mirrorWrite("update", func() error { return s.Mirror.UpdateNode(ctx, n, s.parentOf(n)) })
		s.mirrorWrite("worklog delete", func() error { return s.Mirror.DeleteWorkLog(ctx, n.ID, e.ID) })
		return s.save()
	}
	return nil
}

// ActiveTimer returns the task currently holding the single active timer.
func (s *Session) ActiveTimer() *model.Node {
	for _, n := range s.Doc.Nodes {
		if n.Task != nil && n.Task.TimerStartedAt != nil {
			return n
		}
	}
	return nil
}
