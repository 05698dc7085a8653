package tree

import (
	"context"
	"fmt"
	"log"
	"time"

	"okr-cli/internal/model"
)

// Mirror is the relational write surface the tree dual-writes against.
// Implementations are expected to be the sync engine (SQL + spreadsheet)
// or the SQL store directly; a nil Mirror degrades to tree-only mode.
type Mirror interface {
	CreateNode(ctx context.Context, n *model.Node, parent *model.Node, user string) error
	UpdateNode(ctx context.Context, n *model.Node, parent *model.Node) error
	DeleteNode(ctx context.Context, externalID string) error
	SaveWorkLog(ctx context.Context, taskID string, entry model.WorkLogEntry) error
	DeleteWorkLog(ctx context.Context, taskID string, entryID string) error
}

// Session is the explicit per-user context threaded through every tree and
// sync operation: which user's document, which planning cycle, and which
// mirror the dual-writes go to.
type Session struct {
	User  string
	Cycle string

	// Path is where the JSON document is persisted; empty disables persistence
	// (tests).
	Path string
	Doc  *Document

	Mirror Mirror

	// Now is the clock; tests override it.
	Now func() time.Time

	// Logf receives best-effort mirror failures. Defaults to log.Printf.
	Logf func(format string, args ...any)
}

func (s *Session) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Session) logf(format string, args ...any) {
	if s.Logf != nil {
		s.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// mirrorWrite runs a mirror call and absorbs the failure: mirror outages
// must never block the in-memory mutation. The cleanup sweep and cold-start
// restore reconcile whatever was missed.
func (s *Session) mirrorWrite(op string, fn func() error) {
	if s.Mirror == nil {
		return
	}
	if err := fn(); err != nil {
		s.logf("mirror %s: %v (continuing in tree-only mode)", op, err)
	}
}

func (s *Session) save() error {
	if s.Path == "" {
		return nil
	}
	return s.Doc.Save(s.Path)
}

// Get returns the node for id.
func (s *Session) Get(id string) (*model.Node, error) {
	n := s.Doc.Nodes[id]
	if n == nil {
		return nil, errNotFound("node", id)
	}
	return n, nil
}

// AddRequest describes one new node. An empty ParentID creates a root goal.
type AddRequest struct {
	ParentID    string
	Type        model.NodeType
	Title       string
	Description string
	Assignees   []string
	CycleID     string
}

// Add validates the hierarchy shape, writes the relational row first, then
// commits the node to the in-memory graph and re-aggregates ancestors.
func (s *Session) Add(ctx context.Context, req AddRequest) (*model.Node, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("unknown node type: %q", req.Type)
	}

	var parent *model.Node
	if req.ParentID == "" {
		if req.Type != model.NodeGoal {
			return nil, HierarchyError{Child: req.Type}
		}
	} else {
		parent = s.Doc.Nodes[req.ParentID]
		if parent == nil {
			return nil, errNotFound("parent", req.ParentID)
		}
		if want := model.ChildType[parent.Type]; want != req.Type {
			return nil, HierarchyError{Parent: parent.Type, Child: req.Type}
		}
	}

	title := req.Title
	if title == "" {
		title = fmt.Sprintf("%s #%d", req.Type.Display(), s.siblingCount(parent)+1)
	}

	n := &model.Node{
		ID:          model.NewID(),
		Type:        req.Type,
		Title:       title,
		Description: req.Description,
		Children:    []string{},
		CreatedAt:   s.now(),
		CreatedBy:   s.User,
		Assignees:   req.Assignees,
	}
	switch req.Type {
	case model.NodeGoal:
		n.CycleID = req.CycleID
		if n.CycleID == "" {
			n.CycleID = s.Cycle
		}
	case model.NodeKeyResult:
		n.KeyResult = &model.KeyResultMeta{TargetValue: 100, Unit: "%"}
	case model.NodeTask:
		n.Task = &model.TaskMeta{Status: model.StatusTodo}
	}
	if parent != nil {
		n.ParentID = &parent.ID
	}

	// Relational row first, so mirror readers never see a dangling child.
	s.mirrorWrite("create", func() error { return s.Mirror.CreateNode(ctx, n, parent, s.User) })

	s.Doc.Nodes[n.ID] = n
	if parent != nil {
		parent.Children = append(parent.Children, n.ID)
		s.propagate(ctx, parent.ID)
	} else {
		s.Doc.RootIDs = append(s.Doc.RootIDs, n.ID)
	}

	return n, s.save()
}

// Patch carries the updatable fields; nil means "leave unchanged".
type Patch struct {
	Title       *string
	Description *string
	Assignees   *[]string

	// Progress applies to leaf tasks only; non-leaf progress is always derived.
	Progress *int

	Status           *model.TaskStatus
	EstimatedMinutes *int

	TargetValue  *float64
	CurrentValue *float64
	Unit         *string
}

// Update merges fields into the node, re-aggregates ancestors when a leaf
// value changed, and translates the change into a relational field update.
func (s *Session) Update(ctx context.Context, id string, p Patch) (*model.Node, error) {
	n, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.Assignees != nil {
		n.Assignees = *p.Assignees
	}

	reaggregate := ""
	if p.Progress != nil {
		if len(n.Children) > 0 {
			// Non-leaf progress is derived; a manual value would be
			// overwritten by the next aggregation anyway.
			return nil, fmt.Errorf("progress of %s is derived from its children", id)
		}
		n.Progress = clampProgress(*p.Progress)
		if n.ParentID != nil {
			reaggregate = *n.ParentID
		}
	}

	if n.Task != nil {
		if p.Status != nil {
			n.Task.Status = *p.Status
		}
		if p.EstimatedMinutes != nil {
			n.Task.EstimatedMinutes = *p.EstimatedMinutes
		}
	}
	if n.KeyResult != nil {
		if p.TargetValue != nil {
			n.KeyResult.TargetValue = *p.TargetValue
		}
		if p.CurrentValue != nil {
			n.KeyResult.CurrentValue = *p.CurrentValue
		}
		if p.Unit != nil {
			n.KeyResult.Unit = *p.Unit
		}
		if p.TargetValue != nil || p.CurrentValue != nil {
			reaggregate = n.ID
		}
	}

	s.mirrorWrite("update", func() error { return s.Mirror.UpdateNode(ctx, n, s.parentOf(n)) })
	if reaggregate != "" {
		s.propagate(ctx, reaggregate)
	}

	return n, s.save()
}

// Delete removes the node and its entire subtree: relational rows bottom-up
// (children before parents, for foreign keys), then the in-memory nodes,
// then the parent/root attachment, then ancestor re-aggregation.
func (s *Session) Delete(ctx context.Context, id string) error {
	n, err := s.Get(id)
	if err != nil {
		return err
	}

	for _, sub := range s.postorder(id) {
		subID := sub
		s.mirrorWrite("delete", func() error { return s.Mirror.DeleteNode(ctx, subID) })
	}

	s.removeSubtree(id)

	if n.ParentID != nil {
		if parent := s.Doc.Nodes[*n.ParentID]; parent != nil {
			parent.Children = remove(parent.Children, id)
			s.propagate(ctx, parent.ID)
		}
	} else {
		s.Doc.RootIDs = remove(s.Doc.RootIDs, id)
	}

	return s.save()
}

// TotalTime sums TimeSpent over the node and all descendants. The aggregate
// is computed on read, never cached.
func (s *Session) TotalTime(id string) (int, error) {
	if _, err := s.Get(id); err != nil {
		return 0, err
	}
	return s.totalTime(id), nil
}

func (s *Session) totalTime(id string) int {
	n := s.Doc.Nodes[id]
	if n == nil {
		return 0
	}
	total := 0
	if n.Task != nil {
		total = n.Task.TimeSpent
	}
	for _, cid := range n.Children {
		total += s.totalTime(cid)
	}
	return total
}

// propagate re-aggregates from id upward and mirrors each row whose stored
// progress changed.
func (s *Session) propagate(ctx context.Context, id string) {
	for _, n := range Propagate(s.Doc, id) {
		node := n
		s.mirrorWrite("update", func() error { return s.Mirror.UpdateNode(ctx, node, s.parentOf(node)) })
	}
}

func (s *Session) parentOf(n *model.Node) *model.Node {
	if n.ParentID == nil {
		return nil
	}
	return s.Doc.Nodes[*n.ParentID]
}

func (s *Session) siblingCount(parent *model.Node) int {
	if parent == nil {
		return len(s.Doc.RootIDs)
	}
	return len(parent.Children)
}

// postorder lists the subtree ids children-first.
func (s *Session) postorder(id string) []string {
	n := s.Doc.Nodes[id]
	if n == nil {
		return nil
	}
	var out []string
	for _, cid := range n.Children {
		out = append(out, s.postorder(cid)...)
	}
	return append(out, id)
}

func (s *Session) removeSubtree(id string) {
	n := s.Doc.Nodes[id]
	if n == nil {
		return
	}
	delete(s.Doc.Nodes, id)
	for _, cid := range n.Children {
		s.removeSubtree(cid)
	}
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
