package tree

import (
	"errors"
	"fmt"

	"okr-cli/internal/model"
)

// ErrNotTask is returned by timer/worklog operations aimed at non-task nodes.
var ErrNotTask = errors.New("timers and work logs apply to tasks only")

// HierarchyError reports an attempt to attach a child of the wrong type.
// The whole operation is rejected; the tree is never auto-corrected.
type HierarchyError struct {
	Parent model.NodeType // empty for root-level attachment
	Child  model.NodeType
}

func (e HierarchyError) Error() string {
	if e.Parent == "" {
		return fmt.Sprintf("hierarchy violation: root nodes must be goals, got %s", e.Child)
	}
	return fmt.Sprintf("hierarchy violation: %s cannot contain %s", e.Parent, e.Child)
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func errNotFound(kind, id string) error {
	return NotFoundError{Kind: kind, ID: id}
}
