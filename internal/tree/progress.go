package tree

import (
	"math"

	"okr-cli/internal/model"
)

// Compute returns a node's progress from its subtree without storing it.
//
// Leaf tasks keep their manual value. A key result without children derives
// progress from current/target. Every node with children averages them,
// rounded to the nearest integer.
func Compute(doc *Document, id string) int {
	n := doc.Nodes[id]
	if n == nil {
		return 0
	}
	if len(n.Children) == 0 {
		if n.Type == model.NodeKeyResult && n.KeyResult != nil && n.KeyResult.TargetValue > 0 {
			return clampProgress(int(math.Round(n.KeyResult.CurrentValue / n.KeyResult.TargetValue * 100)))
		}
		// Transiently childless non-leaf nodes keep their last stored value.
		return n.Progress
	}
	sum := 0
	for _, cid := range n.Children {
		sum += Compute(doc, cid)
	}
	return clampProgress(int(math.Round(float64(sum) / float64(len(n.Children)))))
}

// Propagate recomputes a node's progress, stores it, and walks the parent
// chain until a root is reached or a recomputation changes nothing.
// It returns the nodes whose stored progress actually changed, deepest first,
// so the caller can mirror exactly those rows.
func Propagate(doc *Document, id string) []*model.Node {
	var changed []*model.Node
	for id != "" {
		n := doc.Nodes[id]
		if n == nil {
			return changed
		}
		next := Compute(doc, id)
		if next == n.Progress {
			return changed
		}
		n.Progress = next
		changed = append(changed, n)
		if n.ParentID == nil {
			return changed
		}
		id = *n.ParentID
	}
	return changed
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
