package store

import (
	"context"
	"fmt"

	"okr-cli/internal/model"
	"okr-cli/internal/tree"
)

// SyncTree upserts the whole document into the relational mirror, parents
// before children so foreign keys resolve even on an empty database. It is
// the heavy half of reconciliation: after best-effort writes have been
// dropped, running SyncTree then Cleanup brings both stores back in step.
func (d *DB) SyncTree(ctx context.Context, doc *tree.Document, user string) error {
	for _, rootID := range doc.RootIDs {
		if err := d.syncSubtree(ctx, doc, rootID, nil, user); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) syncSubtree(ctx context.Context, doc *tree.Document, id string, parent *model.Node, user string) error {
	n, ok := doc.Nodes[id]
	if !ok {
		return fmt.Errorf("dangling child reference %s", id)
	}
	if err := d.UpdateNode(ctx, n, parent); err != nil {
		return err
	}
	if n.Type == model.NodeTask && n.Task != nil {
		for _, e := range n.Task.WorkLog {
			if err := d.SaveWorkLog(ctx, n.ID, e); err != nil {
				return err
			}
		}
	}
	for _, childID := range n.Children {
		if err := d.syncSubtree(ctx, doc, childID, n, user); err != nil {
			return err
		}
	}
	return nil
}
