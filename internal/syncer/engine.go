// Package syncer keeps the three stores in step: it is the tree's mirror
// into SQLite and the best-effort bridge from SQLite to the spreadsheet.
package syncer

import (
	"context"
	"errors"
	"log"

	"okr-cli/internal/model"
	"okr-cli/internal/sheets"
	"okr-cli/internal/store"
	"okr-cli/internal/tree"
)

// Engine writes every tree mutation to the relational mirror synchronously
// and queues the matching spreadsheet row push in the background. With no
// sheet client it degrades to SQL-only; the tree layer absorbs any error
// this returns, so a dead database degrades further to tree-only.
type Engine struct {
	db     *store.DB
	client sheets.Client
	queue  *pushQueue
	logFn  func(format string, args ...any)
}

var _ tree.Mirror = (*Engine)(nil)

// New builds an engine over the mirror database. client may be nil.
func New(db *store.DB, client sheets.Client, logf func(string, ...any)) *Engine {
	e := &Engine{db: db, client: client, logFn: logf}
	if e.logFn == nil {
		e.logFn = log.Printf
	}
	if client != nil {
		e.queue = newPushQueue(e)
	}
	return e
}

// Close flushes the push queue. Call once, after the last mutation.
func (e *Engine) Close() {
	if e.queue != nil {
		e.queue.close()
	}
}

func (e *Engine) logf(format string, args ...any) { e.logFn(format, args...) }

func (e *Engine) push(op pushOp, table store.Table, key string) {
	if e.queue == nil {
		return
	}
	e.queue.enqueue(pushJob{op: op, table: table, key: key})
}

func tableFor(t model.NodeType) store.Table {
	switch t {
	case model.NodeGoal:
		return store.TableGoal
	case model.NodeObjective:
		return store.TableObjective
	case model.NodeKeyResult:
		return store.TableKeyResult
	default:
		return store.TableTask
	}
}

func (e *Engine) CreateNode(ctx context.Context, n, parent *model.Node, user string) error {
	if err := e.db.EnsureUser(ctx, user); err != nil {
		return err
	}
	if err := e.db.CreateNode(ctx, n, parent, user); err != nil {
		return err
	}
	if n.Type == model.NodeGoal {
		e.push(opUpsert, store.TableUser, user)
		e.push(opUpsert, store.TableStrategy, store.ShimStrategyPrefix+n.ID)
	}
	e.push(opUpsert, tableFor(n.Type), n.ID)
	return nil
}

func (e *Engine) UpdateNode(ctx context.Context, n, parent *model.Node) error {
	if err := e.db.UpdateNode(ctx, n, parent); err != nil {
		return err
	}
	e.push(opUpsert, tableFor(n.Type), n.ID)
	return nil
}

func (e *Engine) DeleteNode(ctx context.Context, externalID string) error {
	table, _, err := e.db.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, store.ErrNoRow) {
			return nil
		}
		return err
	}
	// FK cascades take dependent work logs and check-ins with the row, so
	// their sheet rows have to be enumerated before the SQL delete.
	dependents, err := e.db.DependentLogKeys(ctx, table, externalID)
	if err != nil {
		return err
	}
	if err := e.db.DeleteNode(ctx, externalID); err != nil {
		return err
	}
	for depTable, keys := range dependents {
		for _, key := range keys {
			e.push(opDelete, depTable, key)
		}
	}
	e.push(opDelete, table, externalID)
	if table == store.TableGoal {
		e.push(opDelete, store.TableStrategy, store.ShimStrategyPrefix+externalID)
	}
	return nil
}

func (e *Engine) SaveWorkLog(ctx context.Context, taskID string, entry model.WorkLogEntry) error {
	if err := e.db.SaveWorkLog(ctx, taskID, entry); err != nil {
		return err
	}
	e.push(opUpsert, store.TableWorkLog, entry.ID)
	// The task row carries the running totals.
	e.push(opUpsert, store.TableTask, taskID)
	return nil
}

func (e *Engine) DeleteWorkLog(ctx context.Context, taskID, entryID string) error {
	if err := e.db.DeleteWorkLog(ctx, taskID, entryID); err != nil {
		return err
	}
	e.push(opDelete, store.TableWorkLog, entryID)
	e.push(opUpsert, store.TableTask, taskID)
	return nil
}

// LiveSet collects every external id the tree still references: node ids
// plus the ids of work-log entries on live tasks. This is the survivor set
// a cleanup sweep keeps.
func LiveSet(doc *tree.Document) map[string]bool {
	live := doc.LiveIDs()
	for _, n := range doc.Nodes {
		if n.Task == nil {
			continue
		}
		for _, entry := range n.Task.WorkLog {
			live[entry.ID] = true
		}
	}
	return live
}

// CleanupSweep removes dead rows from the database, then queues a sheet row
// deletion for each. The live set is the tree's current ids plus the ids of
// every work-log entry still attached to a live task.
func (e *Engine) CleanupSweep(ctx context.Context, user string, live map[string]bool) (map[store.Table][]string, error) {
	removed, err := e.db.Cleanup(ctx, user, live)
	if err != nil {
		return nil, err
	}
	for table, keys := range removed {
		for _, key := range keys {
			e.push(opDelete, table, key)
		}
	}
	return removed, nil
}
