package syncer

import (
	"context"
	"sync"
	"time"

	"okr-cli/internal/store"
)

type pushOp int

const (
	opUpsert pushOp = iota
	opDelete
)

func (o pushOp) String() string {
	if o == opDelete {
		return "delete"
	}
	return "upsert"
}

type pushJob struct {
	op    pushOp
	table store.Table
	key   string
}

type pushResult struct {
	pushJob
	err error
}

// pushQueue serializes spreadsheet writes on a single background goroutine.
// Jobs block when the buffer is full; the sheet API is the slow side, so
// backpressure lands on the caller rather than on unbounded memory. Results
// flow to a second goroutine that only logs, keeping failures off the hot
// path entirely.
type pushQueue struct {
	jobs    chan pushJob
	results chan pushResult
	wg      sync.WaitGroup
}

const pushBuffer = 64

func newPushQueue(e *Engine) *pushQueue {
	q := &pushQueue{
		jobs:    make(chan pushJob, pushBuffer),
		results: make(chan pushResult, pushBuffer),
	}
	q.wg.Add(2)
	go q.run(e)
	go q.drain(e)
	return q
}

func (q *pushQueue) run(e *Engine) {
	defer q.wg.Done()
	defer close(q.results)
	for job := range q.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := e.execute(ctx, job)
		cancel()
		q.results <- pushResult{pushJob: job, err: err}
	}
}

func (q *pushQueue) drain(e *Engine) {
	defer q.wg.Done()
	for r := range q.results {
		if r.err != nil {
			e.logf("sheet push %s %s/%s failed: %v", r.op, store.SheetName(r.table), r.key, r.err)
		}
	}
}

func (q *pushQueue) enqueue(job pushJob) {
	q.jobs <- job
}

// close stops accepting work and waits for in-flight pushes to land.
func (q *pushQueue) close() {
	close(q.jobs)
	q.wg.Wait()
}

// execute runs one push synchronously: look the key up in column 1, then
// update in place, append, or delete the row.
func (e *Engine) execute(ctx context.Context, job pushJob) error {
	ws := e.client.Sheet(store.SheetName(job.table))
	switch job.op {
	case opDelete:
		row, err := ws.FindRow(ctx, job.key)
		if err != nil {
			return err
		}
		if row == 0 {
			return nil
		}
		return ws.DeleteRow(ctx, row)
	default:
		values, err := e.db.ExportRow(ctx, job.table, job.key)
		if err != nil {
			return err
		}
		row, err := ws.FindRow(ctx, job.key)
		if err != nil {
			return err
		}
		if row > 0 {
			return ws.UpdateRow(ctx, row, values)
		}
		return ws.AppendRow(ctx, values)
	}
}
