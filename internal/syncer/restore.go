package syncer

import (
	"context"
	"fmt"

	"okr-cli/internal/store"
)

func sheetHeaders() map[string][]string {
	headers := make(map[string][]string, len(store.RestoreOrder))
	for _, t := range store.RestoreOrder {
		headers[store.SheetName(t)] = store.Headers(t)
	}
	return headers
}

// EnsureSheets creates any missing worksheet with its header row.
func (e *Engine) EnsureSheets(ctx context.Context) error {
	if e.client == nil {
		return fmt.Errorf("no spreadsheet configured")
	}
	return e.client.EnsureSheets(ctx, sheetHeaders())
}

// Restore imports every worksheet into the relational mirror, parents
// first. Rows that already exist are skipped, so re-running converges; rows
// that fail to parse or reference a missing parent are logged and skipped
// without poisoning the rest of their table. Returns per-table counts of
// rows actually inserted, so a second run over the same data reports zero.
func (e *Engine) Restore(ctx context.Context) (map[store.Table]int, error) {
	if err := e.EnsureSheets(ctx); err != nil {
		return nil, err
	}
	counts := make(map[store.Table]int, len(store.RestoreOrder))
	for _, t := range store.RestoreOrder {
		rows, err := e.client.Sheet(store.SheetName(t)).Rows(ctx)
		if err != nil {
			e.logf("restore: read %s: %v", store.SheetName(t), err)
			continue
		}
		for i, row := range rows {
			added, err := e.db.ImportRow(ctx, t, row)
			if err != nil {
				e.logf("restore: %s row %d: %v", store.SheetName(t), i+2, err)
				continue
			}
			if added {
				counts[t]++
			}
		}
	}
	return counts, nil
}

// PushAll writes every database row to the spreadsheet synchronously. This
// is the recovery path for a long stretch of dropped background pushes.
func (e *Engine) PushAll(ctx context.Context) (int, error) {
	if err := e.EnsureSheets(ctx); err != nil {
		return 0, err
	}
	pushed := 0
	for _, t := range store.RestoreOrder {
		keys, err := e.db.Keys(ctx, t)
		if err != nil {
			return pushed, err
		}
		for _, key := range keys {
			if err := e.execute(ctx, pushJob{op: opUpsert, table: t, key: key}); err != nil {
				e.logf("push: %s/%s: %v", store.SheetName(t), key, err)
				continue
			}
			pushed++
		}
	}
	return pushed, nil
}
