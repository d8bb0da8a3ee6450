// Package syncengine implements the sync orchestrator (spec.md §4.6): DDL
// phase, skip-by-count, strategy selection, and the three refresh
// strategies (full, incremental-from-last, incremental-compare), each
// batched and each finishing with an optional history append. Grounded
// on the original poa implementation's src/service/sync.py, rendered as
// a single Run entry point over the model.SrcDs/model.DstDs interfaces
// rather than a class hierarchy of strategy objects.
package syncengine

import (
	"context"
	"log/slog"
	"time"

	"github.com/markstefanovic/poa/internal/diffengine"
	"github.com/markstefanovic/poa/internal/model"
	"github.com/markstefanovic/poa/internal/srcds"
)

// nowFunc is indirected so tests can pin execution-time measurements;
// production code always uses time.Now.
var nowFunc = time.Now

// Options configures one Run call, mirroring spec.md §4.6's input list.
type Options struct {
	Incremental          bool
	CompareCols          []string
	IncreasingCols       []string
	SkipIfRowCountsMatch bool
	Recreate             bool
	TrackHistory         bool
	BatchSize            int
	After                map[string]any
}

// Engine runs one table's sync against a source and destination adapter.
type Engine struct {
	log *slog.Logger
}

// New constructs an Engine. A nil logger falls back to slog.Default().
func New(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: log}
}

// Run executes the full algorithm described in spec.md §4.6 and returns
// a terminal model.SyncResult. It never panics: any error from src/dst
// is converted into SyncFailed rather than propagated, matching the
// source's "only config and validation errors interrupt before the sync
// starts" contract (options are validated by the caller, e.g. cmd/poa).
func (e *Engine) Run(ctx context.Context, src model.SrcDs, dst model.DstDs, opts Options) model.SyncResult {
	start := nowFunc()

	if opts.BatchSize <= 0 {
		return model.Failed("batch_size must be > 0")
	}

	incremental := opts.Incremental

	if opts.Recreate {
		if err := dst.DropTable(ctx); err != nil {
			return model.Failed(err.Error())
		}
		if err := dst.Create(ctx); err != nil {
			return model.Failed(err.Error())
		}
		incremental = false
	} else {
		exists, err := dst.TableExists(ctx)
		if err != nil {
			return model.Failed(err.Error())
		}
		if !exists {
			if err := dst.Create(ctx); err != nil {
				return model.Failed(err.Error())
			}
			incremental = false
		}
	}

	if err := dst.CreateStagingTable(ctx); err != nil {
		return model.Failed(err.Error())
	}

	if incremental && opts.SkipIfRowCountsMatch {
		srcCount, err := src.GetRowCount(ctx)
		if err != nil {
			return model.Failed(err.Error())
		}
		dstCount, err := dst.GetRowCount(ctx)
		if err != nil {
			return model.Failed(err.Error())
		}
		if srcCount == dstCount {
			return model.Skipped("row counts match")
		}
	}

	var result model.SyncResult
	switch {
	case !incremental:
		result = e.fullRefresh(ctx, src, dst, opts)
	case len(opts.CompareCols) > 0:
		result = e.incrementalCompareRefresh(ctx, src, dst, opts)
	default:
		if len(opts.IncreasingCols) == 0 {
			return model.Failed("incremental sync requires either compare_cols or increasing_cols")
		}
		result = e.incrementalFromLastRefresh(ctx, src, dst, opts)
	}

	if result.Status != model.SyncSucceeded {
		return result
	}

	if opts.TrackHistory && (result.RowsAdded > 0 || result.RowsUpdated > 0 || result.RowsDeleted > 0) {
		if err := dst.CreateHistoryTable(ctx); err != nil {
			return model.Failed(err.Error())
		}
		if err := dst.UpdateHistoryTable(ctx); err != nil {
			return model.Failed(err.Error())
		}
	}

	result.ExecutionMS = time.Since(start).Milliseconds()
	return result
}

func (e *Engine) fullRefresh(ctx context.Context, src model.SrcDs, dst model.DstDs, opts Options) model.SyncResult {
	if err := dst.Truncate(ctx); err != nil {
		return model.Failed(err.Error())
	}

	rows, err := src.FetchRows(ctx, nil, nil)
	if err != nil {
		return model.Failed(err.Error())
	}

	for _, chunk := range chunkRows(rows, opts.BatchSize) {
		if err := dst.AddRowsToStaging(ctx, chunk); err != nil {
			return model.Failed(err.Error())
		}
		if err := dst.UpsertRowsFromStaging(ctx, chunk); err != nil {
			return model.Failed(err.Error())
		}
	}

	return model.Succeeded(len(rows), 0, 0, 0)
}

func (e *Engine) incrementalFromLastRefresh(ctx context.Context, src model.SrcDs, dst model.DstDs, opts Options) model.SyncResult {
	if err := dst.AddIncreasingColIndices(ctx, opts.IncreasingCols); err != nil {
		return model.Failed(err.Error())
	}

	maxValues, err := dst.GetMaxValues(ctx, opts.IncreasingCols)
	if err != nil {
		return model.Failed(err.Error())
	}

	after := srcds.MergeAfter(maxValues, opts.After)

	srcRows, err := src.FetchRows(ctx, nil, after)
	if err != nil {
		return model.Failed(err.Error())
	}
	dstRows, err := dst.FetchRows(ctx, nil, after)
	if err != nil {
		return model.Failed(err.Error())
	}

	srcTable, err := src.GetTable(ctx)
	if err != nil {
		return model.Failed(err.Error())
	}

	diff, err := diffengine.Diff(srcRows, dstRows, srcTable.PK)
	if err != nil {
		return model.Failed(err.Error())
	}

	toUpsert := make([]model.Row, 0, len(diff.Added)+len(diff.Updated))
	for _, row := range diff.Added {
		toUpsert = append(toUpsert, row)
	}
	for _, u := range diff.Updated {
		toUpsert = append(toUpsert, u.Src)
	}

	for _, chunk := range chunkRows(toUpsert, opts.BatchSize) {
		if err := dst.AddRowsToStaging(ctx, chunk); err != nil {
			return model.Failed(err.Error())
		}
		if err := dst.UpsertRowsFromStaging(ctx, chunk); err != nil {
			return model.Failed(err.Error())
		}
	}

	return model.Succeeded(len(diff.Added), 0, len(diff.Updated), 0)
}

// largeDeltaThreshold is the fraction of changed-or-deleted rows (versus
// total source rows) past which incremental compare falls back to a full
// source re-fetch rather than a targeted fetch_rows_by_key.
const largeDeltaThreshold = 0.5

func (e *Engine) incrementalCompareRefresh(ctx context.Context, src model.SrcDs, dst model.DstDs, opts Options) model.SyncResult {
	srcTable, err := src.GetTable(ctx)
	if err != nil {
		return model.Failed(err.Error())
	}

	minCols := unionCols(opts.CompareCols, srcTable.PK)

	srcRows, err := src.FetchRows(ctx, minCols, opts.After)
	if err != nil {
		return model.Failed(err.Error())
	}
	if len(srcRows) == 0 {
		return model.Skipped("source empty")
	}

	dstRows, err := dst.FetchRows(ctx, minCols, opts.After)
	if err != nil {
		return model.Failed(err.Error())
	}

	diff, err := diffengine.Diff(srcRows, dstRows, srcTable.PK)
	if err != nil {
		return model.Failed(err.Error())
	}

	if diff.ChangedOrDeletedCount() == 0 {
		return model.Skipped("identical")
	}

	srcCount, err := src.GetRowCount(ctx)
	if err != nil {
		return model.Failed(err.Error())
	}

	var rowsToUpsert []model.Row
	if srcCount > 0 && float64(diff.ChangedOrDeletedCount())/float64(srcCount) > largeDeltaThreshold {
		e.log.InfoContext(ctx, "large delta detected, falling back to full source fetch", "table", srcTable.TableName)
		rowsToUpsert, err = src.FetchRows(ctx, nil, nil)
		if err != nil {
			return model.Failed(err.Error())
		}
	} else {
		keys := append(diff.AddedKeys(), diff.UpdatedKeys()...)
		rowsToUpsert, err = src.FetchRowsByKey(ctx, nil, keys)
		if err != nil {
			return model.Failed(err.Error())
		}
	}

	for _, chunk := range chunkRows(rowsToUpsert, opts.BatchSize) {
		if err := dst.AddRowsToStaging(ctx, chunk); err != nil {
			return model.Failed(err.Error())
		}
		if err := dst.UpsertRowsFromStaging(ctx, chunk); err != nil {
			return model.Failed(err.Error())
		}
	}

	deletedKeys := diff.DeletedKeys()
	for _, chunk := range chunkKeys(deletedKeys, opts.BatchSize) {
		if err := dst.DeleteRows(ctx, chunk); err != nil {
			return model.Failed(err.Error())
		}
	}

	return model.Succeeded(len(diff.Added), len(diff.Deleted), len(diff.Updated), 0)
}

func chunkRows(rows []model.Row, n int) [][]model.Row {
	if n <= 0 {
		n = len(rows)
	}
	if len(rows) == 0 {
		return nil
	}
	var chunks [][]model.Row
	for i := 0; i < len(rows); i += n {
		end := i + n
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[i:end])
	}
	return chunks
}

func chunkKeys(keys []model.RowKey, n int) [][]model.RowKey {
	if n <= 0 {
		n = len(keys)
	}
	if len(keys) == 0 {
		return nil
	}
	var chunks [][]model.RowKey
	for i := 0; i < len(keys); i += n {
		end := i + n
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[i:end])
	}
	return chunks
}

func unionCols(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, c := range a {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range b {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
