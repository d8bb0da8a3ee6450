package syncengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markstefanovic/poa/internal/model"
)

// fakeSrcDs and fakeDstDs are in-memory stand-ins for model.SrcDs/DstDs,
// letting the sync engine's branching logic be exercised without a real
// PostgreSQL/ODBC connection, in the spirit of sqldef's table-driven
// database_test.go fixtures but hand-rolled rather than mocked.

type fakeSrcDs struct {
	table    model.Table
	rows     []model.Row
	rowCount int
}

func (f *fakeSrcDs) TableExists(ctx context.Context) (bool, error) { return true, nil }
func (f *fakeSrcDs) GetTable(ctx context.Context) (model.Table, error) {
	return f.table, nil
}
func (f *fakeSrcDs) GetRowCount(ctx context.Context) (int, error) { return f.rowCount, nil }
func (f *fakeSrcDs) FetchRows(ctx context.Context, colNames []string, after map[string]any) ([]model.Row, error) {
	if len(colNames) == 0 {
		return f.rows, nil
	}
	out := make([]model.Row, len(f.rows))
	for i, r := range f.rows {
		out[i] = r.Project(colNames)
	}
	return out, nil
}
func (f *fakeSrcDs) FetchRowsByKey(ctx context.Context, colNames []string, keys []model.RowKey) ([]model.Row, error) {
	byHash := make(map[string]model.Row, len(f.rows))
	for _, r := range f.rows {
		k := model.NewRowKey(r, f.table.PK)
		byHash[k.Hash()] = r
	}
	var out []model.Row
	for _, k := range keys {
		if row, ok := byHash[k.Hash()]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeDstDs struct {
	table        model.Table
	rows         []model.Row
	exists       bool
	truncated    bool
	staged       []model.Row
	deletedKeys  []model.RowKey
	maxValues    map[string]any
	createCalled bool
}

func (f *fakeDstDs) TableExists(ctx context.Context) (bool, error) { return f.exists, nil }
func (f *fakeDstDs) Create(ctx context.Context) error {
	f.createCalled = true
	f.exists = true
	return nil
}
func (f *fakeDstDs) DropTable(ctx context.Context) error          { f.exists = false; f.rows = nil; return nil }
func (f *fakeDstDs) Truncate(ctx context.Context) error           { f.truncated = true; f.rows = nil; return nil }
func (f *fakeDstDs) CreateStagingTable(ctx context.Context) error { return nil }
func (f *fakeDstDs) CreateHistoryTable(ctx context.Context) error { return nil }
func (f *fakeDstDs) AddIncreasingColIndices(ctx context.Context, cols []string) error {
	return nil
}
func (f *fakeDstDs) GetMaxValues(ctx context.Context, cols []string) (map[string]any, error) {
	return f.maxValues, nil
}
func (f *fakeDstDs) GetRowCount(ctx context.Context) (int, error) { return len(f.rows), nil }
func (f *fakeDstDs) FetchRows(ctx context.Context, colNames []string, after map[string]any) ([]model.Row, error) {
	if len(colNames) == 0 {
		return f.rows, nil
	}
	out := make([]model.Row, len(f.rows))
	for i, r := range f.rows {
		out[i] = r.Project(colNames)
	}
	return out, nil
}
func (f *fakeDstDs) AddRowsToStaging(ctx context.Context, rows []model.Row) error {
	f.staged = append(f.staged, rows...)
	return nil
}
func (f *fakeDstDs) UpsertRowsFromStaging(ctx context.Context, rows []model.Row) error {
	byHash := make(map[string]int, len(f.rows))
	for i, r := range f.rows {
		byHash[model.NewRowKey(r, f.table.PK).Hash()] = i
	}
	for _, r := range rows {
		h := model.NewRowKey(r, f.table.PK).Hash()
		if i, ok := byHash[h]; ok {
			f.rows[i] = r
		} else {
			f.rows = append(f.rows, r)
		}
	}
	return nil
}
func (f *fakeDstDs) DeleteRows(ctx context.Context, keys []model.RowKey) error {
	f.deletedKeys = append(f.deletedKeys, keys...)
	toDelete := make(map[string]bool, len(keys))
	for _, k := range keys {
		toDelete[k.Hash()] = true
	}
	var kept []model.Row
	for _, r := range f.rows {
		if !toDelete[model.NewRowKey(r, f.table.PK).Hash()] {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return nil
}
func (f *fakeDstDs) UpdateHistoryTable(ctx context.Context) error { return nil }
func (f *fakeDstDs) AddCheckResult(ctx context.Context, result model.CheckResult) error {
	return nil
}

func mustTable(t *testing.T, pk []string, cols ...model.Column) model.Table {
	t.Helper()
	table, err := model.NewTable("srcdb", "", "widgets", pk, cols)
	require.NoError(t, err)
	return table
}

func intCol(t *testing.T, name string, nullable bool) model.Column {
	t.Helper()
	c, err := model.NewColumn(name, model.Int, nullable, nil, nil, nil)
	require.NoError(t, err)
	return c
}

func TestFullRefresh_ReplacesDestination(t *testing.T) {
	id, val := intCol(t, "id", false), intCol(t, "val", false)
	table := mustTable(t, []string{"id"}, id, val)

	src := &fakeSrcDs{table: table, rows: []model.Row{
		{"id": int64(1), "val": int64(10)},
		{"id": int64(2), "val": int64(20)},
	}}
	dst := &fakeDstDs{table: table, exists: true, rows: []model.Row{
		{"id": int64(9), "val": int64(90)},
	}}

	result := New(nil).Run(context.Background(), src, dst, Options{Incremental: false, BatchSize: 10})

	require.Equal(t, model.SyncSucceeded, result.Status)
	assert.Equal(t, 2, result.RowsAdded)
	assert.True(t, dst.truncated)
	assert.Len(t, dst.rows, 2)
}

func TestRun_CreatesTableWhenMissing(t *testing.T) {
	id := intCol(t, "id", false)
	table := mustTable(t, []string{"id"}, id)

	src := &fakeSrcDs{table: table, rows: []model.Row{{"id": int64(1)}}}
	dst := &fakeDstDs{table: table, exists: false}

	result := New(nil).Run(context.Background(), src, dst, Options{Incremental: true, IncreasingCols: []string{"id"}, BatchSize: 10})

	require.Equal(t, model.SyncSucceeded, result.Status)
	assert.True(t, dst.createCalled)
}

func TestSkipByCount_SkipsWhenCountsMatch(t *testing.T) {
	id := intCol(t, "id", false)
	table := mustTable(t, []string{"id"}, id)

	src := &fakeSrcDs{table: table, rowCount: 3}
	dst := &fakeDstDs{table: table, exists: true, rows: []model.Row{
		{"id": int64(1)}, {"id": int64(2)}, {"id": int64(3)},
	}}

	result := New(nil).Run(context.Background(), src, dst, Options{
		Incremental: true, SkipIfRowCountsMatch: true, IncreasingCols: []string{"id"}, BatchSize: 10,
	})

	require.Equal(t, model.SyncSkipped, result.Status)
	assert.Equal(t, "row counts match", result.SkipReason)
}

func TestIncrementalFromLast_AddsAndUpdatesOnly(t *testing.T) {
	id, ts := intCol(t, "id", false), intCol(t, "ts", false)
	table := mustTable(t, []string{"id"}, id, ts)

	src := &fakeSrcDs{table: table, rows: []model.Row{
		{"id": int64(1), "ts": int64(5)},
		{"id": int64(2), "ts": int64(6)},
	}}
	dst := &fakeDstDs{table: table, exists: true, rows: []model.Row{
		{"id": int64(1), "ts": int64(1)},
	}, maxValues: nil}

	result := New(nil).Run(context.Background(), src, dst, Options{
		Incremental: true, IncreasingCols: []string{"ts"}, BatchSize: 10,
	})

	require.Equal(t, model.SyncSucceeded, result.Status)
	assert.Equal(t, 1, result.RowsAdded)
	assert.Equal(t, 1, result.RowsUpdated)
	assert.Equal(t, 0, result.RowsDeleted)
}

func TestIncrementalCompare_SkipsWhenIdentical(t *testing.T) {
	id, val := intCol(t, "id", false), intCol(t, "val", false)
	table := mustTable(t, []string{"id"}, id, val)

	rows := []model.Row{{"id": int64(1), "val": int64(10)}}
	src := &fakeSrcDs{table: table, rows: rows, rowCount: 1}
	dst := &fakeDstDs{table: table, exists: true, rows: append([]model.Row(nil), rows...)}

	result := New(nil).Run(context.Background(), src, dst, Options{
		Incremental: true, CompareCols: []string{"val"}, BatchSize: 10,
	})

	require.Equal(t, model.SyncSkipped, result.Status)
	assert.Equal(t, "identical", result.SkipReason)
}

func TestIncrementalCompare_SkipsWhenSourceEmpty(t *testing.T) {
	id, val := intCol(t, "id", false), intCol(t, "val", false)
	table := mustTable(t, []string{"id"}, id, val)

	src := &fakeSrcDs{table: table, rows: nil}
	dst := &fakeDstDs{table: table, exists: true}

	result := New(nil).Run(context.Background(), src, dst, Options{
		Incremental: true, CompareCols: []string{"val"}, BatchSize: 10,
	})

	require.Equal(t, model.SyncSkipped, result.Status)
	assert.Equal(t, "source empty", result.SkipReason)
}

func TestIncrementalCompare_DeletesRowsMissingFromSource(t *testing.T) {
	id, val := intCol(t, "id", false), intCol(t, "val", false)
	table := mustTable(t, []string{"id"}, id, val)

	src := &fakeSrcDs{table: table, rows: []model.Row{
		{"id": int64(1), "val": int64(10)},
	}, rowCount: 1}
	dst := &fakeDstDs{table: table, exists: true, rows: []model.Row{
		{"id": int64(1), "val": int64(10)},
		{"id": int64(2), "val": int64(20)},
	}}

	result := New(nil).Run(context.Background(), src, dst, Options{
		Incremental: true, CompareCols: []string{"val"}, BatchSize: 10,
	})

	require.Equal(t, model.SyncSucceeded, result.Status)
	assert.Equal(t, 1, result.RowsDeleted)
	assert.Len(t, dst.rows, 1)
}

func TestIncrementalCompare_LargeDeltaFallsBackToFullFetch(t *testing.T) {
	id, val := intCol(t, "id", false), intCol(t, "val", false)
	table := mustTable(t, []string{"id"}, id, val)

	// 3 of 4 source rows differ from destination -> 75% > 50% threshold.
	src := &fakeSrcDs{table: table, rows: []model.Row{
		{"id": int64(1), "val": int64(100)},
		{"id": int64(2), "val": int64(200)},
		{"id": int64(3), "val": int64(300)},
		{"id": int64(4), "val": int64(400)},
	}, rowCount: 4}
	dst := &fakeDstDs{table: table, exists: true, rows: []model.Row{
		{"id": int64(1), "val": int64(1)},
		{"id": int64(2), "val": int64(2)},
		{"id": int64(3), "val": int64(3)},
		{"id": int64(4), "val": int64(400)},
	}}

	result := New(nil).Run(context.Background(), src, dst, Options{
		Incremental: true, CompareCols: []string{"val"}, BatchSize: 10,
	})

	require.Equal(t, model.SyncSucceeded, result.Status)
	assert.Equal(t, 3, result.RowsUpdated)
	for _, r := range dst.rows {
		if r["id"] == int64(1) {
			assert.Equal(t, int64(100), r["val"])
		}
	}
}

func TestRecreate_DropsAndRecreatesBeforeFullRefresh(t *testing.T) {
	id := intCol(t, "id", false)
	table := mustTable(t, []string{"id"}, id)

	src := &fakeSrcDs{table: table, rows: []model.Row{{"id": int64(1)}}}
	dst := &fakeDstDs{table: table, exists: true, rows: []model.Row{{"id": int64(99)}}}

	result := New(nil).Run(context.Background(), src, dst, Options{Incremental: true, Recreate: true, BatchSize: 10})

	require.Equal(t, model.SyncSucceeded, result.Status)
	assert.True(t, dst.createCalled)
	assert.Len(t, dst.rows, 1)
	assert.Equal(t, int64(1), dst.rows[0]["id"])
}

func TestRun_RejectsNonPositiveBatchSize(t *testing.T) {
	id := intCol(t, "id", false)
	table := mustTable(t, []string{"id"}, id)

	src := &fakeSrcDs{table: table}
	dst := &fakeDstDs{table: table, exists: true}

	result := New(nil).Run(context.Background(), src, dst, Options{BatchSize: 0})

	require.Equal(t, model.SyncFailed, result.Status)
}
