package checksvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markstefanovic/poa/internal/model"
)

type stubDs struct {
	rows     []model.Row
	rowCount int
}

func (s *stubDs) TableExists(ctx context.Context) (bool, error)     { return true, nil }
func (s *stubDs) GetTable(ctx context.Context) (model.Table, error) { return model.Table{}, nil }
func (s *stubDs) GetRowCount(ctx context.Context) (int, error)      { return s.rowCount, nil }
func (s *stubDs) Create(ctx context.Context) error                  { return nil }
func (s *stubDs) DropTable(ctx context.Context) error               { return nil }
func (s *stubDs) Truncate(ctx context.Context) error                { return nil }
func (s *stubDs) CreateStagingTable(ctx context.Context) error      { return nil }
func (s *stubDs) CreateHistoryTable(ctx context.Context) error      { return nil }
func (s *stubDs) AddIncreasingColIndices(ctx context.Context, cols []string) error {
	return nil
}
func (s *stubDs) GetMaxValues(ctx context.Context, cols []string) (map[string]any, error) {
	return nil, nil
}
func (s *stubDs) FetchRows(ctx context.Context, colNames []string, after map[string]any) ([]model.Row, error) {
	return s.rows, nil
}
func (s *stubDs) FetchRowsByKey(ctx context.Context, colNames []string, keys []model.RowKey) ([]model.Row, error) {
	return nil, nil
}
func (s *stubDs) AddRowsToStaging(ctx context.Context, rows []model.Row) error      { return nil }
func (s *stubDs) UpsertRowsFromStaging(ctx context.Context, rows []model.Row) error { return nil }
func (s *stubDs) DeleteRows(ctx context.Context, keys []model.RowKey) error         { return nil }
func (s *stubDs) UpdateHistoryTable(ctx context.Context) error                      { return nil }
func (s *stubDs) AddCheckResult(ctx context.Context, result model.CheckResult) error {
	return nil
}

func TestRun_FindsExtraAndMissingKeys(t *testing.T) {
	src := &stubDs{rowCount: 2, rows: []model.Row{
		{"id": int64(1)}, {"id": int64(2)},
	}}
	dst := &stubDs{rowCount: 2, rows: []model.Row{
		{"id": int64(2)}, {"id": int64(3)},
	}}

	result, err := New().Run(context.Background(), src, dst, []string{"id"}, Identity{
		SrcTableName: "widgets", DstTableName: "widgets",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.SrcRows)
	assert.Equal(t, 2, result.DstRows)
	require.Len(t, result.MissingKeys, 1)
	assert.Equal(t, int64(1), result.MissingKeys[0].Values()["id"])
	require.Len(t, result.ExtraKeys, 1)
	assert.Equal(t, int64(3), result.ExtraKeys[0].Values()["id"])
}

func TestRun_NoDiscrepanciesWhenKeysMatch(t *testing.T) {
	rows := []model.Row{{"id": int64(1)}, {"id": int64(2)}}
	src := &stubDs{rowCount: 2, rows: rows}
	dst := &stubDs{rowCount: 2, rows: append([]model.Row(nil), rows...)}

	result, err := New().Run(context.Background(), src, dst, []string{"id"}, Identity{})

	require.NoError(t, err)
	assert.Empty(t, result.ExtraKeys)
	assert.Empty(t, result.MissingKeys)
}
