package diffengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markstefanovic/poa/internal/diffengine"
	"github.com/markstefanovic/poa/internal/model"
	"github.com/markstefanovic/poa/internal/poaerr"
)

func TestDiff_AddedUpdatedDeleted(t *testing.T) {
	src := []model.Row{
		{"customer_id": int64(1), "first_name": "Steve"},
		{"customer_id": int64(2), "first_name": "Mandie"},
	}
	dst := []model.Row{
		{"customer_id": int64(1), "first_name": "Steve-old"},
		{"customer_id": int64(3), "first_name": "Ghost"},
	}

	d, err := diffengine.Diff(src, dst, []string{"customer_id"})
	require.NoError(t, err)

	assert.Len(t, d.Added, 1)
	assert.Len(t, d.Updated, 1)
	assert.Len(t, d.Deleted, 1)

	for _, row := range d.Added {
		assert.Equal(t, "Mandie", row["first_name"])
	}
	for _, up := range d.Updated {
		assert.Equal(t, "Steve", up.Src["first_name"])
		assert.Equal(t, "Steve-old", up.Dst["first_name"])
	}
	for _, row := range d.Deleted {
		assert.Equal(t, "Ghost", row["first_name"])
	}
}

func TestDiff_Identical(t *testing.T) {
	rows := []model.Row{
		{"id": int64(1), "name": "a"},
		{"id": int64(2), "name": "b"},
	}
	d, err := diffengine.Diff(rows, rows, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, 0, d.ChangedOrDeletedCount())
}

func TestDiff_NullEqualsNull(t *testing.T) {
	src := []model.Row{{"id": int64(1), "age": nil}}
	dst := []model.Row{{"id": int64(1), "age": nil}}
	d, err := diffengine.Diff(src, dst, []string{"id"})
	require.NoError(t, err)
	assert.Empty(t, d.Updated)
}

func TestDiff_DuplicateKeyIsHardError(t *testing.T) {
	rows := []model.Row{
		{"id": int64(1), "name": "a"},
		{"id": int64(1), "name": "b"},
	}
	_, err := diffengine.Diff(rows, nil, []string{"id"})
	require.Error(t, err)

	var pErr *poaerr.Error
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, poaerr.KindDuplicateKey, pErr.Kind)
}

func TestDiff_KeysArePairwiseDisjoint(t *testing.T) {
	src := []model.Row{
		{"id": int64(1), "name": "a"},
		{"id": int64(2), "name": "b"},
	}
	dst := []model.Row{
		{"id": int64(2), "name": "changed"},
		{"id": int64(3), "name": "c"},
	}
	d, err := diffengine.Diff(src, dst, []string{"id"})
	require.NoError(t, err)

	seen := map[string]bool{}
	for h := range d.Added {
		assert.False(t, seen[h])
		seen[h] = true
	}
	for h := range d.Updated {
		assert.False(t, seen[h])
		seen[h] = true
	}
	for h := range d.Deleted {
		assert.False(t, seen[h])
		seen[h] = true
	}
}

func TestDiff_IntersectionOnlyColumnsCompared(t *testing.T) {
	src := []model.Row{{"id": int64(1), "extra_src_only": "x"}}
	dst := []model.Row{{"id": int64(1), "extra_dst_only": "y"}}
	d, err := diffengine.Diff(src, dst, []string{"id"})
	require.NoError(t, err)
	assert.Empty(t, d.Updated, "columns outside the intersection must not trigger a diff")
}
