// Package diffengine implements the row-diff algorithm (spec.md §4.1):
// given two row sets and a key-column set, partition them into added,
// updated, and deleted rows keyed by primary key.
package diffengine

import (
	"github.com/markstefanovic/poa/internal/model"
	"github.com/markstefanovic/poa/internal/poaerr"
)

// Diff builds a RowDiff from srcRows and dstRows, indexed by keyCols.
//
// A key that repeats within one side is a hard error (DuplicateKey): the
// engine cannot tell which of the colliding rows is authoritative.
//
// Columns compared for "has this row changed" are exactly the
// intersection of the two rows' column names — callers in incremental
// compare mode pre-project both sides to the same "minimum compare"
// column set before calling Diff.
func Diff(srcRows, dstRows []model.Row, keyCols []string) (model.RowDiff, error) {
	srcIndex, err := indexByKey(srcRows, keyCols)
	if err != nil {
		return model.RowDiff{}, err
	}
	dstIndex, err := indexByKey(dstRows, keyCols)
	if err != nil {
		return model.RowDiff{}, err
	}

	diff := model.NewRowDiff()

	for hash, entry := range srcIndex {
		dstEntry, ok := dstIndex[hash]
		diff.Keys[hash] = entry.key
		if !ok {
			diff.Added[hash] = entry.row
			continue
		}
		compareCols := intersectColumns(entry.row, dstEntry.row)
		if !entry.row.Equal(dstEntry.row, compareCols) {
			diff.Updated[hash] = model.UpdatedRow{Src: entry.row, Dst: dstEntry.row}
		}
	}

	for hash, entry := range dstIndex {
		if _, ok := srcIndex[hash]; !ok {
			diff.Deleted[hash] = entry.row
			diff.Keys[hash] = entry.key
		}
	}

	return diff, nil
}

type keyedRow struct {
	key model.RowKey
	row model.Row
}

func indexByKey(rows []model.Row, keyCols []string) (map[string]keyedRow, error) {
	index := make(map[string]keyedRow, len(rows))
	for _, row := range rows {
		key := model.NewRowKey(row, keyCols)
		hash := key.Hash()
		if _, dup := index[hash]; dup {
			return nil, poaerr.New(
				poaerr.KindDuplicateKey,
				"duplicate key encountered while indexing rows for diffing",
				map[string]any{"key": key.Values()},
			)
		}
		index[hash] = keyedRow{key: key, row: row}
	}
	return index, nil
}

// intersectColumns returns the column names present in both rows.
func intersectColumns(a, b model.Row) []string {
	out := make([]string, 0, len(a))
	for c := range a {
		if _, ok := b[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
