package model

// UpdatedRow pairs the source and destination versions of a row whose
// content differs on at least one compared, non-key column.
type UpdatedRow struct {
	Src Row
	Dst Row
}

// RowDiff is the output of the row-diff engine (internal/diffengine):
// three partitions keyed by RowKey.Hash(), pairwise disjoint by
// construction. Keys carries every RowKey that appears in any partition,
// so callers can recover the original RowKey values from a hash without
// re-deriving them from a Row.
type RowDiff struct {
	Added   map[string]Row
	Updated map[string]UpdatedRow
	Deleted map[string]Row
	Keys    map[string]RowKey
}

// NewRowDiff returns an empty RowDiff with initialized maps.
func NewRowDiff() RowDiff {
	return RowDiff{
		Added:   map[string]Row{},
		Updated: map[string]UpdatedRow{},
		Deleted: map[string]Row{},
		Keys:    map[string]RowKey{},
	}
}

// AddedKeys returns the RowKeys present in Added, in no particular order.
func (d RowDiff) AddedKeys() []RowKey {
	out := make([]RowKey, 0, len(d.Added))
	for h := range d.Added {
		out = append(out, d.Keys[h])
	}
	return out
}

// UpdatedKeys returns the RowKeys present in Updated, in no particular order.
func (d RowDiff) UpdatedKeys() []RowKey {
	out := make([]RowKey, 0, len(d.Updated))
	for h := range d.Updated {
		out = append(out, d.Keys[h])
	}
	return out
}

// DeletedKeys returns the RowKeys present in Deleted, in no particular order.
func (d RowDiff) DeletedKeys() []RowKey {
	out := make([]RowKey, 0, len(d.Deleted))
	for h := range d.Deleted {
		out = append(out, d.Keys[h])
	}
	return out
}

// ChangedOrDeletedCount returns |added ∪ updated| + |deleted|, the
// numerator the incremental-compare large-delta heuristic divides by the
// source row count.
func (d RowDiff) ChangedOrDeletedCount() int {
	return len(d.Added) + len(d.Updated) + len(d.Deleted)
}
