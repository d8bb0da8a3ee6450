// Package srcds holds helpers shared by every source-dialect adapter
// (internal/srcds/postgres, mssql, odbc, hh): the after-merge rule and
// the chunking helper for key-batch fetches. The adapters themselves
// live in dialect-specific subpackages so each can pull in its own
// driver-specific column introspection, mirroring how sqldef splits
// database/{mysql,postgres,mssql,sqlite3} into sibling packages around a
// shared database.Config/Database contract.
package srcds

import "time"

// MergeAfter implements spec.md §4.2's after-merge rule: per key, pick
// the later of the instance-level and call-level threshold when both are
// time.Time values. When only one of them is a time.Time, that one wins;
// when neither is, the instance-level value is kept unless it is nil.
// Keys whose merged value is nil are dropped. Other value types are not
// converted to time.Time.
func MergeAfter(instanceLevel, callLevel map[string]any) map[string]any {
	merged := make(map[string]any, len(instanceLevel)+len(callLevel))
	for k, v := range instanceLevel {
		merged[k] = v
	}
	for k, v := range callLevel {
		if existing, ok := merged[k]; ok {
			merged[k] = laterOf(existing, v)
		} else {
			merged[k] = v
		}
	}

	out := make(map[string]any, len(merged))
	for k, v := range merged {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

func laterOf(a, b any) any {
	at, aok := asTime(a)
	bt, bok := asTime(b)
	switch {
	case aok && bok:
		if at.After(bt) {
			return a
		}
		return b
	case aok:
		return a
	case bok:
		return b
	case a == nil:
		return b
	default:
		return a
	}
}

func asTime(v any) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}

// ChunkKeys splits keys into groups of at most n, used by dialects (HH)
// that can only express a key-batch fetch as IN (...) and must chunk to
// avoid unbounded parameter lists.
func ChunkKeys[T any](items []T, n int) [][]T {
	if n <= 0 {
		n = len(items)
		if n == 0 {
			return nil
		}
	}
	var chunks [][]T
	for i := 0; i < len(items); i += n {
		end := i + n
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
