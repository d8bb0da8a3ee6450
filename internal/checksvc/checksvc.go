// Package checksvc implements the check service (spec.md §4.7):
// reconcile row counts and primary-key sets between a source and
// destination table and return the outcome as a model.CheckResult, which
// the caller persists (cmd/poa's check subcommand via DstDs.AddCheckResult).
// Grounded on the original poa implementation's src/service/check.py.
package checksvc

import (
	"context"
	"time"

	"github.com/markstefanovic/poa/internal/model"
)

var nowFunc = time.Now

// Service runs the check algorithm against any model.SrcDs/model.DstDs
// pair and the table identities to stamp onto the result.
type Service struct{}

// New constructs a Service. It carries no state — every call is given
// the adapters and identities it needs.
func New() *Service {
	return &Service{}
}

// Identity names the six db/schema/table fields a CheckResult is
// stamped with.
type Identity struct {
	SrcDbName     string
	SrcSchemaName string
	SrcTableName  string
	DstDbName     string
	DstSchemaName string
	DstTableName  string
}

// Run reconciles src against dst using pk as the key-column set and
// returns the resulting model.CheckResult, with ExecutionMS measuring
// wall-clock time for the whole check.
func (s *Service) Run(ctx context.Context, src model.SrcDs, dst model.DstDs, pk []string, id Identity) (model.CheckResult, error) {
	start := nowFunc()

	srcCount, err := src.GetRowCount(ctx)
	if err != nil {
		return model.CheckResult{}, err
	}
	dstCount, err := dst.GetRowCount(ctx)
	if err != nil {
		return model.CheckResult{}, err
	}

	srcRows, err := src.FetchRows(ctx, pk, nil)
	if err != nil {
		return model.CheckResult{}, err
	}
	dstRows, err := dst.FetchRows(ctx, pk, nil)
	if err != nil {
		return model.CheckResult{}, err
	}

	srcKeys := keySet(srcRows, pk)
	dstKeys := keySet(dstRows, pk)

	extra := setDifference(dstKeys, srcKeys)   // present in dst, missing from src
	missing := setDifference(srcKeys, dstKeys) // present in src, missing from dst

	return model.CheckResult{
		SrcDbName:     id.SrcDbName,
		SrcSchemaName: id.SrcSchemaName,
		SrcTableName:  id.SrcTableName,
		DstDbName:     id.DstDbName,
		DstSchemaName: id.DstSchemaName,
		DstTableName:  id.DstTableName,
		SrcRows:       srcCount,
		DstRows:       dstCount,
		ExtraKeys:     extra,
		MissingKeys:   missing,
		ExecutionMS:   time.Since(start).Milliseconds(),
	}, nil
}

func keySet(rows []model.Row, pk []string) map[string]model.RowKey {
	out := make(map[string]model.RowKey, len(rows))
	for _, r := range rows {
		k := model.NewRowKey(r, pk)
		out[k.Hash()] = k
	}
	return out
}

func setDifference(a, b map[string]model.RowKey) []model.RowKey {
	var out []model.RowKey
	for h, k := range a {
		if _, ok := b[h]; !ok {
			out = append(out, k)
		}
	}
	return out
}
