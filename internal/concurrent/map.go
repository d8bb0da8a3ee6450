// Package concurrent provides a bounded-fanout map helper for
// independent work items, grounded on sqldef's
// database.ConcurrentMapFuncWithError (database/concurrent.go). It is
// deliberately not used anywhere on a table's write path — spec.md §5
// requires the staging/upsert/delete/history sequence to stay strictly
// serial; this helper is for read-only, order-independent fanout such as
// inspect's two independent connection opens.
package concurrent

import (
	"cmp"
	"slices"

	"golang.org/x/sync/errgroup"
)

type orderedOutput[T any] struct {
	order  int
	output T
}

// MapWithError applies f to every element of inputs with at most
// concurrency goroutines in flight (0 disables concurrency entirely; a
// negative value means unlimited), returning results in input order or
// the first error encountered.
func MapWithError[In, Out any](inputs []In, concurrency int, f func(In) (Out, error)) ([]Out, error) {
	eg := errgroup.Group{}
	switch {
	case concurrency == 0:
		eg.SetLimit(1)
	case concurrency > 0:
		eg.SetLimit(concurrency)
	}

	results := make([]orderedOutput[Out], len(inputs))
	for i := range inputs {
		i := i
		in := inputs[i]
		eg.Go(func() error {
			out, err := f(in)
			if err != nil {
				return err
			}
			results[i] = orderedOutput[Out]{order: i, output: out}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b orderedOutput[Out]) int {
		return cmp.Compare(a.order, b.order)
	})

	outputs := make([]Out, len(results))
	for i, r := range results {
		outputs[i] = r.output
	}
	return outputs, nil
}
