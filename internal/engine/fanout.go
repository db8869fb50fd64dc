package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type result[R any] struct {
	Value R
	Err   error
}

// fanOut calls fetch once per input with at most limit calls in flight and
// returns results in input order. A failing input never cancels the others;
// callers decide what to omit, and must check ctx themselves since an
// expired deadline shows up here as a failure of every pending input. Aggregation uses it at both depths of the
// tree: main task to sub-task logs, and project to main task timelines.
func fanOut[T, R any](ctx context.Context, limit int, inputs []T, fetch func(context.Context, T) (R, error)) []result[R] {
	results := make([]result[R], len(inputs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, in := range inputs {
		i, in := i, in // per-iteration copies; go.mod targets go 1.21
		g.Go(func() error {
			v, err := fetch(ctx, in)
			results[i] = result[R]{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
