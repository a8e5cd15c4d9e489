package scraper

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type fetchResult[T any] struct {
	value T
	err   error
}

// fetchAll runs fetch for every input with at most limit in flight. Results
// are indexed like inputs so callers can fold them in input order.
func fetchAll[T any](ctx context.Context, limit int, inputs []string, fetch func(context.Context, string) (T, error)) []fetchResult[T] {
	results := make([]fetchResult[T], len(inputs))
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			v, err := fetch(ctx, in)
			results[i] = fetchResult[T]{value: v, err: err}
			return nil
		})
	}
	g.Wait()
	return results
}
