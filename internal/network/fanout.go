package network

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// fanOut runs fn for each index in [0, n) on at most workers goroutines.
// fn records its own result; failures never stop other indices.
//
// When ctx is done, fanOut returns ctx.Err() immediately. Calls already in
// flight run to completion in the background and their results must be
// ignored by the caller.
func fanOut(ctx context.Context, workers, n int, fn func(ctx context.Context, i int)) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(workers)
		for i := 0; i < n; i++ {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if ctx.Err() == nil {
					fn(ctx, i)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
