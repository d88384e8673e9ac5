package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds per-record I/O when no worker count is configured.
const DefaultWorkers = 4

// Map applies fn to every item with at most workers calls in flight and
// returns the results in input order. The first error cancels the
// remaining calls and is returned.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// CallWithTimeout runs fn with a deadline. An fn that ignores its context
// is abandoned when the deadline passes and ErrTimeout is returned.
func CallWithTimeout[R any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (R, error)) (R, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   R
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	var zero R
	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() != nil {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
		}
		return res.v, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, d)
		}
		return zero, ctx.Err()
	}
}

// poolSize returns the worker count, halved for rendering-heavy endpoints.
func poolSize(configured int, heavy bool) int {
	n := configured
	if n < 1 {
		n = DefaultWorkers
	}
	if heavy {
		n /= 2
	}
	return max(n, 1)
}
