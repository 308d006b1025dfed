// Package asyncx holds the small concurrency helpers shared by the service
// and composition layers: fire-and-forget goroutines with context awareness
// and an order-preserving concurrent map.
package asyncx

import (
	"context"
	"sync"
)

// Do fires fn in a goroutine and forgets it.
func Do(fn func()) {
	go fn()
}

// DoCtx fires fn in a goroutine unless ctx is already done.
func DoCtx(ctx context.Context, fn func(context.Context)) {
	go func() {
		select {
		case <-ctx.Done():
			return
		default:
			fn(ctx)
		}
	}()
}

// Map applies fn to every item concurrently and returns the transformed slice
// in the original order. The first error wins, but every goroutine is awaited
// before returning.
func Map[T any, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	wg.Add(len(items))
	for i, item := range items {
		go func(i int, item T) {
			defer wg.Done()
			results[i], errs[i] = fn(ctx, item)
		}(i, item)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
