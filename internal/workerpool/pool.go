// Package workerpool runs a fixed number of goroutines against a job channel
// and drains their output through a single serializer, generalizing the
// jobs/results/sync.WaitGroup shape the fetch workers use, but parameterized
// over job and result types instead of being fetch-specific.
package workerpool

import (
	"context"
	"sync"
)

// Job is one unit of work submitted to the pool.
type Job[T any] struct {
	Index int
	Value T
}

// Result is what a worker produces for one Job.
type Result[T, R any] struct {
	Job Job[T]
	Out R
	Err error
}

// WorkFunc processes a single job. Implementations should check ctx and
// return promptly when it is done.
type WorkFunc[T, R any] func(ctx context.Context, job Job[T]) (R, error)

// Run starts n workers pulling from items, applies fn to each, and streams
// Result values to the returned channel in completion order (not submission
// order). The channel is closed once every item has been processed.
//
// Run does not block; callers range over the returned channel.
func Run[T, R any](ctx context.Context, n int, items []T, fn WorkFunc[T, R]) <-chan Result[T, R] {
	if n < 1 {
		n = 1
	}
	jobs := make(chan Job[T], len(items))
	results := make(chan Result[T, R], len(items))

	var wg sync.WaitGroup
	for w := 0; w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					results <- Result[T, R]{Job: job, Err: ctx.Err()}
					continue
				default:
				}
				out, err := fn(ctx, job)
				results <- Result[T, R]{Job: job, Out: out, Err: err}
			}
		}()
	}

	for i, v := range items {
		jobs <- Job[T]{Index: i, Value: v}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// Drain calls accept for every result in order of arrival and returns the
// first error accept reports; results after that error are still passed to
// accept. It is
// the single-consumer counterpart to Run: callers use it to feed a
// non-concurrency-safe batch writer (a DuckDB appender, a JSONL encoder)
// from a pool of concurrent producers without synchronizing the writer
// themselves.
func Drain[T, R any](results <-chan Result[T, R], accept func(Result[T, R]) error) error {
	var firstErr error
	for r := range results {
		if err := accept(r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
