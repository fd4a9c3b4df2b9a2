// Package fanout runs independent tasks concurrently and reports each task's
// outcome as an explicit Result, so one failure never hides its siblings.
package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helixir/paper-search-service/internal/domain"
)

// Result is the outcome of one task: either a Value or a classified Err.
type Result[T any] struct {
	Value T
	Err   error
	Kind  domain.ErrorKind
}

// OK reports whether the task succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Task is a unit of work run by All or Sequential.
type Task[T any] func(ctx context.Context) (T, error)

func newResult[T any](v T, err error) Result[T] {
	return Result[T]{Value: v, Err: err, Kind: domain.Classify(err)}
}

// run invokes task, converting a panic into an error result.
func run[T any](ctx context.Context, task Task[T]) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			res = newResult(zero, fmt.Errorf("task panicked: %v", r))
		}
	}()
	return newResult(task(ctx))
}

// All runs tasks concurrently with at most limit in flight (limit <= 0 means
// unbounded) and returns their results in task order. A failing task does not
// cancel the others.
func All[T any](ctx context.Context, limit int, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, task := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				var zero T
				results[i] = newResult(zero, err)
				return nil
			}
			results[i] = run(ctx, task)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Sequential runs tasks one at a time, pausing delay between consecutive
// tasks. Tasks not started because ctx ended report ctx's error.
func Sequential[T any](ctx context.Context, delay time.Duration, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	for i, task := range tasks {
		if i > 0 && delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			var zero T
			results[i] = newResult(zero, err)
			continue
		}
		results[i] = run(ctx, task)
	}
	return results
}

// Both runs two differently typed tasks concurrently and returns both results.
func Both[A, B any](ctx context.Context, a Task[A], b Task[B]) (Result[A], Result[B]) {
	var (
		ra Result[A]
		rb Result[B]
		wg sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ra = run(ctx, a)
	}()
	rb = run(ctx, b)
	wg.Wait()
	return ra, rb
}

// WithTimeout runs task with a deadline of d. If the task has not returned by
// then, WithTimeout returns domain.ErrTimeout without waiting for it; the
// task's context is canceled and its eventual result is discarded.
func WithTimeout[T any](ctx context.Context, d time.Duration, task Task[T]) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan Result[T], 1)
	go func() {
		done <- run(ctx, task)
	}()

	select {
	case res := <-done:
		return res.Value, res.Err
	case <-ctx.Done():
		var zero T
		if ctx.Err() == context.DeadlineExceeded {
			return zero, fmt.Errorf("%w after %s", domain.ErrTimeout, d)
		}
		return zero, ctx.Err()
	}
}

// Values returns the values of successful results, in order.
func Values[T any](results []Result[T]) []T {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.OK() {
			out = append(out, r.Value)
		}
	}
	return out
}

// Failures counts failed results.
func Failures[T any](results []Result[T]) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}
