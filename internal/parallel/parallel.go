// Package parallel runs independent units of work with bounded parallelism
// and merges their results.
//
// [MapReduce] pulls items from a sequence in order, turns each into a [Task]
// with a caller-supplied selector, and runs at most degree tasks at a time on
// a worker pool. Results are collected in completion order.
//
// # Failure Semantics
//
// The first failing task wins: its error is returned wrapped in an
// [errors.BatchError], no further items are dispatched, and tasks that are
// already running are allowed to finish. Their results are discarded, but
// any side effects they had remain. Callers must therefore assume that any
// number of items took effect when MapReduce fails.
//
// The pool starts with degree idle workers, so the first degree items are
// always dispatched, even if one of them fails before the others are
// handed over. After that an item is dispatched only when a worker frees up
// and no failure has been recorded.
//
// A panic inside a task is recovered by the pool and re-raised from
// MapReduce once every running task has finished.
package parallel

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"github.com/iamnilay3/Shimmer/internal/errors"
	"github.com/iamnilay3/Shimmer/internal/logging"
)

// Task is a deferred unit of work. It does not run until a worker picks it up.
type Task[R any] func() (R, error)

// Option configures a single MapReduce or ForEach call.
type Option func(*options)

type options struct {
	logger *logging.Logger
}

// WithLogger logs dispatch decisions at DEBUG level.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// MapReduce applies selector to every item and runs the resulting tasks with
// at most degree running concurrently.
//
// On success it returns one result per item in completion order; an empty
// sequence yields an empty, non-nil slice. degree must be at least 1.
//
// ctx only gates dispatch: once it is done no further items are started, but
// running tasks are not interrupted and ctx is not passed into them. When
// dispatch is cut short by ctx, MapReduce returns ctx.Err() after the
// running tasks finish.
func MapReduce[T, R any](ctx context.Context, items iter.Seq[T], selector func(T) Task[R], degree int, opts ...Option) ([]R, error) {
	if degree < 1 {
		return nil, errors.NewValidationError("degree of parallelism must be at least 1").
			WithField("degree").
			WithValue(degree)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.OrNop(o.logger).WithComponent("parallel")

	var (
		mu      sync.Mutex
		results = make([]R, 0)
		failIdx = -1
		failErr error
		failed  atomic.Bool
		started int
		ctxErr  error
	)

	// One token per running unit. The first degree units find an idle
	// worker and always start; every later unit waits for a worker to free
	// up and starts only if no unit has failed by then.
	slots := make(chan struct{}, degree)

	p := pool.New().WithMaxGoroutines(degree)
	for item := range items {
		slots <- struct{}{}
		if ctxErr = ctx.Err(); ctxErr != nil || (started >= degree && failed.Load()) {
			<-slots
			break
		}

		idx := started
		started++
		task := selector(item)

		p.Go(func() {
			defer func() { <-slots }()

			r, err := task()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if failErr == nil {
					failIdx, failErr = idx, err
					failed.Store(true)
				}
				return
			}
			if failErr == nil {
				results = append(results, r)
			}
		})
	}
	p.Wait()

	if failErr != nil {
		logger.Debug("batch stopped on failure",
			"item", failIdx,
			"started", started,
			"error", failErr.Error(),
		)
		return nil, errors.NewBatchError(failIdx, started, failErr)
	}
	if ctxErr != nil {
		logger.Debug("batch dispatch cancelled", "started", started)
		return nil, ctxErr
	}
	return results, nil
}

// ForEach runs action for every item with bounded parallelism. It has the
// same dispatch and failure semantics as MapReduce.
func ForEach[T any](ctx context.Context, items iter.Seq[T], action func(T) error, degree int, opts ...Option) error {
	_, err := MapReduce(ctx, items, func(item T) Task[struct{}] {
		return func() (struct{}, error) {
			return struct{}{}, action(item)
		}
	}, degree, opts...)
	return err
}
