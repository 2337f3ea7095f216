// Package workers runs bounded fan-out over external lookups.
package workers

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of work identified by its position in the input
type Task func(ctx context.Context, index int) error

// BatchPool executes tasks in fixed-size groups with a pause between groups.
// Every task runs to completion regardless of sibling failures; the returned
// slice carries one error (or nil) per index.
type BatchPool struct {
	batchSize int
	delay     time.Duration
}

// NewBatchPool creates a batch pool. A non-positive batchSize runs everything
// in a single group.
func NewBatchPool(batchSize int, delay time.Duration) *BatchPool {
	return &BatchPool{batchSize: batchSize, delay: delay}
}

// BatchSize returns the configured group size
func (p *BatchPool) BatchSize() int {
	return p.batchSize
}

// Run executes count tasks. Indexes never started because ctx was cancelled
// report ctx.Err().
func (p *BatchPool) Run(ctx context.Context, count int, task Task) []error {
	errs := make([]error, count)
	if count == 0 {
		return errs
	}

	size := p.batchSize
	if size <= 0 || size > count {
		size = count
	}

	for start := 0; start < count; start += size {
		end := start + size
		if end > count {
			end = count
		}

		if start > 0 && p.delay > 0 {
			if err := sleep(ctx, p.delay); err != nil {
				fillRemaining(errs, start, err)
				return errs
			}
		}
		if err := ctx.Err(); err != nil {
			fillRemaining(errs, start, err)
			return errs
		}

		var g errgroup.Group
		g.SetLimit(size)
		for i := start; i < end; i++ {
			index := i
			g.Go(func() error {
				errs[index] = runTask(ctx, task, index)
				return nil
			})
		}
		_ = g.Wait()
	}

	return errs
}

func runTask(ctx context.Context, task Task, index int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %d panicked: %v", index, r)
		}
	}()
	return task(ctx, index)
}

func fillRemaining(errs []error, from int, err error) {
	for i := from; i < len(errs); i++ {
		errs[i] = err
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FirstError returns the first non-nil error with its index, or -1
func FirstError(errs []error) (int, error) {
	for i, err := range errs {
		if err != nil {
			return i, err
		}
	}
	return -1, nil
}
