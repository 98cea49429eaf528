package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool runs one task per block with a bounded number of
// concurrent goroutines. nthreads=1 runs every task inline on the
// calling goroutine, with no goroutines spawned.
//
// A WorkerPool is owned by a single schunk for its lifetime; it must
// not be shared across schunks and must not be used reentrantly by a
// filter/codec callback it is itself driving.
type WorkerPool struct {
	nthreads int
}

// NewWorkerPool creates a pool bounded to nthreads concurrent tasks.
// nthreads < 1 is treated as 1.
func NewWorkerPool(nthreads int) *WorkerPool {
	if nthreads < 1 {
		nthreads = 1
	}

	return &WorkerPool{nthreads: nthreads}
}

// NThreads returns the configured concurrency.
func (p *WorkerPool) NThreads() int {
	return p.nthreads
}

// Run dispatches one task per index in [0, n) and waits for all of
// them to finish. If any task returns an error, Run cancels the
// remaining tasks' context (already-started tasks still run to
// completion; their output is simply discarded by the caller) and
// returns the first error encountered.
//
// Task ordering is unspecified; callers must make each task write to a
// disjoint region of shared output.
func (p *WorkerPool) Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}

	if p.nthreads == 1 {
		for i := 0; i < n; i++ {
			if err := task(ctx, i); err != nil {
				return err
			}
		}

		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.nthreads)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return task(gctx, i)
		})
	}

	return g.Wait()
}
