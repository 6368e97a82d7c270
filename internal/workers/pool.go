// Package workers bounds how many inference or synthesis calls run at once.
// A local model on one GPU serves a single request at a time, so the
// server default is one worker.
package workers

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Do after Close.
var ErrClosed = errors.New("worker pool closed")

type Pool struct {
	size   int64
	sem    *semaphore.Weighted
	closed chan struct{}
}

// New returns a pool that runs at most size functions concurrently.
// Sizes below one are treated as one.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		size:   int64(size),
		sem:    semaphore.NewWeighted(int64(size)),
		closed: make(chan struct{}),
	}
}

// Size reports the concurrency limit.
func (p *Pool) Size() int { return int(p.size) }

// Do waits for a free slot and runs fn in the caller's goroutine.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// Close makes further Do calls fail and waits for the running ones.
func (p *Pool) Close(ctx context.Context) error {
	select {
	case <-p.closed:
		return nil
	default:
		close(p.closed)
	}
	if err := p.sem.Acquire(ctx, p.size); err != nil {
		return err
	}
	p.sem.Release(p.size)
	return nil
}

// Each runs fn for every item with at most limit in flight and returns the
// first error. Remaining items are skipped once the context is cancelled.
func Each[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, it := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, it)
		})
	}
	return g.Wait()
}
