// Package engine implements the small, fixed-size task engine every chain
// schedules its suspension-point work on: appends, flushes, syncs, and
// commits all run as submitted tasks rather than directly on the caller's
// goroutine, so a context cancellation at a suspension point can be
// observed without tearing down the chain. CPU-bound work (serialization,
// crypto) still runs inline on whichever goroutine calls Do, matching the
// "CPU-bound serialization/crypto runs on the calling task" scheduling
// rule; only the blocking disk and dispatch step is handed to the pool.
//
// Adapted from this codebase's original job-queue worker pool: the same
// fixed worker count and Start/Stop shape, generalized from named queues
// pulling typed jobs to a single shared channel of plain closures.
package engine

import (
	"context"
	"fmt"
	"sync"
)

// Task is one unit of work submitted to a Pool.
type Task func(ctx context.Context)

// Config sizes a Pool.
type Config struct {
	// Workers is the number of goroutines draining the task channel.
	Workers int
	// QueueDepth bounds how many pending tasks may wait for a free worker
	// before Submit/Do blocks.
	QueueDepth int
}

// DefaultConfig returns a small pool suitable for a single chain: enough
// workers to let one slow suspension point not stall every other chain
// operation, without defaulting to unbounded concurrency.
func DefaultConfig() Config {
	return Config{Workers: 4, QueueDepth: 64}
}

// Pool is a fixed-size pool of goroutines executing submitted Tasks.
type Pool struct {
	tasks    chan Task
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewPool starts cfg.Workers goroutines draining a shared task channel.
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = cfg.Workers
	}
	p := &Pool{
		tasks:    make(chan Task, cfg.QueueDepth),
		stopChan: make(chan struct{}),
	}
	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			task(context.Background())
		}
	}
}

// Submit enqueues task for execution on the next free worker, without
// waiting for it to run or complete.
func (p *Pool) Submit(task Task) {
	select {
	case p.tasks <- task:
	case <-p.stopChan:
	}
}

// Do runs task on the pool and blocks until it completes, ctx is
// cancelled, or the pool is stopped, whichever comes first. A cancellation
// observed here is exactly the "cancellable at the next suspension point"
// contract: the caller sees ctx.Err() but the task itself, once dequeued,
// always runs to completion in the background rather than being torn down
// mid-write.
func (p *Pool) Do(ctx context.Context, task func(ctx context.Context) error) error {
	done := make(chan error, 1)
	job := func(taskCtx context.Context) {
		done <- task(taskCtx)
	}
	select {
	case p.tasks <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopChan:
		return fmt.Errorf("engine: pool is stopped")
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopChan:
		return fmt.Errorf("engine: pool is stopped")
	}
}

// Stop halts every worker once its current task finishes and waits for
// them to exit. Idempotent.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
}
