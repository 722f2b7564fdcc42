package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Dispatcher runs best-effort side effects off the request path. Tasks get a
// context detached from the caller's cancellation with their own timeout.
// When the pool is saturated the task is dropped and logged.
type Dispatcher struct {
	logger  *slog.Logger
	sem     *semaphore.Weighted
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(logger *slog.Logger, concurrency int, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		logger:  logger,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		timeout: timeout,
	}
}

func (d *Dispatcher) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if !d.sem.TryAcquire(1) {
		d.logger.WarnContext(ctx, "side effect dropped", "task", name, "reason", "pool_saturated")
		return
	}
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)
		defer cancel()
		if err := fn(taskCtx); err != nil {
			d.logger.WarnContext(taskCtx, "side effect failed", "task", name, "error", err)
		}
	}()
}

// Wait blocks until every dispatched task has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
