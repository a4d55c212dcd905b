package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a unit of fire-and-forget work.
type Task func(ctx context.Context) error

// TaskRunner runs tasks off the request path. Results are only logged.
type TaskRunner struct {
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewTaskRunner builds a runner. A zero timeout leaves tasks unbounded.
func NewTaskRunner(logger *zap.Logger, timeout time.Duration) *TaskRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskRunner{logger: logger, timeout: timeout}
}

// Go starts fn in its own goroutine. The task keeps the values of ctx but not its
// cancellation, so it outlives the request that scheduled it.
func (r *TaskRunner) Go(ctx context.Context, name string, fn Task) {
	taskCtx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("task panicked", zap.String("task", name), zap.Any("panic", rec))
			}
		}()

		var cancel context.CancelFunc = func() {}
		if r.timeout > 0 {
			taskCtx, cancel = context.WithTimeout(taskCtx, r.timeout)
		}
		defer cancel()

		start := time.Now()
		if err := fn(taskCtx); err != nil {
			r.logger.Warn("task failed", zap.String("task", name), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
			return
		}
		r.logger.Debug("task finished", zap.String("task", name), zap.Duration("elapsed", time.Since(start)))
	}()
}

// Wait blocks until every started task has returned or ctx is done.
func (r *TaskRunner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
