package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"telemetry-dashboard/pkg/logger"
)

var (
	// ErrPoolClosed is returned when submitting to a closed pool
	ErrPoolClosed = errors.New("task pool is closed")
	// ErrTaskTimeout is returned when a task exceeds the pool's task timeout
	ErrTaskTimeout = errors.New("task timed out")
	// ErrTaskPanic wraps a panic recovered from a task
	ErrTaskPanic = errors.New("task panicked")
)

// Task outcomes reported to the observer.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
	OutcomePanic     = "panic"
)

// Task receives its own context and a pool-unique id
type Task func(ctx context.Context, taskID uint64)

// TaskPool runs tasks on a fixed set of workers
type TaskPool struct {
	logger         logger.Logger
	maxConcurrency int
	taskTimeout    time.Duration
	tasks          chan Task
	wg             sync.WaitGroup
	mu             sync.Mutex
	closed         bool
	taskID         uint64
	observe        func(outcome string)
}

// NewTaskPool creates a pool. A zero taskTimeout disables the per-task deadline.
func NewTaskPool(maxConcurrency int, taskTimeout time.Duration, logger logger.Logger) *TaskPool {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	pool := &TaskPool{
		maxConcurrency: maxConcurrency,
		taskTimeout:    taskTimeout,
		tasks:          make(chan Task, maxConcurrency*2),
		logger:         logger,
		observe:        func(string) {},
	}

	pool.startWorkers()
	return pool
}

// SetObserver registers a callback invoked once per Execute outcome.
func (p *TaskPool) SetObserver(fn func(outcome string)) {
	if fn != nil {
		p.observe = fn
	}
}

func (p *TaskPool) startWorkers() {
	for i := 0; i < p.maxConcurrency; i++ {
		go func(workerID int) {
			p.logger.Debug("worker %d started", workerID)
			for task := range p.tasks {
				taskID := atomic.AddUint64(&p.taskID, 1)
				p.logger.Debug("worker %d starting task %d", workerID, taskID)
				task(context.Background(), taskID)
				p.logger.Debug("worker %d finished task %d", workerID, taskID)
				p.wg.Done()
			}
			p.logger.Debug("worker %d exited", workerID)
		}(i)
	}
}

// Submit queues a task. The task is skipped if ctx is done before it starts.
func (p *TaskPool) Submit(ctx context.Context, task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	wrappedTask := func(_ context.Context, taskID uint64) {
		select {
		case <-ctx.Done():
			p.logger.Debug("task %d cancelled before execution: %v", taskID, ctx.Err())
			return
		default:
			task(ctx, taskID)
		}
	}

	p.wg.Add(1)
	select {
	case p.tasks <- wrappedTask:
		return nil
	case <-ctx.Done():
		p.wg.Done()
		return ctx.Err()
	}
}

// Wait blocks until every submitted task has finished
func (p *TaskPool) Wait() {
	p.wg.Wait()
}

// Close stops accepting tasks; queued tasks still run
func (p *TaskPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		close(p.tasks)
		p.closed = true
		p.logger.Info("task pool closed, total tasks processed: %d", atomic.LoadUint64(&p.taskID))
	}
}

type result[T any] struct {
	value T
	err   error
}

// Execute runs fn on the pool and waits for its result. The task context is
// bounded by the pool task timeout; a task still running at the deadline is
// rejected with ErrTaskTimeout and its eventual result discarded.
func Execute[T any](ctx context.Context, p *TaskPool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	taskCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.taskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, p.taskTimeout)
	}
	defer cancel()

	done := make(chan result[T], 1)
	err := p.Submit(taskCtx, func(ctx context.Context, taskID uint64) {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("task %d panicked: %v", taskID, r)
				done <- result[T]{err: fmt.Errorf("%w: task %d: %v", ErrTaskPanic, taskID, r)}
			}
		}()
		v, err := fn(ctx)
		done <- result[T]{value: v, err: err}
	})
	if err != nil {
		p.observe(OutcomeCancelled)
		return zero, err
	}

	select {
	case r := <-done:
		switch {
		case r.err == nil:
			p.observe(OutcomeOK)
		case errors.Is(r.err, ErrTaskPanic):
			p.observe(OutcomePanic)
		case errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil:
			p.observe(OutcomeTimeout)
			return zero, ErrTaskTimeout
		default:
			p.observe(OutcomeError)
		}
		return r.value, r.err
	case <-taskCtx.Done():
		if ctx.Err() != nil {
			p.observe(OutcomeCancelled)
			return zero, ctx.Err()
		}
		p.observe(OutcomeTimeout)
		return zero, ErrTaskTimeout
	}
}
