// Package yield lets long computations hand the processor back at bounded
// intervals and observe cancellation while doing so.
package yield

import (
	"context"
	"runtime"
	"time"
)

// DefaultBudget is the slice of work allowed between yields.
const DefaultBudget = 10 * time.Millisecond

// Scheduler is the single adapter through which work is suspended.
type Scheduler interface {
	Yield()
}

type goroutineScheduler struct{}

func (goroutineScheduler) Yield() { runtime.Gosched() }

// Yielder tracks the time budget of one computation. It is not safe for
// concurrent use; each computation owns its own.
type Yielder struct {
	budget time.Duration
	sched  Scheduler
	now    func() time.Time
	start  time.Time
	yields int
}

// New returns a Yielder with the given budget backed by runtime.Gosched.
func New(budget time.Duration) *Yielder {
	return NewWithScheduler(budget, goroutineScheduler{})
}

func NewWithScheduler(budget time.Duration, sched Scheduler) *Yielder {
	if budget <= 0 {
		budget = DefaultBudget
	}
	y := &Yielder{budget: budget, sched: sched, now: time.Now}
	y.start = y.now()
	return y
}

// ShouldYield reports whether the current slice has used up its budget.
func (y *Yielder) ShouldYield() bool {
	return y.now().Sub(y.start) >= y.budget
}

// Checkpoint returns ctx's error if cancelled, otherwise yields when the
// budget is exhausted.
func (y *Yielder) Checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if y.ShouldYield() {
		y.sched.Yield()
		y.yields++
		y.start = y.now()
	}
	return ctx.Err()
}

// Every calls Checkpoint when i is a positive multiple of n.
func (y *Yielder) Every(ctx context.Context, i, n int) error {
	if n <= 0 || i == 0 || i%n != 0 {
		return nil
	}
	return y.Checkpoint(ctx)
}

// Yields returns how many times the computation was suspended.
func (y *Yielder) Yields() int {
	return y.yields
}
