package yield

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingScheduler struct{ n int }

func (c *countingScheduler) Yield() { c.n++ }

func TestYielder_Checkpoint(t *testing.T) {
	now := time.Unix(0, 0)
	sched := &countingScheduler{}
	y := NewWithScheduler(10*time.Millisecond, sched)
	y.now = func() time.Time { return now }
	y.start = now

	assert.NoError(t, y.Checkpoint(context.Background()))
	assert.Equal(t, 0, sched.n)

	now = now.Add(15 * time.Millisecond)
	assert.True(t, y.ShouldYield())
	assert.NoError(t, y.Checkpoint(context.Background()))
	assert.Equal(t, 1, sched.n)
	assert.False(t, y.ShouldYield())
	assert.Equal(t, 1, y.Yields())
}

func TestYielder_Every(t *testing.T) {
	now := time.Unix(0, 0)
	sched := &countingScheduler{}
	y := NewWithScheduler(time.Nanosecond, sched)
	y.now = func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}
	y.start = time.Unix(0, 0)
	for i := 0; i < 100; i++ {
		assert.NoError(t, y.Every(context.Background(), i, 25))
	}
	assert.Equal(t, 3, sched.n)
}

func TestYielder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	y := New(0)
	assert.ErrorIs(t, y.Checkpoint(ctx), context.Canceled)
}
