package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-dashboard/internal/ingest"
	"telemetry-dashboard/pkg/logger"
	"telemetry-dashboard/pkg/notify"
)

type fakePipeline struct {
	mu       sync.Mutex
	version  uint64
	refresh  int
	rebuilt  []uint64
	rebuildC chan uint64
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{rebuildC: make(chan uint64, 16)}
}

func (f *fakePipeline) Refresh(ctx context.Context) *ingest.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh++
	f.version++
	return &ingest.Snapshot{Version: f.version, Connected: true}
}

func (f *fakePipeline) Rebuild(ctx context.Context, snap *ingest.Snapshot) error {
	f.mu.Lock()
	f.rebuilt = append(f.rebuilt, snap.Version)
	f.mu.Unlock()
	select {
	case f.rebuildC <- snap.Version:
	default:
	}
	return nil
}

func (f *fakePipeline) refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refresh
}

func waitRebuild(t *testing.T, f *fakePipeline) uint64 {
	t.Helper()
	select {
	case v := <-f.rebuildC:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no rebuild within 2s")
		return 0
	}
}

func TestRefreshJob_TickerPollsAndRebuilds(t *testing.T) {
	f := newFakePipeline()
	j := NewRefreshJob(f, nil, logger.NewNopLogger(), 10*time.Millisecond)
	j.Start()
	defer j.Stop()

	assert.Equal(t, uint64(1), waitRebuild(t, f))
	assert.Equal(t, uint64(2), waitRebuild(t, f))
	assert.GreaterOrEqual(t, f.refreshes(), 2)
}

func TestRefreshJob_TriggerPollsImmediately(t *testing.T) {
	f := newFakePipeline()
	j := NewRefreshJob(f, nil, logger.NewNopLogger(), time.Hour)
	j.Start()
	defer j.Stop()

	j.Trigger()
	assert.Equal(t, uint64(1), waitRebuild(t, f))
	assert.Equal(t, 1, f.refreshes())
}

func TestRefreshJob_RebuildsOnPublishedSnapshot(t *testing.T) {
	f := newFakePipeline()
	bus := notify.NewBus[*ingest.Snapshot]()
	defer bus.Close()

	j := NewRefreshJob(f, bus, logger.NewNopLogger(), time.Hour)
	j.Start()
	defer j.Stop()

	// Subscription happens in Start; wait for it to be live.
	require.Eventually(t, func() bool {
		bus.Publish(&ingest.Snapshot{Version: 7})
		select {
		case v := <-f.rebuildC:
			assert.Equal(t, uint64(7), v)
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, f.refreshes())
}

func TestRefreshJob_StopEndsLoop(t *testing.T) {
	f := newFakePipeline()
	bus := notify.NewBus[*ingest.Snapshot]()
	j := NewRefreshJob(f, bus, logger.NewNopLogger(), time.Hour)
	j.Start()
	j.Stop()

	j.Trigger()
	bus.Publish(&ingest.Snapshot{Version: 3})
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, f.refreshes())
	assert.Empty(t, f.rebuildC)
}

func TestLatest_DrainsToNewest(t *testing.T) {
	ch := make(chan *ingest.Snapshot, 4)
	ch <- &ingest.Snapshot{Version: 3}
	ch <- &ingest.Snapshot{Version: 5}
	ch <- &ingest.Snapshot{Version: 4}

	got := latest(&ingest.Snapshot{Version: 2}, ch)
	assert.Equal(t, uint64(5), got.Version)
	assert.Empty(t, ch)

	close(ch)
	assert.Equal(t, uint64(9), latest(&ingest.Snapshot{Version: 9}, ch).Version)
}
