package job

import (
	"context"
	"sync"
	"time"

	"telemetry-dashboard/internal/ingest"
	"telemetry-dashboard/pkg/logger"
	"telemetry-dashboard/pkg/notify"
)

// Pipeline is the part of the registry the refresh job drives.
type Pipeline interface {
	Refresh(ctx context.Context) *ingest.Snapshot
	Rebuild(ctx context.Context, snap *ingest.Snapshot) error
}

// RefreshJob polls the activity source every interval and rebuilds derived
// state whenever ingest publishes a newer snapshot, including the ones a
// background backfill produces between ticks.
type RefreshJob struct {
	pipeline Pipeline
	bus      *notify.Bus[*ingest.Snapshot]
	logger   logger.Logger
	interval time.Duration
	trigger  chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewRefreshJob(
	pipeline Pipeline,
	bus *notify.Bus[*ingest.Snapshot],
	logger logger.Logger,
	interval time.Duration,
) *RefreshJob {
	ctx, cancel := context.WithCancel(context.Background())
	return &RefreshJob{
		pipeline: pipeline,
		bus:      bus,
		logger:   logger,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the job loop. The first poll happens one interval later;
// the caller is expected to have run the initial sync.
func (j *RefreshJob) Start() {
	j.logger.Info("starting refresh job with interval: %v", j.interval)

	var updates <-chan *ingest.Snapshot
	unsubscribe := func() {}
	if j.bus != nil {
		updates, unsubscribe = j.bus.Subscribe(4)
	}

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		defer unsubscribe()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-j.ctx.Done():
				return
			case <-ticker.C:
				j.poll()
			case <-j.trigger:
				j.poll()
			case snap, ok := <-updates:
				if !ok {
					updates = nil
					continue
				}
				j.rebuild(latest(snap, updates))
			}
		}
	}()
}

// Trigger asks for an out-of-band poll. Requests made while one is pending
// are coalesced.
func (j *RefreshJob) Trigger() {
	select {
	case j.trigger <- struct{}{}:
	default:
	}
}

func (j *RefreshJob) Stop() {
	j.logger.Info("stopping refresh job...")
	j.cancel()
	j.wg.Wait()
	j.logger.Info("refresh job stopped")
}

func (j *RefreshJob) poll() {
	snap := j.pipeline.Refresh(j.ctx)
	if j.ctx.Err() != nil {
		return
	}
	if snap != nil && !snap.Connected {
		j.logger.Debug("refresh job: activity source offline, keeping cached data")
	}
	j.rebuild(snap)
}

func (j *RefreshJob) rebuild(snap *ingest.Snapshot) {
	if snap == nil {
		return
	}
	if err := j.pipeline.Rebuild(j.ctx, snap); err != nil && j.ctx.Err() == nil {
		j.logger.Error("refresh job: rebuild for snapshot %d failed: %v", snap.Version, err)
	}
}

// latest drains whatever is already queued and returns the newest snapshot.
func latest(snap *ingest.Snapshot, updates <-chan *ingest.Snapshot) *ingest.Snapshot {
	for {
		select {
		case next, ok := <-updates:
			if !ok {
				return snap
			}
			if next != nil && (snap == nil || next.Version > snap.Version) {
				snap = next
			}
		default:
			return snap
		}
	}
}
