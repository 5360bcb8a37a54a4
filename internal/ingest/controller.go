// Package ingest keeps the local store in step with the activity source and
// publishes consistent snapshots of the result.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"telemetry-dashboard/internal/config"
	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/metrics"
	"telemetry-dashboard/internal/model"
	"telemetry-dashboard/internal/normalize"
	"telemetry-dashboard/internal/store"
	"telemetry-dashboard/internal/transport"
	"telemetry-dashboard/internal/utils"
	"telemetry-dashboard/pkg/logger"
	"telemetry-dashboard/pkg/notify"
	"telemetry-dashboard/pkg/yield"
)

// Controller owns the working copy of events, prompts and workspaces. None of
// its public methods return errors; failures end up in Snapshot.LastError and
// Snapshot.Connected.
type Controller struct {
	transport transport.Transport
	store     store.Store
	cfg       config.ClientConfig
	bus       *notify.Bus[*Snapshot]
	metrics   *metrics.Metrics
	logger    logger.Logger
	now       func() time.Time

	snap    atomic.Pointer[Snapshot]
	version atomic.Uint64

	// mu guards the working state below and serializes sync runs.
	mu         sync.Mutex
	events     map[string]model.Event
	prompts    map[string]model.Prompt
	workspaces map[string]model.Workspace
	files      []model.FileContent
	filesOK    bool
	changes    []model.ContextChange
	git        []model.GitSnapshot
	sequence   int64
	connected  bool
	lastErr    error

	backfillMu     sync.Mutex
	backfillCancel context.CancelFunc
	backfillWG     sync.WaitGroup
}

func NewController(t transport.Transport, s store.Store, cfg config.ClientConfig, bus *notify.Bus[*Snapshot],
	m *metrics.Metrics, logger logger.Logger) *Controller {
	c := &Controller{
		transport:  t,
		store:      s,
		cfg:        cfg,
		bus:        bus,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		events:     make(map[string]model.Event),
		prompts:    make(map[string]model.Prompt),
		workspaces: make(map[string]model.Workspace),
	}
	c.snap.Store(&Snapshot{})
	return c
}

// Snapshot returns the latest published snapshot; never nil.
func (c *Controller) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Initialize loads the local store (recent window first, then everything)
// and then syncs with the source.
func (c *Controller) Initialize(ctx context.Context) *Snapshot {
	runID := utils.NewRunID()
	y := yield.New(yield.DefaultBudget)

	c.mu.Lock()
	c.loadRecent(ctx, runID)
	c.publishLocked()
	c.mu.Unlock()

	if err := y.Checkpoint(ctx); err != nil {
		return c.Snapshot()
	}

	c.mu.Lock()
	c.loadAll(ctx, runID)
	c.publishLocked()
	c.mu.Unlock()

	return c.Refresh(ctx)
}

// Refresh probes the source and fetches whatever changed. Any running
// backfill is cancelled first.
func (c *Controller) Refresh(ctx context.Context) *Snapshot {
	c.stopBackfill()

	c.mu.Lock()
	more := c.syncLocked(ctx, utils.NewRunID())
	c.publishLocked()
	snap := c.Snapshot()
	c.mu.Unlock()

	if len(more) > 0 {
		c.startBackfill(more)
	}
	return snap
}

// IsCacheStale reports whether the source has records the store lacks.
func (c *Controller) IsCacheStale(ctx context.Context, serverSeq int64) bool {
	stored, err := c.store.ServerSequence(ctx)
	if err != nil {
		return true
	}
	return serverSeq > stored
}

// Close stops background backfill.
func (c *Controller) Close() {
	c.stopBackfill()
}

func (c *Controller) loadRecent(ctx context.Context, runID string) {
	since := c.now().Add(-c.cfg.Ingest.RecentWindow()).UnixMilli()
	events, bad, err := store.GetSince[model.Event](ctx, c.store, store.KindEvents, since)
	c.mergeLoaded(runID, "recent events", err, bad)
	for _, e := range events {
		c.events[e.ID] = e
	}
	prompts, bad, err := store.GetSince[model.Prompt](ctx, c.store, store.KindPrompts, since)
	c.mergeLoaded(runID, "recent prompts", err, bad)
	for _, p := range prompts {
		c.prompts[p.ID] = p
	}
	workspaces, bad, err := store.GetAll[model.Workspace](ctx, c.store, store.KindWorkspaces)
	c.mergeLoaded(runID, "workspaces", err, bad)
	for _, w := range workspaces {
		c.workspaces[w.Path] = w
	}
	if seq, err := c.store.ServerSequence(ctx); err == nil {
		c.sequence = seq
	}
	c.logger.Info("ingest[%s]: loaded recent window, %d events, %d prompts", runID, len(c.events), len(c.prompts))
}

func (c *Controller) loadAll(ctx context.Context, runID string) {
	events, bad, err := store.GetAll[model.Event](ctx, c.store, store.KindEvents)
	c.mergeLoaded(runID, "events", err, bad)
	for _, e := range events {
		if _, ok := c.events[e.ID]; !ok {
			c.events[e.ID] = e
		}
	}
	prompts, bad, err := store.GetAll[model.Prompt](ctx, c.store, store.KindPrompts)
	c.mergeLoaded(runID, "prompts", err, bad)
	for _, p := range prompts {
		if _, ok := c.prompts[p.ID]; !ok {
			c.prompts[p.ID] = p
		}
	}
	c.logger.Info("ingest[%s]: loaded full cache, %d events, %d prompts", runID, len(c.events), len(c.prompts))
}

func (c *Controller) mergeLoaded(runID, what string, err error, bad int) {
	if err != nil {
		c.logger.Warn("ingest[%s]: failed to load %s from store: %v", runID, what, err)
	}
	if bad > 0 {
		c.logger.Debug("ingest[%s]: skipped %d undecodable %s", runID, bad, what)
	}
}

// syncLocked runs one probe-and-fetch cycle. It returns the kinds whose
// first page was full and may have older pages to backfill.
func (c *Controller) syncLocked(ctx context.Context, runID string) []store.Kind {
	y := yield.New(yield.DefaultBudget)
	tc := c.cfg.Transport

	health, err := transport.GetJSON[model.Health](ctx, c.transport, transport.PathHealth,
		transport.Options{Timeout: tc.HealthTimeout(), Retries: tc.Retries, Silent: true})
	if err != nil {
		c.connected = false
		c.lastErr = err
		c.logger.Info("ingest[%s]: source unavailable, serving cached data: %v", runID, err)
		return nil
	}
	c.connected = true
	c.lastErr = nil

	stored, err := c.store.ServerSequence(ctx)
	if err != nil {
		c.logger.Warn("ingest[%s]: failed to read stored sequence: %v", runID, err)
	}

	fetch := health.Sequence > stored
	if health.Sequence < stored {
		stale := errs.New(errs.KindStale, "ingest.sync",
			fmt.Errorf("server sequence %d below stored %d", health.Sequence, stored))
		c.logger.Warn("ingest[%s]: %v, clearing cache for full refetch", runID, stale)
		c.clearLocked(ctx, runID)
		fetch = true
	}

	var more []store.Kind
	if fetch {
		allOK := true
		for _, kind := range []store.Kind{store.KindEvents, store.KindPrompts, store.KindWorkspaces} {
			page := c.fetchPage(ctx, runID, kind, 0)
			allOK = allOK && page.ok
			if page.ok && kind != store.KindWorkspaces && page.hasMore(c.cfg.Ingest.PageSize) {
				more = append(more, kind)
			}
			if err := y.Checkpoint(ctx); err != nil {
				allOK = false
				break
			}
		}
		if allOK {
			if err := c.store.SetServerSequence(ctx, health.Sequence); err != nil {
				c.logger.Warn("ingest[%s]: failed to persist sequence: %v", runID, err)
			} else {
				c.sequence = health.Sequence
			}
		}
		c.persistWorkspaces(ctx, runID)
	}

	c.fetchAux(ctx, runID)
	c.logger.Info("ingest[%s]: sync done, sequence %d, %d events, %d prompts", runID, c.sequence, len(c.events), len(c.prompts))
	return more
}

func (c *Controller) clearLocked(ctx context.Context, runID string) {
	for _, kind := range []store.Kind{store.KindEvents, store.KindPrompts, store.KindWorkspaces} {
		if err := c.store.Clear(ctx, kind); err != nil {
			c.logger.Warn("ingest[%s]: failed to clear %s: %v", runID, kind, err)
		}
	}
	if err := c.store.SetServerSequence(ctx, 0); err != nil {
		c.logger.Warn("ingest[%s]: failed to reset sequence: %v", runID, err)
	}
	c.events = make(map[string]model.Event)
	c.prompts = make(map[string]model.Prompt)
	c.workspaces = make(map[string]model.Workspace)
	c.sequence = 0
}

func pagePath(kind store.Kind, limit, offset int) (string, []string) {
	switch kind {
	case store.KindEvents:
		return fmt.Sprintf("%s?limit=%d&offset=%d", transport.PathActivity, limit, offset), []string{"data", "events"}
	case store.KindPrompts:
		return fmt.Sprintf("%s?limit=%d&offset=%d", transport.PathEntries, limit, offset), []string{"entries", "data"}
	default:
		return transport.PathWorkspaces, []string{"workspaces", "data"}
	}
}

type pageResult struct {
	offset int
	count  int // raw items, malformed included
	total  int // pagination.total, -1 if absent
	ok     bool
}

func (p pageResult) hasMore(pageSize int) bool {
	if p.total >= 0 {
		return p.offset+p.count < p.total
	}
	return p.count >= pageSize
}

// fetchPage fetches, normalizes, stores and merges one page. A failure
// leaves the cached data for the kind untouched.
func (c *Controller) fetchPage(ctx context.Context, runID string, kind store.Kind, offset int) pageResult {
	res := pageResult{offset: offset, total: -1}
	path, keys := pagePath(kind, c.cfg.Ingest.PageSize, offset)
	body, err := c.transport.Get(ctx, path, transport.Options{
		Timeout: c.cfg.Transport.DataTimeout(),
		Retries: c.cfg.Transport.Retries,
		Silent:  true,
	})
	if err != nil {
		if ctx.Err() == nil {
			c.lastErr = err
		}
		c.logger.Warn("ingest[%s]: fetch %s failed, keeping cached data: %v", runID, kind, err)
		return res
	}
	items := normalize.Items(body, keys...)
	res.count = len(items)
	res.total = normalize.Total(body)

	var storeErr error
	var dropped int
	switch kind {
	case store.KindEvents:
		var events []model.Event
		events, dropped = normalize.All(items, normalize.Event)
		storeErr = store.StoreBatch(ctx, c.store, kind, events)
		for _, e := range events {
			c.events[e.ID] = e
		}
		c.metrics.Ingested(ctx, string(kind), len(events))
	case store.KindPrompts:
		var prompts []model.Prompt
		prompts, dropped = normalize.All(items, normalize.Prompt)
		storeErr = store.StoreBatch(ctx, c.store, kind, prompts)
		for _, p := range prompts {
			c.prompts[p.ID] = p
		}
		c.metrics.Ingested(ctx, string(kind), len(prompts))
	case store.KindWorkspaces:
		var workspaces []model.Workspace
		workspaces, dropped = normalize.All(items, normalize.Workspace)
		for _, w := range workspaces {
			c.workspaces[w.Path] = w
		}
		c.metrics.Ingested(ctx, string(kind), len(workspaces))
	}
	if dropped > 0 {
		c.logger.Debug("ingest[%s]: dropped %d malformed %s records", runID, dropped, kind)
		c.metrics.Malformed(ctx, string(kind), dropped)
	}
	if storeErr != nil {
		c.logger.Warn("ingest[%s]: failed to store %s: %v", runID, kind, storeErr)
		return res
	}
	res.ok = true
	return res
}

func (c *Controller) persistWorkspaces(ctx context.Context, runID string) {
	derived := DeriveWorkspaces(c.knownWorkspaces(), sortedEvents(c.events), sortedPrompts(c.prompts))
	if err := store.StoreBatch(ctx, c.store, store.KindWorkspaces, derived); err != nil {
		c.logger.Warn("ingest[%s]: failed to store workspaces: %v", runID, err)
	}
}

func (c *Controller) knownWorkspaces() []model.Workspace {
	out := make([]model.Workspace, 0, len(c.workspaces))
	for _, w := range c.workspaces {
		out = append(out, w)
	}
	return out
}

// fetchAux pulls the feeds that are only held in memory. Each is best-effort.
func (c *Controller) fetchAux(ctx context.Context, runID string) {
	tc := c.cfg.Transport
	limit := c.cfg.Ingest.AuxFeedLimit
	opts := transport.Options{Timeout: tc.DataTimeout(), Silent: true}

	if items, ok := c.auxItems(ctx, runID, fmt.Sprintf("%s?limit=%d", transport.PathContextChanges, limit), opts, "data"); ok {
		c.changes, _ = normalize.All(items, normalize.ContextChange)
	}
	if items, ok := c.auxItems(ctx, runID, fmt.Sprintf("%s?limit=%d", transport.PathGit, limit), opts, "gitData", "data"); ok {
		c.git, _ = normalize.All(items, normalize.GitSnapshot)
	}
	fileOpts := transport.Options{Timeout: tc.FileContentsTimeout(), Retries: tc.Retries, Silent: true}
	if items, ok := c.auxItems(ctx, runID, fmt.Sprintf("%s?limit=%d", transport.PathFileContents, c.cfg.Ingest.FileContentsLimit), fileOpts, "files"); ok {
		c.files, _ = normalize.All(items, normalize.FileContent)
		c.filesOK = true
	} else {
		c.filesOK = false
	}
}

func (c *Controller) auxItems(ctx context.Context, runID, path string, opts transport.Options, keys ...string) ([]gjson.Result, bool) {
	body, err := c.transport.Get(ctx, path, opts)
	if err != nil {
		c.logger.Debug("ingest[%s]: auxiliary feed %s unavailable: %v", runID, path, err)
		return nil, false
	}
	return normalize.Items(body, keys...), true
}

func (c *Controller) publishLocked() {
	events := sortedEvents(c.events)
	prompts := sortedPrompts(c.prompts)
	s := &Snapshot{
		Version:        c.version.Add(1),
		Events:         events,
		Prompts:        prompts,
		Workspaces:     DeriveWorkspaces(c.knownWorkspaces(), events, prompts),
		FileContents:   c.files,
		FileContentsOK: c.filesOK,
		ContextChanges: c.changes,
		Git:            c.git,
		Sequence:       c.sequence,
		Connected:      c.connected,
		LastError:      c.lastErr,
		UpdatedAt:      c.now(),
	}
	c.snap.Store(s)
	if c.bus != nil {
		c.bus.Publish(s)
	}
}

func (c *Controller) startBackfill(kinds []store.Kind) {
	ctx, cancel := context.WithCancel(context.Background())
	c.backfillMu.Lock()
	c.backfillCancel = cancel
	c.backfillWG.Add(1)
	c.backfillMu.Unlock()

	go func() {
		defer c.backfillWG.Done()
		c.backfill(ctx, kinds)
	}()
}

func (c *Controller) stopBackfill() {
	c.backfillMu.Lock()
	cancel := c.backfillCancel
	c.backfillCancel = nil
	c.backfillMu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.backfillWG.Wait()
}

// backfill walks older pages until a short page, the page cap, or
// cancellation. Each page is published as it lands.
func (c *Controller) backfill(ctx context.Context, kinds []store.Kind) {
	runID := utils.NewRunID()
	pageSize := c.cfg.Ingest.PageSize
	for _, kind := range kinds {
		for page := 1; page <= c.cfg.Ingest.MaxBackfillPages; page++ {
			if ctx.Err() != nil {
				return
			}
			c.mu.Lock()
			res := c.fetchPage(ctx, runID, kind, page*pageSize)
			if res.ok {
				c.persistWorkspaces(ctx, runID)
				c.publishLocked()
			}
			c.mu.Unlock()
			if !res.ok || !res.hasMore(pageSize) {
				break
			}
		}
	}
	c.logger.Debug("ingest[%s]: backfill finished", runID)
}
