// Package app is the process-wide registry. It owns every long-lived
// component and builds them in one fixed order:
//
//	config -> logger -> metrics -> store -> transport -> worker pool ->
//	snapshot bus -> ingest -> corpus -> search feedback -> search engine ->
//	navigator -> share client
//
// Config and logger are handed in by the caller. Close releases them in
// reverse.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"telemetry-dashboard/internal/config"
	"telemetry-dashboard/internal/corpus"
	"telemetry-dashboard/internal/errs"
	"telemetry-dashboard/internal/ingest"
	"telemetry-dashboard/internal/metrics"
	"telemetry-dashboard/internal/navigator"
	"telemetry-dashboard/internal/search"
	"telemetry-dashboard/internal/share"
	"telemetry-dashboard/internal/store"
	"telemetry-dashboard/internal/transport"
	"telemetry-dashboard/internal/view"
	"telemetry-dashboard/pkg/logger"
	"telemetry-dashboard/pkg/notify"
	"telemetry-dashboard/pkg/pool"
)

// Options overrides parts of the registry. Zero values build the defaults
// from the configuration.
type Options struct {
	// StoreDir is where file-backed stores live.
	StoreDir string
	// Store replaces the configured backend.
	Store store.Store
	// Transport replaces the HTTP transport.
	Transport transport.Transport
	// Annotator names navigator clusters; nil keeps default names.
	Annotator navigator.Annotator
	// Metrics replaces the meter; nil creates one.
	Metrics *metrics.Metrics
}

type App struct {
	Config    config.ClientConfig
	Logger    logger.Logger
	Metrics   *metrics.Metrics
	Store     store.Store
	Transport transport.Transport
	Pool      *pool.TaskPool
	Snapshots *notify.Bus[*ingest.Snapshot]
	Ingest    *ingest.Controller
	Corpus    *corpus.Corpus
	Feedback  *search.Feedback
	Search    *search.Engine
	Navigator *navigator.Navigator
	Share     *share.Client

	now func() time.Time

	// rebuildMu serializes derived-state rebuilds; built is the snapshot
	// version they last covered.
	rebuildMu sync.Mutex
	built     uint64
	closeOnce sync.Once
}

// New builds the registry. On failure everything opened so far is closed.
func New(cfg config.ClientConfig, log logger.Logger, opts Options) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, errs.New(errs.KindUserInput, "config", err)
	}
	a := &App{Config: cfg, Logger: log, now: time.Now}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Metrics = opts.Metrics
	if a.Metrics == nil {
		if a.Metrics, err = metrics.New(); err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	a.Store = opts.Store
	if a.Store == nil {
		dir := cfg.Store.Dir
		if dir == "" {
			dir = opts.StoreDir
		}
		if a.Store, err = store.Open(cfg.Store, dir, log); err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
		}
	}

	a.Transport = opts.Transport
	if a.Transport == nil {
		a.Transport = transport.NewHTTPTransport(transport.Config{
			BaseURL:        cfg.Transport.APIBase,
			DefaultTimeout: cfg.Transport.DataTimeout(),
			Spacing:        cfg.Transport.Spacing(),
		}, a.Metrics, log)
	}

	a.Pool = pool.NewTaskPool(cfg.Worker.Concurrency, cfg.Worker.TaskTimeout(), log)
	a.Pool.SetObserver(a.Metrics.WorkerTask)

	a.Snapshots = notify.NewBus[*ingest.Snapshot]()
	a.Ingest = ingest.NewController(a.Transport, a.Store, cfg, a.Snapshots, a.Metrics, log)
	a.Corpus = corpus.New(log, a.Metrics)
	a.Feedback = search.NewFeedback(a.Store, log)
	a.Search = search.NewEngine(a.Corpus, a.Feedback, cfg.Search, a.Metrics, log)
	a.Navigator = navigator.New(cfg, a.Store, a.Pool, opts.Annotator, a.Metrics, log)
	a.Share = share.NewClient(a.Transport, log)

	log.Info("app: registry ready, store=%s api=%s", cfg.Store.Backend, cfg.Transport.APIBase)
	return a, nil
}

// Start loads persisted state, syncs with the source once and builds the
// derived state for the result. The source being offline is not an error.
func (a *App) Start(ctx context.Context) error {
	a.Feedback.Load(ctx)
	snap := a.Ingest.Initialize(ctx)
	if !snap.Connected {
		a.Logger.Warn("app: activity source offline, serving %d cached events", len(snap.Events))
	}
	return a.Rebuild(ctx, snap)
}

// Refresh syncs ingest with the source and returns the new snapshot.
func (a *App) Refresh(ctx context.Context) *ingest.Snapshot {
	return a.Ingest.Refresh(ctx)
}

// Rebuild brings the corpus index, the search cache and the navigator in line
// with snap. Snapshots at or below the last rebuilt version are skipped.
// A failed corpus rebuild keeps the previous index; a failed navigator
// refresh keeps the previous state. Both are logged, only cancellation is
// returned.
func (a *App) Rebuild(ctx context.Context, snap *ingest.Snapshot) error {
	if snap == nil {
		return nil
	}
	a.rebuildMu.Lock()
	defer a.rebuildMu.Unlock()
	if snap.Version != 0 && snap.Version <= a.built {
		return nil
	}

	if _, err := a.Corpus.Rebuild(ctx, snap.Events, snap.Prompts, snap.Workspaces); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.Logger.Warn("app: corpus rebuild for snapshot %d failed, keeping previous index: %v", snap.Version, err)
	}
	a.Search.Purge()

	_, err := a.Navigator.Refresh(ctx, navigator.Input{
		Files:   snap.FileContents,
		FilesOK: snap.FileContentsOK,
		Events:  snap.Events,
		Prompts: snap.Prompts,
	})
	switch {
	case err == nil:
	case errors.Is(err, navigator.ErrSuperseded):
		a.Logger.Debug("app: navigator refresh for snapshot %d superseded", snap.Version)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		a.Logger.Warn("app: navigator refresh for snapshot %d failed: %v", snap.Version, err)
	}

	a.built = snap.Version
	return nil
}

// Built is the last snapshot version derived state was rebuilt for.
func (a *App) Built() uint64 {
	a.rebuildMu.Lock()
	defer a.rebuildMu.Unlock()
	return a.built
}

// View returns the read-only projections over the current snapshot.
func (a *App) View() *view.View {
	return view.New(a.Ingest.Snapshot(), a.now())
}

// Close releases components in reverse build order. Safe to call twice.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.Ingest != nil {
			a.Ingest.Close()
		}
		if a.Snapshots != nil {
			a.Snapshots.Close()
		}
		if a.Pool != nil {
			a.Pool.Close()
		}
		if a.Store != nil {
			if err := a.Store.Close(); err != nil {
				a.Logger.Warn("app: failed to close store: %v", err)
			}
		}
		if a.Metrics != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := a.Metrics.Shutdown(ctx); err != nil {
				a.Logger.Warn("app: failed to shut down metrics: %v", err)
			}
		}
	})
}
