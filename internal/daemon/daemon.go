// daemon/daemon.go - process lifecycle around the registry
package daemon

import (
	"context"
	"sync"
	"time"

	"telemetry-dashboard/internal/app"
	"telemetry-dashboard/internal/handler"
	"telemetry-dashboard/internal/job"
	"telemetry-dashboard/internal/server"
	"telemetry-dashboard/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// Daemon runs the initial sync, the refresh job and the view bridge for one
// registry.
type Daemon struct {
	app        *app.App
	refreshJob *job.RefreshJob
	server     server.Server
	addr       string
	logger     logger.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	errs       chan error
	stopOnce   sync.Once
}

func NewDaemon(a *app.App, addr string, logger logger.Logger) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		app:    a,
		addr:   addr,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		errs:   make(chan error, 1),
	}
	d.refreshJob = job.NewRefreshJob(a, a.Snapshots, logger, a.Config.Ingest.RefreshInterval())
	d.server = server.NewServer(server.Handlers{
		View:      handler.NewViewHandler(a, logger),
		Search:    handler.NewSearchHandler(a.Search, logger),
		Navigator: handler.NewNavigatorHandler(a.Navigator, logger),
		Share:     handler.NewShareHandler(a, a.Share, logger),
		Refresh:   d.refreshJob,
		Metrics:   a.Metrics.Handler(),
	}, a.Config.Server, logger)
	return d
}

// Start serves the bridge right away so cached data is readable during the
// initial sync; polling begins once that sync has finished.
func (d *Daemon) Start() {
	d.logger.Info("daemon started")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.server.Start(d.addr); err != nil {
			d.logger.Error("view bridge stopped: %v", err)
			d.errs <- err
		}
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		start := time.Now()
		if err := d.app.Start(d.ctx); err != nil {
			d.logger.Warn("initial sync interrupted: %v", err)
			return
		}
		d.logger.Info("initial sync finished in %s", time.Since(start))
		d.refreshJob.Start()
	}()
}

// Errors reports a bridge that failed to start or died.
func (d *Daemon) Errors() <-chan error {
	return d.errs
}

// Server exposes the bridge for tests.
func (d *Daemon) Server() server.Server {
	return d.server
}

func (d *Daemon) Stop() {
	d.stopOnce.Do(func() {
		d.logger.Info("stopping daemon...")
		d.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := d.server.Shutdown(ctx); err != nil {
			d.logger.Error("view bridge shutdown error: %v", err)
		}
		d.wg.Wait()
		d.refreshJob.Stop()
		d.app.Close()
		d.logger.Info("daemon stopped")
	})
}
