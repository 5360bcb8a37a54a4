// Package metrics wires an OpenTelemetry meter to a Prometheus registry.
// Every recording method is safe on a nil *Metrics so components can run
// without instrumentation.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "telemetry-dashboard"

type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	transportRequests metric.Int64Counter
	ingestedRecords   metric.Int64Counter
	malformedRecords  metric.Int64Counter
	indexBuild        metric.Float64Histogram
	searchDuration    metric.Float64Histogram
	layoutDuration    metric.Float64Histogram
	workerTasks       metric.Int64Counter
}

// New creates the meter provider and registers its exporter together with
// the Go runtime collectors on a private registry.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)

	m := &Metrics{registry: registry, provider: provider}
	if m.transportRequests, err = meter.Int64Counter("transport_requests",
		metric.WithDescription("Activity source requests by endpoint and outcome")); err != nil {
		return nil, err
	}
	if m.ingestedRecords, err = meter.Int64Counter("ingested_records",
		metric.WithDescription("Records stored by ingest, by kind")); err != nil {
		return nil, err
	}
	if m.malformedRecords, err = meter.Int64Counter("malformed_records",
		metric.WithDescription("Records dropped by the normalizer, by kind")); err != nil {
		return nil, err
	}
	if m.indexBuild, err = meter.Float64Histogram("index_build_duration",
		metric.WithDescription("Corpus index rebuild duration"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.searchDuration, err = meter.Float64Histogram("search_duration",
		metric.WithDescription("Search latency"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.layoutDuration, err = meter.Float64Histogram("layout_duration",
		metric.WithDescription("Navigator layout duration by mode"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.workerTasks, err = meter.Int64Counter("worker_tasks",
		metric.WithDescription("Worker pool task outcomes")); err != nil {
		return nil, err
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

func (m *Metrics) TransportRequest(ctx context.Context, endpoint, outcome string) {
	if m == nil {
		return
	}
	m.transportRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) Ingested(ctx context.Context, kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ingestedRecords.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) Malformed(ctx context.Context, kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.malformedRecords.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) IndexBuilt(ctx context.Context, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.indexBuild.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Bool("ok", ok)))
}

func (m *Metrics) Searched(ctx context.Context, d time.Duration, cached bool) {
	if m == nil {
		return
	}
	m.searchDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Bool("cached", cached)))
}

func (m *Metrics) LayoutComputed(ctx context.Context, mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.layoutDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("mode", mode)))
}

func (m *Metrics) WorkerTask(outcome string) {
	if m == nil {
		return
	}
	m.workerTasks.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
