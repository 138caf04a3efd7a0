// Package metrics provides Prometheus metrics for the mouzamap service.
package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"mouzamap.org/internal/region"
	"mouzamap.org/internal/selection"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Region index metrics
	IndexBuildDuration        prometheus.Histogram
	IndexFeatures             *prometheus.GaugeVec
	IndexAssignments          prometheus.Gauge
	ContainmentFallbacksTotal prometheus.Counter

	// Selection metrics
	SelectionEventsTotal *prometheus.CounterVec
	SelectionStreams     prometheus.Gauge

	// Catalog database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitSecondsTotal prometheus.Counter

	logger *slog.Logger

	// collectorStarted prevents spawning multiple collector goroutines
	collectorStarted atomic.Bool

	// cancel stops the DB stats collector goroutine
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mouzamap_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mouzamap_http_request_duration_seconds",
				Help:    "HTTP request latency distribution",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		IndexBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mouzamap_index_build_duration_seconds",
			Help:    "Time spent attributing mouzas to districts",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		IndexFeatures: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mouzamap_index_features",
				Help: "Named features in the current region index",
			},
			[]string{"kind"},
		),
		IndexAssignments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mouzamap_index_assignments",
			Help: "District to mouza assignments in the current region index",
		}),
		ContainmentFallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mouzamap_containment_fallbacks_total",
			Help: "Membership decisions made by bounding box overlap instead of ray casting",
		}),
		SelectionEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mouzamap_selection_events_total",
				Help: "Selection updates, by changed slot",
			},
			[]string{"slot"},
		),
		SelectionStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mouzamap_selection_streams",
			Help: "Open selection event streams",
		}),
		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mouzamap_db_connections_open",
			Help: "Number of open catalog database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mouzamap_db_connections_in_use",
			Help: "Number of catalog database connections currently in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mouzamap_db_connections_idle",
			Help: "Number of idle catalog database connections",
		}),
		DBWaitSecondsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mouzamap_db_wait_seconds_total",
			Help: "Total time blocked waiting for a catalog database connection",
		}),
		logger: logger,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.IndexBuildDuration,
		m.IndexFeatures,
		m.IndexAssignments,
		m.ContainmentFallbacksTotal,
		m.SelectionEventsTotal,
		m.SelectionStreams,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBWaitSecondsTotal,
	)

	return m
}

// ObserveIndex records a completed region index build.
func (m *Metrics) ObserveIndex(stats region.Stats, took time.Duration) {
	if m == nil {
		return
	}
	m.IndexBuildDuration.Observe(took.Seconds())
	m.IndexFeatures.WithLabelValues("district").Set(float64(stats.Parents))
	m.IndexFeatures.WithLabelValues("mouza").Set(float64(stats.Children))
	m.IndexAssignments.Set(float64(stats.Assignments))
}

// CountFallback is a geometry.FallbackObserver.
func (m *Metrics) CountFallback(_, _ string) {
	if m == nil {
		return
	}
	m.ContainmentFallbacksTotal.Inc()
}

// ObserveSelection is a selection.Observer that counts changed slots.
func (m *Metrics) ObserveSelection(ev selection.Event) {
	if m == nil {
		return
	}
	for _, slot := range ev.Changed {
		m.SelectionEventsTotal.WithLabelValues(slot.String()).Inc()
	}
}

// StartDBStatsCollector starts a goroutine that periodically copies the
// catalog connection pool statistics into the DB gauges. It is idempotent;
// call Shutdown to stop it.
func (m *Metrics) StartDBStatsCollector(db *sql.DB, interval time.Duration) {
	if db == nil {
		return
	}

	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	var lastWaitDuration time.Duration

	// Add to WaitGroup BEFORE exposing cancel to avoid race with Shutdown
	m.wg.Add(1)
	m.cancel = cancel

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				if m.logger != nil {
					m.logger.Error("panic in DB stats collector", "error", r)
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := db.Stats()
				m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
				m.DBConnectionsInUse.Set(float64(stats.InUse))
				m.DBConnectionsIdle.Set(float64(stats.Idle))

				waitDelta := stats.WaitDuration - lastWaitDuration
				if waitDelta > 0 {
					m.DBWaitSecondsTotal.Add(waitDelta.Seconds())
				}
				lastWaitDuration = stats.WaitDuration

			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the DB stats collector goroutine and waits for it to exit.
// It is safe to call more than once.
func (m *Metrics) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
