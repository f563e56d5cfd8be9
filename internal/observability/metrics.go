// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pdiddy/arxiv-notifier/pkg/types"
)

const namespace = "arxiv_notifier"

// Metrics holds the collectors updated by the orchestrator. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// CyclesTotal counts completed cycles.
	CyclesTotal prometheus.Counter

	// CyclesWithErrors counts cycles that recorded at least one error.
	CyclesWithErrors prometheus.Counter

	// CycleDuration observes cycle wall time in seconds.
	CycleDuration prometheus.Histogram

	PapersFetched prometheus.Counter
	PapersNew     prometheus.Counter

	// Deliveries counts per-paper deliveries by sink and outcome (ok, failed).
	Deliveries *prometheus.CounterVec

	// AnnotationFailures counts annotator errors by annotator name.
	AnnotationFailures *prometheus.CounterVec

	// LastSuccess is the Unix time of the last cycle without errors.
	LastSuccess prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CyclesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of notification cycles run",
		}),
		CyclesWithErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_with_errors_total",
			Help:      "Total number of cycles that recorded errors",
		}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of notification cycles in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		PapersFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_fetched_total",
			Help:      "Total number of papers fetched from arXiv",
		}),
		PapersNew: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_new_total",
			Help:      "Total number of papers not seen before",
		}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Per-paper deliveries by sink and outcome",
		}, []string{"sink", "outcome"}),
		AnnotationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "annotation_failures_total",
			Help:      "Annotator failures by annotator",
		}, []string{"annotator"}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that finished without errors",
		}),
	}
}

// RecordCycle records the totals of a finished cycle.
func (m *Metrics) RecordCycle(r types.CycleResult, finished time.Time) {
	if m == nil {
		return
	}
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(r.ElapsedSeconds())
	m.PapersFetched.Add(float64(r.Fetched))
	m.PapersNew.Add(float64(r.New))
	if r.HasErrors() {
		m.CyclesWithErrors.Inc()
		return
	}
	m.LastSuccess.Set(float64(finished.Unix()))
}

// RecordDelivery counts one delivery attempt to sink.
func (m *Metrics) RecordDelivery(sink string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.Deliveries.WithLabelValues(sink, outcome).Inc()
}

// RecordAnnotationFailure counts one annotator failure.
func (m *Metrics) RecordAnnotationFailure(annotator string) {
	if m == nil {
		return
	}
	m.AnnotationFailures.WithLabelValues(annotator).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
