// Package metrics exposes pipeline counters and stage latencies to
// Prometheus. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/insightdelivered/statement-normalizer/internal/models"
)

const namespace = "statement"

// Outcome labels besides the error kinds.
const (
	OutcomeOK        = "ok"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Metrics holds the pipeline collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	stages    *prometheus.HistogramVec
	pages     prometheus.Counter
	tables    *prometheus.CounterVec
	fallbacks prometheus.Counter
}

// New registers all collectors on a private registry, so several
// instances can coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Pipeline runs by operation and outcome.",
		}, []string{"operation", "outcome"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent per pipeline stage.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Pages extracted.",
		}),
		tables: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tables_total",
			Help:      "Tables handed to the normalizer, by source.",
		}, []string{"source"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heuristic_fallbacks_total",
			Help:      "Documents where text heuristics produced tables.",
		}),
	}
	reg.MustRegister(m.requests, m.stages, m.pages, m.tables, m.fallbacks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Outcome labels err by its pipeline kind.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeCancelled
	}
	if k := models.KindOf(err); k != "" {
		return string(k)
	}
	return OutcomeError
}

// ObserveRequest counts one pipeline run by operation and outcome.
func (m *Metrics) ObserveRequest(operation string, err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, Outcome(err)).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, took time.Duration) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(stage).Observe(took.Seconds())
}

// ObservePages counts extracted pages.
func (m *Metrics) ObservePages(n int) {
	if m == nil {
		return
	}
	m.pages.Add(float64(n))
}

// ObserveTables counts tables under source "grid" or "heuristic".
func (m *Metrics) ObserveTables(n int, usedFallback bool) {
	if m == nil {
		return
	}
	source := "grid"
	if usedFallback {
		source = "heuristic"
		m.fallbacks.Inc()
	}
	m.tables.WithLabelValues(source).Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
