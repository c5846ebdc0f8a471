// Package metrics defines the prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Chat turn outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeInvalid      = "invalid"
	OutcomeNotFound     = "not_found"
	OutcomeBackendError = "backend_error"
)

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ChatTurns      *prometheus.CounterVec
	ChatDuration   prometheus.Histogram
	CatalogQueries *prometheus.CounterVec
	CatalogBooks   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ChatTurns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booktalk_chat_turns_total",
				Help: "Chat turns handled, by outcome",
			},
			[]string{"outcome"},
		),
		ChatDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "booktalk_chat_turn_duration_seconds",
				Help:    "Time spent producing one assistant reply",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
		),
		CatalogQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booktalk_catalog_queries_total",
				Help: "Catalog queries served, by operation",
			},
			[]string{"op"},
		),
		CatalogBooks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "booktalk_catalog_books",
				Help: "Books in the loaded catalog",
			},
		),
	}
	m.registry.MustRegister(
		m.ChatTurns,
		m.ChatDuration,
		m.CatalogQueries,
		m.CatalogBooks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTurn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ChatTurns.WithLabelValues(outcome).Inc()
	m.ChatDuration.Observe(d.Seconds())
}

func (m *Metrics) CountQuery(op string) {
	if m == nil {
		return
	}
	m.CatalogQueries.WithLabelValues(op).Inc()
}

func (m *Metrics) SetBooks(n int) {
	if m == nil {
		return
	}
	m.CatalogBooks.Set(float64(n))
}
