package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the search queries.
type Metrics struct {
	Registry        *prometheus.Registry
	QueriesTotal    *prometheus.CounterVec
	QueryDuration   prometheus.Histogram
	CardsTotal      prometheus.Counter
	CreaturesTotal  prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	LastRunFailures prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	queries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hastestats_queries_total",
			Help: "Search queries issued, by outcome.",
		},
		[]string{"outcome"},
	)
	queryDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hastestats_query_duration_seconds",
			Help:    "Search query latency, including the courtesy delay.",
			Buckets: prometheus.DefBuckets,
		},
	)
	cards := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hastestats_cards_total",
			Help: "Matching cards reported by the search API.",
		},
	)
	creatures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hastestats_creatures_total",
			Help: "Matching cards whose type line names a creature.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hastestats_errors_total",
			Help: "Failed search queries by error kind.",
		},
		[]string{"error_type"},
	)
	lastRunFailures := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hastestats_last_run_failed_keys",
			Help: "Query keys that degraded to zero counts in the last collection.",
		},
	)

	registry.MustRegister(queries, queryDuration, cards, creatures, errorsTotal, lastRunFailures)

	return &Metrics{
		Registry:        registry,
		QueriesTotal:    queries,
		QueryDuration:   queryDuration,
		CardsTotal:      cards,
		CreaturesTotal:  creatures,
		ErrorsTotal:     errorsTotal,
		LastRunFailures: lastRunFailures,
	}
}

// IncQuery increments the queries counter for an outcome.
func (m *Metrics) IncQuery(outcome string) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records a query duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.QueryDuration.Observe(d.Seconds())
}

// AddCounts adds one successful query's counts.
func (m *Metrics) AddCounts(creatures, total int) {
	if m == nil {
		return
	}
	m.CreaturesTotal.Add(float64(creatures))
	m.CardsTotal.Add(float64(total))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// SetFailedKeys records how many keys degraded in the last run.
func (m *Metrics) SetFailedKeys(n int) {
	if m == nil {
		return
	}
	m.LastRunFailures.Set(float64(n))
}
