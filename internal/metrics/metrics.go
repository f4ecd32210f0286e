// Package metrics exposes Prometheus instruments for the ledger, the oracle
// and the HTTP layer. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "beanjar"

type Metrics struct {
	registry *prometheus.Registry

	votes          *prometheus.CounterVec
	finalized      *prometheus.CounterVec
	transfers      *prometheus.CounterVec
	pointsMoved    *prometheus.CounterVec
	oracleRequests *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates a registry with Go runtime collectors and the beanjar
// instruments registered on it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Votes cast on tasks by vote and outcome.",
		}, []string{"vote", "outcome"}),
		finalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finalized_total",
			Help:      "Tasks reaching a terminal status by type and status.",
		}, []string{"type", "status"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Point transfers by outcome.",
		}, []string{"outcome"}),
		pointsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_moved_total",
			Help:      "Absolute points written to the ledger by source.",
		}, []string{"source"}),
		oracleRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_requests_total",
			Help:      "Point-suggestion oracle calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "code"}),
	}

	reg.MustRegister(m.votes, m.finalized, m.transfers, m.pointsMoved, m.oracleRequests, m.httpDuration)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Vote(vote, outcome string) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(vote, outcome).Inc()
}

func (m *Metrics) Finalized(taskType, status string) {
	if m == nil {
		return
	}
	m.finalized.WithLabelValues(taskType, status).Inc()
}

func (m *Metrics) Transfer(outcome string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PointsMoved(source string, amount int) {
	if m == nil {
		return
	}
	if amount < 0 {
		amount = -amount
	}
	m.pointsMoved.WithLabelValues(source).Add(float64(amount))
}

func (m *Metrics) OracleRequest(operation, outcome string) {
	if m == nil {
		return
	}
	m.oracleRequests.WithLabelValues(operation, outcome).Inc()
}

// ObserveHTTP records one request's latency in seconds.
func (m *Metrics) ObserveHTTP(method, code string, seconds float64) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, code).Observe(seconds)
}
