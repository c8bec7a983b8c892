// Package metrics provides the Prometheus collectors for the service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "watchlist_enricher"

// Enrichment outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeMock        = "mock"
	OutcomeCallFailed  = "call_failed"
	OutcomeParseFailed = "parse_failed"
	OutcomeBreakerOpen = "breaker_open"
)

// Metrics owns a private registry so tests can build as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	enrichmentResults   *prometheus.CounterVec
	modelCallDuration   prometheus.Histogram
	probeFailures       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000},
		}, []string{"route", "method", "status"}),
		enrichmentResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_results_total",
			Help:      "Enrichment attempts by outcome.",
		}, []string{"outcome"}),
		modelCallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Latency of calls to the generative model.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 9),
		}),
		probeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_probe_failures_total",
			Help:      "Failed dependency probes by dependency.",
		}, []string{"dependency"}),
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpRequestDuration,
		m.enrichmentResults,
		m.modelCallDuration,
		m.probeFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) RecordHTTPRequest(route, method string, status int, durationMs float64) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(route, method, code).Inc()
	m.httpRequestDuration.WithLabelValues(route, method, code).Observe(durationMs)
}

func (m *Metrics) RecordEnrichment(outcome string) {
	if m == nil {
		return
	}
	m.enrichmentResults.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveModelCall(seconds float64) {
	if m == nil {
		return
	}
	m.modelCallDuration.Observe(seconds)
}

func (m *Metrics) RecordProbeFailure(dependency string) {
	if m == nil {
		return
	}
	m.probeFailures.WithLabelValues(dependency).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
