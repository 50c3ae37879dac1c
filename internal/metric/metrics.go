// Package metric provides Prometheus metrics for the gateway tier and the
// event workers.
package metric

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the platform-level collectors.
type Metrics struct {
	RequestsProxied     *prometheus.CounterVec
	RateLimitRejected   prometheus.Counter
	BreakerShortCircuit *prometheus.CounterVec
	EventsPublished     *prometheus.CounterVec
	EventsConsumed      *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers the platform metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		RequestsProxied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pos",
				Subsystem: "gateway",
				Name:      "requests_proxied_total",
				Help:      "Requests forwarded to a backend service",
			},
			[]string{"service", "status"},
		),
		RateLimitRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pos",
				Subsystem: "gateway",
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the fixed-window rate limiter",
			},
		),
		BreakerShortCircuit: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pos",
				Subsystem: "gateway",
				Name:      "breaker_short_circuits_total",
				Help:      "Requests rejected while a backend circuit was open",
			},
			[]string{"service"},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pos",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Domain events published to the bus",
			},
			[]string{"routing_key", "status"},
		),
		EventsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pos",
				Subsystem: "events",
				Name:      "consumed_total",
				Help:      "Domain events handled by a consumer",
			},
			[]string{"routing_key", "result"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.RequestsProxied,
		m.RateLimitRejected,
		m.BreakerShortCircuit,
		m.EventsPublished,
		m.EventsConsumed,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve blocks exposing /metrics on its own port. Used by the binaries
// whose main listener carries application traffic, or none at all.
func (m *Metrics) Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
