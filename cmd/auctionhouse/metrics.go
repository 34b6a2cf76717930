package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cloudx-io/auctionhouse/api"
)

// Metrics are the service's prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Errors          *prometheus.CounterVec
	LotsCreated     *prometheus.CounterVec
	Settlements     prometheus.Counter
	WorkersBusy     prometheus.Gauge
	Rejected        prometheus.Counter
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "auctionhouse",
				Subsystem: "service",
				Name:      "requests_total",
				Help:      "Requests handled, by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "auctionhouse",
				Subsystem: "service",
				Name:      "request_duration_seconds",
				Help:      "Time taken to execute a request",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "auctionhouse",
				Subsystem: "engine",
				Name:      "errors_total",
				Help:      "Reverted operations, by error kind",
			},
			[]string{"kind"},
		),
		LotsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "auctionhouse",
				Subsystem: "engine",
				Name:      "lots_created_total",
				Help:      "Lots created, by auction module keycode",
			},
			[]string{"auction_type"},
		),
		Settlements: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "auctionhouse",
				Subsystem: "engine",
				Name:      "settlements_total",
				Help:      "Batch lots settled",
			},
		),
		WorkersBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "auctionhouse",
				Subsystem: "service",
				Name:      "workers_busy",
				Help:      "Connections currently being served",
			},
		),
		Rejected: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "auctionhouse",
				Subsystem: "service",
				Name:      "rejected_connections_total",
				Help:      "Connections rejected because the worker pool was full",
			},
		),
	}
}

// Observe records one handled request.
func (m *Metrics) Observe(reqType string, resp api.Response, elapsed time.Duration) {
	outcome := "ok"
	if !resp.Success {
		outcome = "error"
		m.Errors.WithLabelValues(resp.Kind).Inc()
	}
	m.Requests.WithLabelValues(reqType, outcome).Inc()
	m.RequestDuration.WithLabelValues(reqType).Observe(elapsed.Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
