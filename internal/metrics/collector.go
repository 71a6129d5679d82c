package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/chatrelay/relay/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

// Collector owns the relay's Prometheus metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	upstreamErrors  *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

// NewCollector returns nil when metrics are disabled. If registry is nil a
// fresh one is created.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if !cfg.Enabled {
		return nil
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Relay requests by provider and response status",
			},
			[]string{"provider", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "End to end relay request latency",
				// LLM calls range from sub-second to the upstream timeout
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		),
		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_errors_total",
				Help:      "Failed provider calls by failure type",
			},
			[]string{"provider", "type"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
	}

	registry.MustRegister(c.requests, c.requestDuration, c.upstreamErrors, c.rateLimited)
	return c
}

func (c *Collector) RecordRequest(provider string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(provider, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (c *Collector) RecordUpstreamError(provider, errType string) {
	if c == nil {
		return
	}
	c.upstreamErrors.WithLabelValues(provider, errType).Inc()
}

func (c *Collector) RecordRateLimited(route string) {
	if c == nil {
		return
	}
	c.rateLimited.WithLabelValues(route).Inc()
}

// Handler exposes the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
