// Package metrics exposes the gateway's Prometheus metric families
// (spec.md §4.11).
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics holds the process-wide registry of gateway metrics. All
// collectors are safe for concurrent use (promauto-registered vectors are
// lock-free/sharded under the hood).
type Metrics struct {
	HTTPRequestsTotal       *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec
	ActiveConnections       prometheus.Gauge
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	CircuitBreakerState     *prometheus.GaugeVec
	CircuitBreakerTransitions *prometheus.CounterVec
	RateLimitHitsTotal      *prometheus.CounterVec
	RateLimitRemaining      *prometheus.GaugeVec
	HealthCheckStatus       *prometheus.GaugeVec
	RetryAttemptsTotal      *prometheus.CounterVec
}

// New registers and returns the gateway's metric family set.
func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of HTTP requests handled by the gateway.",
			},
			[]string{"tenant_id", "method", "route", "status_code"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "Duration of HTTP requests handled by the gateway.",
				Buckets: durationBuckets,
			},
			[]string{"tenant_id", "method", "route"},
		),
		ActiveConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_active_connections",
				Help: "Number of in-flight requests.",
			},
		),
		UpstreamRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_upstream_requests_total",
				Help: "Total number of requests forwarded to upstreams.",
			},
			[]string{"tenant_id", "upstream", "method", "status_code"},
		),
		UpstreamRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_upstream_request_duration_seconds",
				Help:    "Duration of requests forwarded to upstreams.",
				Buckets: durationBuckets,
			},
			[]string{"tenant_id", "upstream", "method"},
		),
		CircuitBreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_circuit_breaker_state",
				Help: "Current circuit breaker state (0=CLOSED, 1=OPEN, 2=HALF_OPEN).",
			},
			[]string{"tenant_id", "route_id", "upstream"},
		),
		CircuitBreakerTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_circuit_breaker_transitions_total",
				Help: "Total number of circuit breaker state transitions.",
			},
			[]string{"tenant_id", "route_id", "upstream", "from_state", "to_state"},
		),
		RateLimitHitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_rate_limit_hits_total",
				Help: "Total number of requests denied by the rate limiter.",
			},
			[]string{"tenant_id"},
		),
		RateLimitRemaining: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_rate_limit_remaining",
				Help: "Remaining requests in the current rate-limit window.",
			},
			[]string{"tenant_id"},
		),
		HealthCheckStatus: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_health_check_status",
				Help: "Upstream health status (0=unhealthy, 1=healthy).",
			},
			[]string{"tenant_id", "route_id", "upstream"},
		),
		RetryAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_retry_attempts_total",
				Help: "Total number of retry attempts made against upstreams.",
			},
			[]string{"tenant_id", "route_id", "attempt"},
		),
	}
}

// CircuitStateValue encodes a circuit state per spec.md §4.11.
func CircuitStateValue(state string) float64 {
	switch state {
	case "OPEN":
		return 1
	case "HALF_OPEN":
		return 2
	default:
		return 0
	}
}

// NormalizeUpstreamLabel strips the scheme and a trailing slash from an
// upstream URL for use as a metric label (spec.md §4.11).
func NormalizeUpstreamLabel(upstreamURL string) string {
	u := strings.TrimPrefix(upstreamURL, "https://")
	u = strings.TrimPrefix(u, "http://")
	return strings.TrimSuffix(u, "/")
}
