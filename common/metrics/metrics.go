package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics contains HTTP-related Prometheus metrics.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// DispatchMetrics tracks the dispatch fan-out and acceptance protocol (C6/C7).
type DispatchMetrics struct {
	PushesSent       prometheus.Counter
	PushesDropped    prometheus.Counter
	AcceptAttempts   *prometheus.CounterVec
	WatchdogReleases prometheus.Counter
}

// SessionMetrics tracks the session/rate-limit store (C1).
type SessionMetrics struct {
	RateLimitRejections prometheus.Counter
	LockContentions     prometheus.Counter
}

// NewHTTPMetrics creates HTTP metrics for a service.
func NewHTTPMetrics(serviceName string) *HTTPMetrics {
	return &HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    serviceName + "_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// NewDispatchMetrics creates dispatch/acceptance metrics for a service.
func NewDispatchMetrics(serviceName string) *DispatchMetrics {
	return &DispatchMetrics{
		PushesSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_dispatch_pushes_sent_total",
				Help: "Total number of dispatch pushes successfully sent to a driver channel",
			},
		),
		PushesDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_dispatch_pushes_dropped_total",
				Help: "Total number of dispatch pushes dropped (no channel registered)",
			},
		),
		AcceptAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_accept_attempts_total",
				Help: "Driver acceptance attempts by outcome",
			},
			[]string{"outcome"},
		),
		WatchdogReleases: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_watchdog_releases_total",
				Help: "Total number of drivers released from a stuck en_servicio state",
			},
		),
	}
}

// NewSessionMetrics creates session-store metrics for a service.
func NewSessionMetrics(serviceName string) *SessionMetrics {
	return &SessionMetrics{
		RateLimitRejections: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_rate_limit_rejections_total",
				Help: "Total number of requests rejected by the sliding-window rate limiter",
			},
		),
		LockContentions: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_processing_lock_contentions_total",
				Help: "Total number of failed processing-lock acquisitions",
			},
		),
	}
}

// RecordHTTPRequest records an HTTP request metric.
func (m *HTTPMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
