package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPDurationBuckets are latency buckets suited to API requests
var HTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// HTTPMetrics holds the HTTP server instruments
type HTTPMetrics struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
}

// NewHTTPMetrics registers the HTTP server metrics on the provided registerer
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_server_request_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_server_request_duration_seconds",
			Help:      "HTTP request latency distribution in seconds.",
			Buckets:   HTTPDurationBuckets,
		}, []string{"method", "route"}),
		responseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_server_response_size_bytes",
			Help:      "HTTP response body size distribution in bytes.",
			Buckets:   []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
		}, []string{"method", "route"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "http_server_active_requests",
			Help:      "Number of currently active HTTP requests.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requestTotal, m.requestDuration, m.responseSize, m.activeRequests)
	}
	return m
}

// RequestStarted marks a request as in flight
func (m *HTTPMetrics) RequestStarted() {
	m.activeRequests.Inc()
}

// RequestFinished records a completed request
func (m *HTTPMetrics) RequestFinished(method, route string, status int, duration time.Duration, responseSize int) {
	m.activeRequests.Dec()
	m.requestTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	if responseSize > 0 {
		m.responseSize.WithLabelValues(method, route).Observe(float64(responseSize))
	}
}
