package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the proxy listener.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "control_interceptor",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of proxied requests",
			},
			[]string{"method", "route", "status"}, // route=intercept/plain, status=2xx/4xx/...
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "control_interceptor",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds, upstream time included",
				Buckets:   prometheus.DefBuckets, // 5ms to 10s
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "control_interceptor",
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Requests currently being served",
			},
		),
	}
}
