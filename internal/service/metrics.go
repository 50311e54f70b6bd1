package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics recorded by the interceptor core.
// A nil *Metrics disables recording.
type Metrics struct {
	ForwardsTotal       *prometheus.CounterVec
	InterceptionsTotal  *prometheus.CounterVec
	RewritesTotal       *prometheus.CounterVec
	AuthorizationsTotal *prometheus.CounterVec
	ExecutionsTotal     *prometheus.CounterVec
	ResolutionsTotal    *prometheus.CounterVec
	InvalidationsTotal  prometheus.Counter
}

// NewMetrics creates and registers the core metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ForwardsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "control_interceptor",
				Name:      "forwards_total",
				Help:      "Requests forwarded upstream by outcome",
			},
			[]string{"outcome"}, // ok/upstream_error/unavailable/resolve_error/relay_error
		),
		InterceptionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "control_interceptor",
				Name:      "interceptions_total",
				Help:      "Control-path requests by decode result",
			},
			[]string{"result"}, // decoded/passthrough
		),
		RewritesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "control_interceptor",
				Name:      "rewrites_total",
				Help:      "Envelopes rewritten by rule",
			},
			[]string{"rule"},
		),
		AuthorizationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "control_interceptor",
				Name:      "authorizations_total",
				Help:      "Permission checks for dangerous methods",
			},
			[]string{"result"}, // granted/denied
		),
		ExecutionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "control_interceptor",
				Name:      "executions_total",
				Help:      "Privileged actions run after authorization",
			},
			[]string{"result"}, // ok/error
		),
		ResolutionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "control_interceptor",
				Name:      "resolutions_total",
				Help:      "Upstream port discovery attempts",
			},
			[]string{"result"}, // ok/error
		),
		InvalidationsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "control_interceptor",
				Name:      "endpoint_invalidations_total",
				Help:      "Cached upstream endpoints dropped after transport failures",
			},
		),
	}
}

func (m *Metrics) incForward(outcome string) {
	if m != nil {
		m.ForwardsTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) incInterception(result string) {
	if m != nil {
		m.InterceptionsTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) incRewrite(rule string) {
	if m != nil {
		m.RewritesTotal.WithLabelValues(rule).Inc()
	}
}

func (m *Metrics) incAuthorization(granted bool) {
	if m == nil {
		return
	}
	result := "denied"
	if granted {
		result = "granted"
	}
	m.AuthorizationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) incExecution(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ExecutionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) incResolution(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ResolutionsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) incInvalidation() {
	if m != nil {
		m.InvalidationsTotal.Inc()
	}
}
