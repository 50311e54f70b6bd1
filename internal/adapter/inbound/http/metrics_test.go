package http

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_FamilyNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RequestsTotal.WithLabelValues("GET", RoutePlain, "5xx").Inc()
	m.RequestDuration.WithLabelValues("GET", RoutePlain).Observe(0.25)
	m.RequestsInFlight.Set(2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	got := make(map[string]bool, len(families))
	for _, mf := range families {
		got[mf.GetName()] = true
	}
	for _, name := range []string{
		"control_interceptor_http_requests_total",
		"control_interceptor_http_request_duration_seconds",
		"control_interceptor_http_requests_in_flight",
	} {
		if !got[name] {
			t.Errorf("metric family %s not registered", name)
		}
	}
}

func TestMetrics_RoutesCountedSeparately(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RequestsTotal.WithLabelValues("POST", RouteIntercept, "2xx").Inc()
	m.RequestsTotal.WithLabelValues("POST", RouteIntercept, "2xx").Inc()
	m.RequestsTotal.WithLabelValues("POST", RoutePlain, "2xx").Inc()

	if n := testutil.CollectAndCount(m.RequestsTotal); n != 2 {
		t.Errorf("series = %d, want 2", n)
	}
	if v := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", RouteIntercept, "2xx")); v != 2 {
		t.Errorf("intercept count = %v, want 2", v)
	}
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	defer func() {
		if recover() == nil {
			t.Error("second NewMetrics on the same registry did not panic")
		}
	}()
	NewMetrics(reg)
}
