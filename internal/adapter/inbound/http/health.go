package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/rabits/control-interceptor/internal/domain/upstream"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`                  // "healthy"
	Checks       map[string]string `json:"checks"`                  // Component check results
	UpstreamPort int               `json:"upstream_port,omitempty"` // Cached upstream port, if resolved
	Version      string            `json:"version,omitempty"`
}

// EndpointCache exposes the resolver's cached upstream endpoint without
// triggering discovery.
type EndpointCache interface {
	Cached() (upstream.Endpoint, bool)
}

// HealthChecker reports the interceptor's state.
type HealthChecker struct {
	cache   EndpointCache
	version string
}

// NewHealthChecker creates a HealthChecker. cache may be nil.
func NewHealthChecker(cache EndpointCache, version string) *HealthChecker {
	return &HealthChecker{
		cache:   cache,
		version: version,
	}
}

// Check reports the current state. An unresolved upstream is not a failure:
// discovery runs lazily on the first proxied request.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)
	resp := HealthResponse{
		Status:  "healthy",
		Checks:  checks,
		Version: h.version,
	}

	switch {
	case h.cache == nil:
		checks["upstream"] = "not configured"
	default:
		if ep, ok := h.cache.Cached(); ok {
			checks["upstream"] = "resolved: " + ep.Addr()
			resp.UpstreamPort = ep.Port
		} else {
			checks["upstream"] = "not resolved"
		}
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())
	return resp
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(health)
	})
}

// healthHandler is the fallback when no checker is configured.
func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}
