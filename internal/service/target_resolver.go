// Package service contains the interceptor core: endpoint resolution,
// forwarding, and control-protocol interception.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rabits/control-interceptor/internal/domain/upstream"
	"github.com/rabits/control-interceptor/internal/port/outbound"
)

// tracer is the OTEL tracer used by the interceptor core.
var tracer = otel.Tracer("control-interceptor/service")

// defaultDiscoveryTimeout bounds a settings query when none is configured.
const defaultDiscoveryTimeout = 10 * time.Second

// EndpointResolver hands out the upstream endpoint and forgets it when it
// goes stale.
type EndpointResolver interface {
	Resolve(ctx context.Context) (upstream.Endpoint, error)
	// Invalidate forgets stale if it is still the cached endpoint.
	Invalidate(stale upstream.Endpoint)
}

// TargetResolver discovers the upstream web server port by asking the
// upstream itself and caches it for the life of the process.
type TargetResolver struct {
	querier outbound.SettingsQuerier
	host    string
	timeout time.Duration
	logger  *slog.Logger
	metrics *Metrics

	// mu guards endpoint and serializes discovery, so concurrent callers
	// that find the cache empty trigger a single settings query.
	mu       sync.Mutex
	endpoint upstream.Endpoint
}

// ResolverOption configures a TargetResolver.
type ResolverOption func(*TargetResolver)

// WithResolverHost sets the host the resolved port is paired with.
func WithResolverHost(host string) ResolverOption {
	return func(r *TargetResolver) {
		r.host = host
	}
}

// WithDiscoveryTimeout bounds each settings query.
func WithDiscoveryTimeout(d time.Duration) ResolverOption {
	return func(r *TargetResolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *TargetResolver) {
		r.logger = logger
	}
}

// WithResolverMetrics enables metric recording.
func WithResolverMetrics(m *Metrics) ResolverOption {
	return func(r *TargetResolver) {
		r.metrics = m
	}
}

// NewTargetResolver creates a resolver backed by querier.
func NewTargetResolver(querier outbound.SettingsQuerier, opts ...ResolverOption) *TargetResolver {
	r := &TargetResolver{
		querier: querier,
		host:    upstream.LoopbackHost,
		timeout: defaultDiscoveryTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the cached endpoint, querying the upstream when the cache
// is empty. A failed query is not retried; the next call tries again.
func (r *TargetResolver) Resolve(ctx context.Context) (upstream.Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.endpoint.IsZero() {
		return r.endpoint, nil
	}

	ctx, span := tracer.Start(ctx, "resolver.resolve")
	defer span.End()

	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	port, err := r.querier.QueryPort(queryCtx)
	if err == nil {
		var ep upstream.Endpoint
		ep, err = upstream.NewEndpoint(r.host, port)
		if err == nil {
			r.endpoint = ep
		}
	}
	r.metrics.incResolution(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolution failed")
		return upstream.Endpoint{}, fmt.Errorf("failed to query upstream port: %w", err)
	}

	span.SetAttributes(attribute.Int("upstream.port", r.endpoint.Port))
	r.logger.Info("target port set", "port", r.endpoint.Port)
	return r.endpoint, nil
}

// Invalidate drops the cached endpoint so the next Resolve re-queries. It
// does nothing when the cache already holds a different endpoint, so a late
// failure against an old port cannot evict a freshly resolved one.
func (r *TargetResolver) Invalidate(stale upstream.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.endpoint.IsZero() || r.endpoint != stale {
		return
	}
	r.logger.Debug("upstream endpoint invalidated", "port", r.endpoint.Port)
	r.endpoint = upstream.Endpoint{}
	r.metrics.incInvalidation()
}

// Cached returns the current endpoint without resolving.
func (r *TargetResolver) Cached() (upstream.Endpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endpoint, !r.endpoint.IsZero()
}

// Compile-time check that TargetResolver implements EndpointResolver.
var _ EndpointResolver = (*TargetResolver)(nil)
