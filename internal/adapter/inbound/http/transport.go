package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rabits/control-interceptor/internal/port/inbound"
)

const (
	// DefaultAddr is the proxy listener address.
	DefaultAddr = "0.0.0.0:8090"

	// DefaultShutdownTimeout bounds draining of in-flight requests.
	DefaultShutdownTimeout = 10 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// HTTPTransport is the inbound adapter accepting proxied HTTP requests.
// It implements the inbound.ProxyService interface.
type HTTPTransport struct {
	router          *Router
	addr            string
	adminAddr       string
	listener        net.Listener
	adminListener   net.Listener
	registry        *prometheus.Registry
	metrics         *Metrics
	healthChecker   *HealthChecker
	shutdownTimeout time.Duration
	logger          *slog.Logger

	mu          sync.Mutex
	server      *http.Server
	adminServer *http.Server
	closeOnce   sync.Once
	closeErr    error
}

// Option is a functional option for configuring HTTPTransport.
type Option func(*HTTPTransport)

// WithAddr sets the listen address for the proxy listener.
// Default is "0.0.0.0:8090".
func WithAddr(addr string) Option {
	return func(t *HTTPTransport) {
		t.addr = addr
	}
}

// WithListener serves on an already bound listener instead of WithAddr.
func WithListener(ln net.Listener) Option {
	return func(t *HTTPTransport) {
		t.listener = ln
	}
}

// WithAdminAddr enables the admin listener serving /metrics and /health.
// Empty disables it.
func WithAdminAddr(addr string) Option {
	return func(t *HTTPTransport) {
		t.adminAddr = addr
	}
}

// WithAdminListener serves the admin endpoints on an already bound listener.
func WithAdminListener(ln net.Listener) Option {
	return func(t *HTTPTransport) {
		t.adminListener = ln
	}
}

// WithRegistry sets the Prometheus registry exposed on /metrics.
// The transport registers its own metrics on it.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(t *HTTPTransport) {
		t.registry = reg
	}
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(t *HTTPTransport) {
		t.healthChecker = hc
	}
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(t *HTTPTransport) {
		if d > 0 {
			t.shutdownTimeout = d
		}
	}
}

// WithLogger sets the logger for the HTTP transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// NewHTTPTransport creates an HTTP transport dispatching through router.
func NewHTTPTransport(router *Router, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		router:          router,
		addr:            DefaultAddr,
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.registry == nil {
		t.registry = prometheus.NewRegistry()
		t.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	t.metrics = NewMetrics(t.registry)

	return t
}

// Handler returns the proxy handler with its middleware chain:
// Metrics -> RequestID -> AccessLog -> Router.
func (t *HTTPTransport) Handler() http.Handler {
	var h http.Handler = t.router
	h = AccessLogMiddleware(h)
	h = RequestIDMiddleware(t.logger)(h)
	h = MetricsMiddleware(t.metrics, t.router.Route)(h)
	return h
}

// AdminHandler returns the handler of the admin listener.
func (t *HTTPTransport) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	if t.healthChecker != nil {
		mux.Handle("/health", t.healthChecker.Handler())
	} else {
		mux.Handle("/health", healthHandler())
	}
	mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{
		Registry: t.registry,
	}))
	return mux
}

// Start binds the listeners and serves until ctx is cancelled, then drains
// in-flight requests. Failing to bind is returned immediately.
func (t *HTTPTransport) Start(ctx context.Context) error {
	ln := t.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", t.addr)
		if err != nil {
			return fmt.Errorf("failed to bind %s: %w", t.addr, err)
		}
	}

	adminLn := t.adminListener
	if adminLn == nil && t.adminAddr != "" {
		var err error
		adminLn, err = net.Listen("tcp", t.adminAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to bind admin %s: %w", t.adminAddr, err)
		}
	}

	errorLog := slog.NewLogLogger(t.logger.Handler(), slog.LevelDebug)

	t.mu.Lock()
	t.server = &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          errorLog,
	}
	if adminLn != nil {
		t.adminServer = &http.Server{
			Handler:           t.AdminHandler(),
			ReadHeaderTimeout: readHeaderTimeout,
			ErrorLog:          errorLog,
		}
	}
	server, adminServer := t.server, t.adminServer
	t.mu.Unlock()

	errCh := make(chan error, 2)

	go func() {
		t.logger.Info("control interceptor started", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if adminServer != nil {
		go func() {
			t.logger.Info("admin endpoint started", "addr", adminLn.Addr().String())
			if err := adminServer.Serve(adminLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("admin: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down listener")
		return t.Close()
	case err := <-errCh:
		_ = t.Close()
		return err
	}
}

// Close stops accepting connections and waits for in-flight requests, bounded
// by the shutdown timeout. It is safe to call more than once.
func (t *HTTPTransport) Close() error {
	t.mu.Lock()
	server, adminServer := t.server, t.adminServer
	t.mu.Unlock()

	if server == nil {
		return nil
	}

	t.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.shutdownTimeout)
		defer cancel()

		var errs []error
		if adminServer != nil {
			if err := adminServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("admin shutdown: %w", err))
			}
		}
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown: %w", err))
		}
		t.closeErr = errors.Join(errs...)
		if t.closeErr != nil {
			t.logger.Error("error during listener shutdown", "error", t.closeErr)
			return
		}
		t.logger.Info("listener shutdown complete")
	})
	return t.closeErr
}

// Registry returns the Prometheus registry served on /metrics.
func (t *HTTPTransport) Registry() *prometheus.Registry {
	return t.registry
}

// Compile-time check that HTTPTransport implements ProxyService interface.
var _ inbound.ProxyService = (*HTTPTransport)(nil)
