package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rabits/control-interceptor/internal/ctxkey"
)

const (
	// DefaultForwardTimeout bounds connecting to the upstream and waiting
	// for its response headers.
	DefaultForwardTimeout = 5 * time.Second

	// maxCaptureSize caps how much of a response body is kept for
	// inspection. Larger bodies are still relayed in full.
	maxCaptureSize = 10 * 1024 * 1024 // 10MB
)

var (
	// ErrUpstreamStatus means the upstream answered with a status >= 400.
	// The response has already been relayed to the caller.
	ErrUpstreamStatus = errors.New("upstream returned an error status")

	// ErrUpstreamUnavailable means the request never got a response
	// (connection refused or reset, timeout). Nothing was written to the
	// caller and the cached endpoint was invalidated.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrResolve means the upstream endpoint could not be discovered.
	// Nothing was written to the caller.
	ErrResolve = errors.New("failed to resolve upstream endpoint")

	// ErrRequestBody means the inbound body could not be read.
	ErrRequestBody = errors.New("failed to read request body")
)

// RequestForwarder relays a request to the upstream and its response back.
type RequestForwarder interface {
	Forward(w http.ResponseWriter, r *http.Request, body []byte, capture bool) ([]byte, error)
}

// Forwarder sends requests to the resolved upstream endpoint and relays the
// responses verbatim.
type Forwarder struct {
	resolver EndpointResolver
	client   *http.Client
	logger   *slog.Logger
	metrics  *Metrics
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

// WithHTTPClient replaces the outbound client.
func WithHTTPClient(client *http.Client) ForwarderOption {
	return func(f *Forwarder) {
		f.client = client
	}
}

// WithForwardTimeout rebuilds the outbound client with timeout d applied to
// dialing and to waiting for response headers.
func WithForwardTimeout(d time.Duration) ForwarderOption {
	return func(f *Forwarder) {
		if d > 0 {
			f.client = newUpstreamClient(d)
		}
	}
}

// WithForwarderLogger sets the logger.
func WithForwarderLogger(logger *slog.Logger) ForwarderOption {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// WithForwarderMetrics enables metric recording.
func WithForwarderMetrics(m *Metrics) ForwarderOption {
	return func(f *Forwarder) {
		f.metrics = m
	}
}

// NewForwarder creates a forwarder resolving its target through resolver.
func NewForwarder(resolver EndpointResolver, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		resolver: resolver,
		client:   newUpstreamClient(DefaultForwardTimeout),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// newUpstreamClient builds a client that never follows redirects or
// negotiates compression, so upstream bytes reach the caller unchanged.
// The body is streamed without a total deadline.
func newUpstreamClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: timeout,
		DisableCompression:    true,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// ServeHTTP forwards r unchanged. Callers get 502 when the upstream cannot
// be reached.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, err := f.Forward(w, r, nil, false)
	switch {
	case errors.Is(err, ErrRequestBody):
		http.Error(w, "failed to read request body", http.StatusBadRequest)
	case errors.Is(err, ErrResolve), errors.Is(err, ErrUpstreamUnavailable):
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}
}

// Forward sends r to the upstream with body, or with r's own body when body
// is nil. The Host header is dropped and Content-Length is recomputed.
//
// The upstream status, headers and body are written to w. When capture is
// true and the upstream succeeded, the body is also returned.
// ErrRequestBody, ErrResolve and ErrUpstreamUnavailable leave w untouched.
// ErrUpstreamStatus and body relay failures are reported after w was written.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, body []byte, capture bool) ([]byte, error) {
	ctx, span := tracer.Start(r.Context(), "forwarder.forward",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
		),
	)
	defer span.End()

	logger := ctxkey.LoggerFrom(ctx, f.logger)

	if body == nil && r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			span.SetStatus(codes.Error, "read request body")
			return nil, fmt.Errorf("%w: %v", ErrRequestBody, err)
		}
	}

	endpoint, err := f.resolver.Resolve(ctx)
	if err != nil {
		logger.Error("failed to resolve upstream endpoint", "error", err)
		f.metrics.incForward("resolve_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve")
		return nil, fmt.Errorf("%w: %v", ErrResolve, err)
	}

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}
	target := endpoint.URL(r.URL.RequestURI())
	outReq, err := http.NewRequestWithContext(ctx, r.Method, target, bodyReader)
	if err != nil {
		f.metrics.incForward("unavailable")
		span.SetStatus(codes.Error, "build request")
		return nil, fmt.Errorf("%w: failed to build request: %v", ErrUpstreamUnavailable, err)
	}

	outReq.Header = r.Header.Clone()
	if outReq.Header == nil {
		outReq.Header = make(http.Header)
	}
	outReq.Header.Del("Host")
	outReq.Header.Del("Content-Length")
	outReq.ContentLength = int64(len(body))

	resp, err := f.client.Do(outReq)
	if err != nil {
		logger.Warn("upstream request failed", "url", target, "error", err)
		f.resolver.Invalidate(endpoint)
		f.metrics.incForward("unavailable")
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	upstreamFailed := resp.StatusCode >= http.StatusBadRequest

	var captured *captureBuffer
	var dst io.Writer = w
	if capture && !upstreamFailed {
		captured = &captureBuffer{limit: maxCaptureSize}
		dst = io.MultiWriter(w, captured)
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		logger.Warn("failed to relay upstream response body", "url", target, "error", err)
		f.metrics.incForward("relay_error")
		span.SetStatus(codes.Error, "relay body")
		return nil, fmt.Errorf("failed to relay response body: %w", err)
	}
	// The caller must have the whole response before the interceptor runs
	// anything slow after Forward returns.
	if err := http.NewResponseController(w).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Debug("failed to flush relayed response", "error", err)
	}

	if upstreamFailed {
		f.metrics.incForward("upstream_error")
		span.SetStatus(codes.Error, resp.Status)
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	f.metrics.incForward("ok")
	return captured.Bytes(), nil
}

// captureBuffer keeps a copy of a relayed body up to limit bytes. Once the
// limit is exceeded it keeps nothing.
type captureBuffer struct {
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (c *captureBuffer) Write(p []byte) (int, error) {
	if c.overflow {
		return len(p), nil
	}
	if c.buf.Len()+len(p) > c.limit {
		c.overflow = true
		c.buf.Reset()
		return len(p), nil
	}
	return c.buf.Write(p)
}

// Bytes returns the captured body, or nil when nothing was captured.
func (c *captureBuffer) Bytes() []byte {
	if c == nil || c.overflow {
		return nil
	}
	return c.buf.Bytes()
}

// Close releases idle upstream connections.
func (f *Forwarder) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Compile-time check that Forwarder implements RequestForwarder.
var _ RequestForwarder = (*Forwarder)(nil)
