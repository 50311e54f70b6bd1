package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rabits/control-interceptor/internal/ctxkey"
	"github.com/rabits/control-interceptor/internal/domain/proxy"
	"github.com/rabits/control-interceptor/internal/port/outbound"
	"github.com/rabits/control-interceptor/pkg/rpc"
)

const (
	// DefaultExecutorTimeout bounds a privileged action.
	DefaultExecutorTimeout = 30 * time.Second

	// codeUpstreamUnavailable is the JSON-RPC error code returned when the
	// upstream cannot be reached.
	codeUpstreamUnavailable = -32000

	// codeInternalError is the JSON-RPC internal error code.
	codeInternalError = -32603
)

// Interceptor handles control-protocol requests: it stubs dangerous methods,
// rewrites disallowed content sources, forwards the result, and runs the
// privileged executor when the upstream grants GUI control for a stubbed
// dangerous method.
type Interceptor struct {
	forwarder   RequestForwarder
	executor    outbound.PrivilegedExecutor
	rules       proxy.MessageInterceptor
	execTimeout time.Duration
	logger      *slog.Logger
	metrics     *Metrics
}

// InterceptorOption configures an Interceptor.
type InterceptorOption func(*Interceptor)

// WithRules replaces the default rule chain.
func WithRules(rules proxy.MessageInterceptor) InterceptorOption {
	return func(i *Interceptor) {
		i.rules = rules
	}
}

// WithExecutorTimeout bounds each privileged action.
func WithExecutorTimeout(d time.Duration) InterceptorOption {
	return func(i *Interceptor) {
		if d > 0 {
			i.execTimeout = d
		}
	}
}

// WithInterceptorLogger sets the logger.
func WithInterceptorLogger(logger *slog.Logger) InterceptorOption {
	return func(i *Interceptor) {
		i.logger = logger
	}
}

// WithInterceptorMetrics enables metric recording.
func WithInterceptorMetrics(m *Metrics) InterceptorOption {
	return func(i *Interceptor) {
		i.metrics = m
	}
}

// NewInterceptor creates an interceptor forwarding through forwarder and
// running executor for authorized dangerous methods.
func NewInterceptor(forwarder RequestForwarder, executor outbound.PrivilegedExecutor, opts ...InterceptorOption) *Interceptor {
	i := &Interceptor{
		forwarder:   forwarder,
		executor:    executor,
		execTimeout: DefaultExecutorTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.rules == nil {
		i.rules = proxy.NewDefaultRuleChain(proxy.WithApplyHook(i.metrics.incRewrite))
	}
	return i
}

// ServeHTTP intercepts a single control-protocol request.
func (i *Interceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "interceptor.intercept")
	defer span.End()
	r = r.WithContext(ctx)

	logger := ctxkey.LoggerFrom(ctx, i.logger)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Warn("failed to read control request body", "error", err)
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	env, err := rpc.Decode(body)
	if err != nil {
		logger.Debug("forwarding undecodable control request unchanged", "error", err)
		i.metrics.incInterception("passthrough")
		span.SetAttributes(attribute.Bool("rpc.decoded", false))
		_, err := i.forwarder.Forward(w, r, body, false)
		i.handleForwardError(w, nil, err, logger)
		return
	}
	i.metrics.incInterception("decoded")

	method := env.Method()
	logger.Debug("jsonrpc request", "method", method, "body", string(body))

	rewritten, err := i.rules.Intercept(ctx, env)
	if err != nil {
		// Never fall back to the original body: it may carry a dangerous
		// method that must not reach the upstream unstubbed.
		logger.Error("failed to apply interception rules", "method", method, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "rules")
		writeRPCError(w, http.StatusInternalServerError, env, codeInternalError, "internal error")
		return
	}
	env = rewritten

	forwarded := env.Method()
	span.SetAttributes(
		attribute.Bool("rpc.decoded", true),
		attribute.String("rpc.method", method),
		attribute.String("rpc.forwarded_method", forwarded),
	)
	if forwarded != method {
		logger.Debug("stubbed dangerous method", "method", method, "forwarded", forwarded)
	}

	response, err := i.forwarder.Forward(w, r, env.Bytes(), true)
	if err != nil {
		i.handleForwardError(w, env, err, logger)
		return
	}

	if !proxy.IsDangerous(method) {
		return
	}

	granted := rpc.Authorized(response)
	i.metrics.incAuthorization(granted)
	span.SetAttributes(attribute.Bool("rpc.authorized", granted))
	if !granted {
		logger.Info("permission denied for dangerous method", "method", method)
		return
	}

	i.execute(ctx, method, logger)
}

// execute runs the privileged executor. The response was already relayed, so
// the caller disconnecting must not cancel it.
func (i *Interceptor) execute(ctx context.Context, method string, logger *slog.Logger) {
	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.execTimeout)
	defer cancel()

	logger.Info("executing privileged action", "method", method)
	err := i.executor.Execute(execCtx)
	i.metrics.incExecution(err)
	if err != nil {
		logger.Error("privileged action failed", "method", method, "error", err)
	}
}

// handleForwardError answers the caller when the forwarder could not.
// Upstream error statuses were already relayed and need nothing more.
func (i *Interceptor) handleForwardError(w http.ResponseWriter, env *rpc.Envelope, err error, logger *slog.Logger) {
	switch {
	case err == nil:
	case errors.Is(err, ErrRequestBody):
		http.Error(w, "failed to read request body", http.StatusBadRequest)
	case errors.Is(err, ErrResolve), errors.Is(err, ErrUpstreamUnavailable):
		if env == nil {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		writeRPCError(w, http.StatusBadGateway, env, codeUpstreamUnavailable, "upstream unavailable")
	case errors.Is(err, ErrUpstreamStatus):
		logger.Debug("upstream rejected control request", "error", err)
	default:
		logger.Debug("control request relay incomplete", "error", err)
	}
}

// writeRPCError answers with a JSON-RPC error carrying the request's id.
func writeRPCError(w http.ResponseWriter, status int, env *rpc.Envelope, code int64, message string) {
	var id []byte
	if env != nil {
		id = env.ID()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(rpc.ErrorResponse(id, code, message))
}
