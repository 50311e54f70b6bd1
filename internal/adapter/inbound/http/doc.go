// Package http provides the inbound HTTP listener of the control interceptor.
//
// The listener accepts any method on any path. Requests are dispatched by the
// Router:
//
//	POST <control path>   - Interceptor (stub, rewrite, forward, authorize)
//	anything else         - Forwarder (byte-transparent relay)
//
// # Middleware Chain
//
// Requests pass through middleware in this order:
//
//  1. MetricsMiddleware - Records duration and status by route
//  2. RequestIDMiddleware - Extracts or generates X-Request-ID and enriches the logger
//  3. AccessLogMiddleware - Logs one debug line per request
//  4. Router
//
// # Admin Listener
//
// When an admin address is configured, /metrics and /health are served on a
// separate listener so that every path of the proxy listener reaches the
// upstream unchanged.
package http
