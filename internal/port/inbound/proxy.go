// Package inbound defines the inbound port interfaces for the interceptor.
// Inbound adapters (the HTTP listener) implement these.
package inbound

import (
	"context"
)

// ProxyService is the inbound port for a running interceptor listener.
type ProxyService interface {
	// Start accepts connections until ctx is cancelled, then drains
	// in-flight requests. Returns nil on graceful shutdown.
	Start(ctx context.Context) error

	// Close shuts the listener down and waits for in-flight requests.
	Close() error
}
