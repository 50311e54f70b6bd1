// Package outbound defines the outbound port interfaces used by the
// interceptor core to reach the upstream service and the local host.
package outbound

import "context"

// SettingsQuerier asks the upstream control service for its configuration.
// Adapters implement this over the upstream's HTTP or raw TCP JSON-RPC
// interfaces.
type SettingsQuerier interface {
	// QueryPort returns the port the upstream web server listens on.
	QueryPort(ctx context.Context) (int, error)
}

// PrivilegedExecutor performs the local action for an authorized dangerous
// method. It takes no arguments; what it does is opaque to the core.
type PrivilegedExecutor interface {
	Execute(ctx context.Context) error
}
