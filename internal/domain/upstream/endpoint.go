// Package upstream contains domain types for the proxied control service.
package upstream

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// LoopbackHost is where the upstream control service is reached.
const LoopbackHost = "127.0.0.1"

// ErrInvalidPort is returned for ports outside 1..65535.
var ErrInvalidPort = errors.New("invalid upstream port")

// Endpoint is the resolved address of the upstream control service.
// The zero value means "not resolved yet".
type Endpoint struct {
	Host string
	Port int
}

// NewEndpoint validates port and builds an Endpoint on host.
func NewEndpoint(host string, port int) (Endpoint, error) {
	if port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	if host == "" {
		host = LoopbackHost
	}
	return Endpoint{Host: host, Port: port}, nil
}

// IsZero reports whether the endpoint is unresolved.
func (e Endpoint) IsZero() bool {
	return e.Port == 0
}

// Addr returns the endpoint as host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// URL returns the plain-HTTP URL for requestURI (path plus optional query).
func (e Endpoint) URL(requestURI string) string {
	return "http://" + e.Addr() + requestURI
}
