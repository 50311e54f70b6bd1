package kodi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/rabits/control-interceptor/internal/port/outbound"
	"github.com/rabits/control-interceptor/pkg/rpc"
)

// DefaultSettingsAddr is the upstream's raw TCP JSON-RPC socket.
const DefaultSettingsAddr = "127.0.0.1:9090"

// TCPSettingsClient queries upstream settings over the raw TCP JSON-RPC
// socket. The socket carries a stream of JSON objects without delimiters and
// interleaves server notifications with responses, so messages are decoded
// one at a time until the matching response arrives.
// It implements outbound.SettingsQuerier.
type TCPSettingsClient struct {
	addr    string
	setting string
	dialer  net.Dialer
	logger  *slog.Logger
	nextID  atomic.Int64
}

// TCPOption configures a TCPSettingsClient.
type TCPOption func(*TCPSettingsClient)

// WithTCPSetting overrides the queried setting name.
func WithTCPSetting(setting string) TCPOption {
	return func(c *TCPSettingsClient) {
		if setting != "" {
			c.setting = setting
		}
	}
}

// WithTCPLogger sets the logger.
func WithTCPLogger(logger *slog.Logger) TCPOption {
	return func(c *TCPSettingsClient) {
		c.logger = logger
	}
}

// NewTCPSettingsClient creates a client dialing addr for each query.
func NewTCPSettingsClient(addr string, opts ...TCPOption) *TCPSettingsClient {
	if addr == "" {
		addr = DefaultSettingsAddr
	}
	c := &TCPSettingsClient{
		addr:    addr,
		setting: DefaultPortSetting,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryPort asks the upstream which port its web server listens on.
func (c *TCPSettingsClient) QueryPort(ctx context.Context) (int, error) {
	body, id, err := rpc.NewSettingValueRequest(c.nextID.Add(1), c.setting)
	if err != nil {
		return 0, err
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write(body); err != nil {
		return 0, wrapIOError(ctx, "write request", err)
	}

	dec := json.NewDecoder(conn)
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return 0, wrapIOError(ctx, "read response", err)
		}

		value, err := rpc.DecodeSettingValue(raw, id)
		if errors.Is(err, rpc.ErrUnrelated) {
			c.logger.Debug("skipping unrelated upstream message", "message", string(raw))
			continue
		}
		if err != nil {
			return 0, err
		}

		port, err := parsePort(value)
		if err != nil {
			return 0, err
		}
		c.logger.Debug("queried upstream setting", "setting", c.setting, "value", port, "addr", c.addr)
		return port, nil
	}
}

// wrapIOError prefers the context error when the deadline set from the
// context is what interrupted the connection.
func wrapIOError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ outbound.SettingsQuerier = (*TCPSettingsClient)(nil)
