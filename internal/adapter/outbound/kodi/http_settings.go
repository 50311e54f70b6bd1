package kodi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/rabits/control-interceptor/internal/port/outbound"
	"github.com/rabits/control-interceptor/pkg/rpc"
)

// DefaultSettingsURL is the upstream's JSON-RPC endpoint on its default
// web server port.
const DefaultSettingsURL = "http://127.0.0.1:8080/jsonrpc"

// HTTPSettingsClient queries upstream settings with a JSON-RPC POST.
// It implements outbound.SettingsQuerier.
type HTTPSettingsClient struct {
	url        string
	setting    string
	httpClient *http.Client
	logger     *slog.Logger
	nextID     atomic.Int64
}

// HTTPOption configures an HTTPSettingsClient.
type HTTPOption func(*HTTPSettingsClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *HTTPSettingsClient) {
		c.httpClient = client
	}
}

// WithSetting overrides the queried setting name.
func WithSetting(setting string) HTTPOption {
	return func(c *HTTPSettingsClient) {
		if setting != "" {
			c.setting = setting
		}
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(c *HTTPSettingsClient) {
		c.logger = logger
	}
}

// NewHTTPSettingsClient creates a client posting to url. The caller bounds
// each query through the context passed to QueryPort.
func NewHTTPSettingsClient(url string, opts ...HTTPOption) *HTTPSettingsClient {
	if url == "" {
		url = DefaultSettingsURL
	}
	c := &HTTPSettingsClient{
		url:     url,
		setting: DefaultPortSetting,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        2,
				MaxIdleConnsPerHost: 1,
			},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryPort asks the upstream which port its web server listens on.
func (c *HTTPSettingsClient) QueryPort(ctx context.Context) (int, error) {
	body, id, err := rpc.NewSettingValueRequest(c.nextID.Add(1), c.setting)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	value, err := rpc.DecodeSettingValue(respBody, id)
	if err != nil {
		return 0, err
	}
	port, err := parsePort(value)
	if err != nil {
		return 0, err
	}
	c.logger.Debug("queried upstream setting", "setting", c.setting, "value", port, "url", c.url)
	return port, nil
}

// Close releases idle connections.
func (c *HTTPSettingsClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ outbound.SettingsQuerier = (*HTTPSettingsClient)(nil)
