// Package config provides configuration types for the control interceptor.
//
// The configuration is file-based (YAML) with environment overrides. Only
// debug_enable and log.level take effect on hot reload; everything else is
// read once at start.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration.
type Config struct {
	// ListenPort is the port the proxy listener binds.
	ListenPort int `yaml:"listen_port" mapstructure:"listen_port" validate:"min=1,max=65535"`

	// DebugEnable forces debug logging regardless of log.level.
	DebugEnable bool `yaml:"debug_enable" mapstructure:"debug_enable"`

	// Server configures the proxy listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Upstream configures the proxied control service and its discovery.
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`

	// Executor configures the privileged action run after authorization.
	Executor ExecutorConfig `yaml:"executor" mapstructure:"executor"`

	// Admin configures the optional /metrics and /health listener.
	Admin AdminConfig `yaml:"admin" mapstructure:"admin"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log" mapstructure:"log"`

	// Tracing configures OpenTelemetry span export.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}

// ServerConfig configures the proxy listener.
type ServerConfig struct {
	// ListenHost is the interface to bind. Defaults to all interfaces.
	ListenHost string `yaml:"listen_host" mapstructure:"listen_host" validate:"omitempty,ip|hostname"`

	// ControlPath is the path whose POSTs are intercepted.
	ControlPath string `yaml:"control_path" mapstructure:"control_path" validate:"required,startswith=/"`

	// ShutdownTimeout bounds draining of in-flight requests (e.g., "10s").
	ShutdownTimeout string `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"required,duration"`
}

// UpstreamConfig configures the proxied control service.
type UpstreamConfig struct {
	// Host is where the upstream listens. Its port is discovered at runtime.
	Host string `yaml:"host" mapstructure:"host" validate:"required,ip|hostname"`

	// Timeout bounds connecting to the upstream and receiving response headers.
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"required,duration"`

	// Discovery configures the settings query that finds the upstream port.
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
}

// DiscoveryConfig configures upstream port discovery.
type DiscoveryConfig struct {
	// Transport selects how the settings query is sent: "http" or "tcp".
	Transport string `yaml:"transport" mapstructure:"transport" validate:"oneof=http tcp"`

	// URL is the JSON-RPC endpoint used by the http transport.
	URL string `yaml:"url" mapstructure:"url" validate:"omitempty,url"`

	// Addr is the raw JSON-RPC socket used by the tcp transport.
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`

	// Setting is the name of the setting holding the upstream port.
	Setting string `yaml:"setting" mapstructure:"setting" validate:"required"`

	// Timeout bounds one settings query.
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"required,duration"`
}

// ExecutorConfig configures the privileged action.
type ExecutorConfig struct {
	// Command is the executable to run. It is not passed through a shell.
	Command string `yaml:"command" mapstructure:"command" validate:"required"`

	// Args are passed to Command verbatim.
	Args []string `yaml:"args" mapstructure:"args"`

	// Timeout bounds one run.
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"required,duration"`
}

// AdminConfig configures the admin listener.
type AdminConfig struct {
	// Addr enables the admin listener when non-empty (e.g., "127.0.0.1:9091").
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the minimum level: "debug", "info", "warn" or "error".
	Level string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`

	// Format is "json" or "text".
	Format string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=json text"`

	// File sends logs to a rotated file instead of stderr.
	File string `yaml:"file" mapstructure:"file"`

	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb" validate:"min=0"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days" validate:"min=0"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Output is "stderr", "stdout" or a file path.
	Output string `yaml:"output" mapstructure:"output"`

	// SampleRate is the fraction of traces recorded, 0 to 1.
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	if c.ListenPort == 0 {
		c.ListenPort = 8090
	}

	if c.Server.ListenHost == "" {
		c.Server.ListenHost = "0.0.0.0"
	}
	if c.Server.ControlPath == "" {
		c.Server.ControlPath = "/jsonrpc"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}

	if c.Upstream.Host == "" {
		c.Upstream.Host = "127.0.0.1"
	}
	if c.Upstream.Timeout == "" {
		c.Upstream.Timeout = "5s"
	}
	if c.Upstream.Discovery.Transport == "" {
		c.Upstream.Discovery.Transport = "http"
	}
	if c.Upstream.Discovery.URL == "" {
		c.Upstream.Discovery.URL = "http://127.0.0.1:8080/jsonrpc"
	}
	if c.Upstream.Discovery.Addr == "" {
		c.Upstream.Discovery.Addr = "127.0.0.1:9090"
	}
	if c.Upstream.Discovery.Setting == "" {
		c.Upstream.Discovery.Setting = "services.webserverport"
	}
	if c.Upstream.Discovery.Timeout == "" {
		c.Upstream.Discovery.Timeout = "10s"
	}

	if c.Executor.Command == "" {
		c.Executor.Command = "/home/user/local/kodi_control/kodi_callback_trigger.sh"
	}
	if c.Executor.Timeout == "" {
		c.Executor.Timeout = "30s"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}

	if c.Tracing.Output == "" {
		c.Tracing.Output = "stderr"
	}
	// viper.IsSet distinguishes "not set" from an explicit 0.
	if c.Tracing.SampleRate == 0 && !viper.IsSet("tracing.sample_rate") {
		c.Tracing.SampleRate = 1.0
	}
}

// ListenAddr returns the proxy listener address.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.ListenHost, strconv.Itoa(c.ListenPort))
}

// EffectiveLogLevel returns the log level, forced to debug by DebugEnable.
func (c *Config) EffectiveLogLevel() string {
	if c.DebugEnable {
		return "debug"
	}
	return c.Log.Level
}

// ShutdownTimeout returns the parsed server.shutdown_timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout)
}

// UpstreamTimeout returns the parsed upstream.timeout.
func (c *Config) UpstreamTimeout() time.Duration {
	return parseDuration(c.Upstream.Timeout)
}

// DiscoveryTimeout returns the parsed upstream.discovery.timeout.
func (c *Config) DiscoveryTimeout() time.Duration {
	return parseDuration(c.Upstream.Discovery.Timeout)
}

// ExecutorTimeout returns the parsed executor.timeout.
func (c *Config) ExecutorTimeout() time.Duration {
	return parseDuration(c.Executor.Timeout)
}

// parseDuration parses a validated duration. Invalid input yields 0, which
// every consumer treats as "use the default".
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
