package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// fileBase is the configuration file name without extension.
const fileBase = "control-interceptor"

// EnvPrefix prefixes environment overrides, e.g. CONTROL_INTERCEPTOR_LISTEN_PORT.
const EnvPrefix = "CONTROL_INTERCEPTOR"

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for control-interceptor.yaml/.yml in standard
// locations. The search requires an explicit YAML extension so that the binary
// itself, which shares the base name, is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found. Set name/type without search paths so
		// ReadInConfig returns ConfigFileNotFoundError (handled by callers).
		viper.SetConfigName(fileBase)
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for the config file.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, "."+fileBase),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, fileBase))
		}
	} else {
		paths = append(paths, filepath.Join("/etc", fileBase))
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for control-interceptor.yaml or .yml.
// Returns the full path of the first match, or empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, fileBase+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// envKeys lists every scalar key that can be overridden from the environment.
// viper.Unmarshal only sees AutomaticEnv values for keys it already knows.
var envKeys = []string{
	"listen_port",
	"debug_enable",
	"server.listen_host",
	"server.control_path",
	"server.shutdown_timeout",
	"upstream.host",
	"upstream.timeout",
	"upstream.discovery.transport",
	"upstream.discovery.url",
	"upstream.discovery.addr",
	"upstream.discovery.setting",
	"upstream.discovery.timeout",
	"executor.command",
	"executor.timeout",
	// Note: executor.args is an array, handled by Viper's env parsing
	"admin.addr",
	"log.level",
	"log.format",
	"log.file",
	"log.max_size_mb",
	"log.max_backups",
	"log.max_age_days",
	"log.compress",
	"tracing.enabled",
	"tracing.output",
	"tracing.sample_rate",
}

// bindNestedEnvKeys binds all config keys for environment variable support.
// Example: CONTROL_INTERCEPTOR_UPSTREAM_DISCOVERY_TRANSPORT overrides upstream.discovery.transport
func bindNestedEnvKeys() {
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}
}

// readConfig reads the config file if there is one. Running without a file
// (defaults plus environment) is allowed.
func readConfig() error {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, validates, and returns the Config.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults,
// but does NOT validate.
func LoadConfigRaw() (*Config, error) {
	if err := readConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
