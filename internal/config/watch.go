package config

import (
	"log/slog"
	"reflect"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ReloadFunc receives the reloaded configuration.
type ReloadFunc func(cfg *Config)

// WatchConfig re-reads the config file whenever it changes and passes the
// result to onReload. An invalid file is logged and ignored. Does nothing
// when no config file is in use.
func WatchConfig(logger *slog.Logger, onReload ReloadFunc) {
	if viper.ConfigFileUsed() == "" {
		return
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		logger.Debug("config file changed", "file", e.Name, "op", e.Op.String())

		var cfg Config
		if err := viper.Unmarshal(&cfg); err != nil {
			logger.Warn("ignoring unreadable config change", "error", err)
			return
		}
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			logger.Warn("ignoring invalid config change", "error", err)
			return
		}
		onReload(&cfg)
	})
	viper.WatchConfig()
}

// RequiresRestart lists the top-level sections that differ between old and
// next, other than the ones applied live (debug_enable and log.level).
func RequiresRestart(old, next *Config) []string {
	a, b := *old, *next
	a.DebugEnable, b.DebugEnable = false, false
	a.Log.Level, b.Log.Level = "", ""

	var changed []string
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	typ := av.Type()
	for i := 0; i < typ.NumField(); i++ {
		if !reflect.DeepEqual(av.Field(i).Interface(), bv.Field(i).Interface()) {
			changed = append(changed, typ.Field(i).Tag.Get("mapstructure"))
		}
	}
	return changed
}
