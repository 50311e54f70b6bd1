package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/rabits/control-interceptor/internal/adapter/inbound/http"
	"github.com/rabits/control-interceptor/internal/adapter/outbound/executor"
	"github.com/rabits/control-interceptor/internal/adapter/outbound/kodi"
	"github.com/rabits/control-interceptor/internal/config"
	"github.com/rabits/control-interceptor/internal/logging"
	"github.com/rabits/control-interceptor/internal/port/outbound"
	"github.com/rabits/control-interceptor/internal/service"
	"github.com/rabits/control-interceptor/internal/telemetry"
)

// tracingFlushTimeout bounds flushing buffered spans at exit.
const tracingFlushTimeout = 5 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the control interceptor",
	Long: `Start the control interceptor proxy.

The proxy listens on server.listen_host:listen_port and relays every request
to the upstream web server. Its port is discovered on first use through the
upstream's settings and rediscovered after a connection failure.

Examples:
  # Start with config file settings
  control-interceptor start

  # Start with a specific config file
  control-interceptor --config /path/to/config.yaml start`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	var level slog.LevelVar
	level.Set(logging.EffectiveLevel(cfg.Log.Level, cfg.DebugEnable))
	logger, logCloser := logging.New(logOptions(cfg), &level)
	defer func() { _ = logCloser.Close() }()
	slog.SetDefault(logger)

	logger.Debug("log level configured", "level", cfg.Log.Level, "effective", level.Level().String())
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	config.WatchConfig(logger, func(next *config.Config) {
		applyReload(logger, &level, cfg, next)
	})

	// Write PID file so "control-interceptor stop" can find us.
	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer func() { _ = os.Remove(pidPath) }()
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("control interceptor failed", "error", err)
		return err
	}

	logger.Info("control interceptor stopped")
	return nil
}

// logOptions maps the log section of the config onto logger options.
func logOptions(cfg *config.Config) logging.Options {
	return logging.Options{
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
}

// applyReload applies the live-reloadable settings of next and warns about
// the rest, which keep their startup values.
func applyReload(logger *slog.Logger, level *slog.LevelVar, running, next *config.Config) {
	effective := logging.EffectiveLevel(next.Log.Level, next.DebugEnable)
	if effective != level.Level() {
		level.Set(effective)
		logger.Info("log level changed", "level", effective.String())
	}
	if changed := config.RequiresRestart(running, next); len(changed) > 0 {
		logger.Warn("config change requires restart", "sections", changed)
	}
}

// run wires the components and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.SetupTracing(telemetry.TracingConfig{
		Enabled:    cfg.Tracing.Enabled,
		Output:     cfg.Tracing.Output,
		SampleRate: cfg.Tracing.SampleRate,
		Version:    Version,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), tracingFlushTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(reg)

	querier := newSettingsQuerier(cfg, logger)
	if c, ok := querier.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	resolver := service.NewTargetResolver(querier,
		service.WithResolverHost(cfg.Upstream.Host),
		service.WithDiscoveryTimeout(cfg.DiscoveryTimeout()),
		service.WithResolverLogger(logger),
		service.WithResolverMetrics(metrics),
	)

	forwarder := service.NewForwarder(resolver,
		service.WithForwardTimeout(cfg.UpstreamTimeout()),
		service.WithForwarderLogger(logger),
		service.WithForwarderMetrics(metrics),
	)
	defer func() { _ = forwarder.Close() }()

	interceptor := service.NewInterceptor(forwarder,
		executor.NewCommandExecutor(cfg.Executor.Command, cfg.Executor.Args, executor.WithLogger(logger)),
		service.WithExecutorTimeout(cfg.ExecutorTimeout()),
		service.WithInterceptorLogger(logger),
		service.WithInterceptorMetrics(metrics),
	)

	router := http.NewRouter(cfg.Server.ControlPath, interceptor, forwarder)

	transport := http.NewHTTPTransport(router,
		http.WithAddr(cfg.ListenAddr()),
		http.WithAdminAddr(cfg.Admin.Addr),
		http.WithRegistry(reg),
		http.WithHealthChecker(http.NewHealthChecker(resolver, Version)),
		http.WithShutdownTimeout(cfg.ShutdownTimeout()),
		http.WithLogger(logger),
	)

	logger.Info("control interceptor running",
		"version", Version,
		"listen", cfg.ListenAddr(),
		"control_path", cfg.Server.ControlPath,
		"discovery", cfg.Upstream.Discovery.Transport,
		"admin", cfg.Admin.Addr,
	)

	return transport.Start(ctx)
}

// newSettingsQuerier selects the discovery transport.
func newSettingsQuerier(cfg *config.Config, logger *slog.Logger) outbound.SettingsQuerier {
	d := cfg.Upstream.Discovery
	if d.Transport == "tcp" {
		return kodi.NewTCPSettingsClient(d.Addr,
			kodi.WithTCPSetting(d.Setting),
			kodi.WithTCPLogger(logger),
		)
	}
	return kodi.NewHTTPSettingsClient(d.URL,
		kodi.WithSetting(d.Setting),
		kodi.WithHTTPLogger(logger),
	)
}
