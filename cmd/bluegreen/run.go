package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Godwin-T/blue-green-deployment/pkg/accesslog"
	"github.com/Godwin-T/blue-green-deployment/pkg/config"
	"github.com/Godwin-T/blue-green-deployment/pkg/proxy"
	"github.com/Godwin-T/blue-green-deployment/pkg/server"
	"github.com/Godwin-T/blue-green-deployment/pkg/telemetry/metrics"
	"github.com/Godwin-T/blue-green-deployment/pkg/telemetry/snapshot"
	"github.com/Godwin-T/blue-green-deployment/pkg/upstream"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	watch         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the failover proxy",
	Long: `Start the failover proxy with the specified configuration.

The proxy listens on the configured address, routes every request to the
primary backend, and fails over to standby backends transparently.

Examples:
  # Start with default config
  bluegreen run

  # Start with custom config
  bluegreen run --config /etc/bluegreen/config.yaml

  # Override listen address
  bluegreen run --listen 0.0.0.0:8080

  # Watch the config file and apply pool changes atomically
  bluegreen run --watch

  # Validate config without starting the proxy
  bluegreen run --dry-run`,
	RunE: runProxy,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the proxy")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "watch the config file for pool changes")
}

func runProxy(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	setupLogging(&cfg.Telemetry.Logging)

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	// Upstream machinery: pool, health tracking, selection.
	pool := upstream.NewPoolHolder(cfg.BuildPool())
	tracker := upstream.NewHealthTracker()
	selector := upstream.NewSelector(tracker, cfg.Upstream.MaxAttempts)

	// Access log stream, separate from diagnostic logging.
	logs, err := accesslog.Open(cfg.Telemetry.AccessLog.Path, cfg.Telemetry.AccessLog.BufferSize)
	if err != nil {
		return fmt.Errorf("failed to open access log: %w", err)
	}
	defer logs.Close()

	var m *metrics.ProxyMetrics
	if cfg.Telemetry.Metrics.MetricsEnabled() {
		m = metrics.New(cfg.Telemetry.Metrics.Namespace)
	}

	handler := proxy.NewHandler(pool, tracker, selector, logs, m, proxy.Options{
		ConnectTimeout:       cfg.Upstream.ConnectTimeout.Std(),
		SendTimeout:          cfg.Upstream.SendTimeout.Std(),
		ReadTimeout:          cfg.Upstream.ReadTimeout.Std(),
		HealthPath:           cfg.Upstream.HealthPath,
		HealthTimeout:        cfg.Upstream.HealthTimeout.Std(),
		MaxBufferedBodyBytes: cfg.Upstream.MaxBufferedBodyBytes,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Periodic health snapshots.
	reporter := snapshot.NewReporter(tracker, pool, m)
	if err := reporter.Start(cfg.Telemetry.Snapshot.Schedule); err != nil {
		return err
	}
	defer reporter.Stop()

	// Optional config watcher: an operator flipping pool.primary swaps
	// the pool atomically, affecting new requests only.
	if runFlags.watch {
		watcher := config.NewWatcher(cfgFile)
		go func() {
			if err := watcher.Watch(ctx, func(next *config.Config) {
				pool.Swap(next.BuildPool())
				slog.Info("pool configuration swapped", "primary", next.Pool.Primary)
			}); err != nil {
				slog.Error("config watcher failed", "error", err)
			}
		}()
	}

	printBanner(cfg)

	srv := server.NewServer(&cfg.Proxy, &cfg.Telemetry.Metrics, handler, m)
	return srv.Start(ctx)
}

// setupLogging configures the process-wide slog default.
func setupLogging(cfg *config.LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// printBanner logs the effective pool layout at startup.
func printBanner(cfg *config.Config) {
	pool := cfg.BuildPool()
	slog.Info("failover pool configured",
		"primary", pool.Primary.Name,
		"primary_address", pool.Primary.Address,
		"standbys", len(pool.Standbys),
		"max_attempts", cfg.Upstream.MaxAttempts,
	)
	for _, b := range pool.Standbys {
		slog.Info("standby backend", "name", b.Name, "address", b.Address)
	}
}
