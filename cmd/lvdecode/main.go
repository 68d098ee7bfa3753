// Command lvdecode is the entry point for the LVCSR decoder core's
// standalone server process: it loads a YAML configuration (spec §6.5),
// brings up the OpenTelemetry providers and health/metrics HTTP endpoints,
// and watches the configuration file for hot-reloadable changes.
//
// Model I/O, feature extraction, and lattice file formats are external
// collaborators (spec §1 "treated as an external collaborator") and are not
// implemented here; a real deployment wires concrete [pkg/collab]
// implementations through [pkg/lvdecode.Create] from its own command or
// library entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tanaris-labs/lvdecode/internal/config"
	"github.com/tanaris-labs/lvdecode/internal/health"
	"github.com/tanaris-labs/lvdecode/internal/observe"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "lvdecode",
		Short: "LVCSR decoder core: observability shell and configuration watcher",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the decoder core's version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "lvdecode (development build)")
			return nil
		},
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "watch the configuration file and serve /healthz, /readyz, and /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("lvdecode: config file %q not found", configPath)
		}
		return fmt.Errorf("lvdecode: %w", err)
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "lvdecode"})
	if err != nil {
		return fmt.Errorf("lvdecode: init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	watcher, err := config.NewWatcher(configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		slog.Info("configuration reloaded",
			"log_level_changed", diff.LogLevelChanged,
			"pruning_changed", diff.PruningChanged,
			"lattice_changed", diff.LatticeChanged,
			"confnet_changed", diff.ConfNetChanged,
		)
	})
	if err != nil {
		return fmt.Errorf("lvdecode: start config watcher: %w", err)
	}
	defer watcher.Stop()

	printStartupSummary(cfg)

	mux := http.NewServeMux()
	health.New().Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: observe.Middleware(observe.DefaultMetrics())(mux),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		slog.Info("shutdown signal received, stopping…")
	case err := <-errCh:
		return fmt.Errorf("lvdecode: server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// printStartupSummary logs the tuning knobs most likely to matter when
// triaging a slow or memory-hungry decode (spec §6.2/§6.5), formatting the
// larger ones with [humanize.Comma] for readability in log viewers.
func printStartupSummary(cfg *config.Config) {
	slog.Info("decoder configuration",
		"max_model", humanize.Comma(int64(cfg.Init.MaxModel)),
		"beam_width", cfg.Init.BeamWidth,
		"gc_freq", cfg.Pruning.GCFreq,
		"confnet_method", cfg.ConfNet.Method,
	)
}
