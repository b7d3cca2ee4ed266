// Package main implements the entry point for the audiograph daemon. It
// assembles a patch engine over the configured backend, optionally builds
// a startup patch from the config file, and serves Prometheus metrics
// until it receives a shutdown signal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/audiograph/backend"
	"github.com/c360/audiograph/backend/natsbridge"
	"github.com/c360/audiograph/backend/offline"
	"github.com/c360/audiograph/config"
	patchengine "github.com/c360/audiograph/engine"
	"github.com/c360/audiograph/metric"
	"github.com/c360/audiograph/module"
	"github.com/c360/audiograph/moduleregistry"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "audiograph"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	metricsRegistry := metric.NewMetricsRegistry()

	adapter, err := buildAdapter(cfg, logger, metricsRegistry)
	if err != nil {
		return err
	}

	catalog := module.NewCatalog()
	if err := moduleregistry.Register(catalog); err != nil {
		return fmt.Errorf("register module categories: %w", err)
	}
	slog.Info("Module categories registered", "categories", catalog.Categories())

	engine := patchengine.New(adapter, catalog, logger, metricsRegistry)
	defer func() {
		if err := engine.Shutdown(); err != nil {
			slog.Error("Engine shutdown failed", "error", err)
		}
	}()

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := buildStartupPatch(signalCtx, engine, cfg); err != nil {
		return err
	}

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
		go func() {
			slog.Info("Metrics server listening", "address", metricsServer.Address(), "path", cfg.Metrics.Path)
			if err := metricsServer.Start(); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	slog.Info("audiograph started",
		"backend", cfg.Backend.Type,
		"environment", cfg.Platform.Environment,
		"modules", len(engine.ListModules()),
		"autostart", cfg.Patch.Autostart)

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	return shutdown(engine, metricsServer, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting audiograph (modular signal-processing engine)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// buildAdapter selects the backend adapter from configuration.
func buildAdapter(cfg *config.Config, logger *slog.Logger, registry *metric.MetricsRegistry) (backend.Adapter, error) {
	switch cfg.Backend.Type {
	case config.BackendOffline:
		slog.Info("Using offline backend")
		return offline.New(offline.WithSingleFire(moduleregistry.SingleFireCategories()...)), nil

	case config.BackendNATS:
		opts := []natsbridge.Option{
			natsbridge.WithLogger(logger),
			natsbridge.WithMetrics(registry.CoreMetrics()),
		}
		if cfg.Backend.NATS.Name != "" {
			opts = append(opts, natsbridge.WithClientName(cfg.Backend.NATS.Name))
		}
		if cfg.Backend.NATS.RequestTimeoutMS > 0 {
			opts = append(opts, natsbridge.WithRequestTimeout(
				time.Duration(cfg.Backend.NATS.RequestTimeoutMS)*time.Millisecond))
		}
		if cfg.Backend.NATS.MaxReconnects != 0 {
			opts = append(opts, natsbridge.WithMaxReconnects(cfg.Backend.NATS.MaxReconnects))
		}

		slog.Info("Using NATS renderer backend", "url", cfg.Backend.NATS.URL)
		adapter, err := natsbridge.New(cfg.Backend.NATS.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("create NATS backend: %w", err)
		}
		return adapter, nil

	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Backend.Type)
	}
}

// buildStartupPatch assembles the configured modules and connections and
// optionally starts the engine.
func buildStartupPatch(ctx context.Context, engine *patchengine.Engine, cfg *config.Config) error {
	if len(cfg.Patch.Modules) == 0 {
		return nil
	}

	ids := make(map[string]string, len(cfg.Patch.Modules))
	for _, m := range cfg.Patch.Modules {
		snap, err := engine.AddModule(module.Params{
			Name:     m.Name,
			Category: module.Category(m.Category),
			Props:    m.Props,
		})
		if err != nil {
			return fmt.Errorf("add startup module %s: %w", m.Name, err)
		}
		ids[m.Name] = snap.ID
		slog.Debug("Added startup module", "name", m.Name, "category", m.Category, "id", snap.ID)
	}

	for _, conn := range cfg.Patch.Connections {
		if err := engine.Connect(ids[conn.Source], ids[conn.Dest]); err != nil {
			return fmt.Errorf("connect startup modules %s -> %s: %w", conn.Source, conn.Dest, err)
		}
	}

	slog.Info("Startup patch assembled",
		"modules", len(cfg.Patch.Modules),
		"connections", len(cfg.Patch.Connections))

	if cfg.Patch.Autostart {
		if err := engine.Start(ctx, nil); err != nil {
			return fmt.Errorf("autostart engine: %w", err)
		}
		slog.Info("Engine started")
	}

	return nil
}

// shutdown stops the engine and the metrics server within the timeout.
func shutdown(engine *patchengine.Engine, metricsServer *metric.Server, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		if engine.Started() {
			if err := engine.Stop(nil); err != nil {
				slog.Error("Engine stop failed", "error", err)
			}
		}
		done <- engine.Shutdown()
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(timeout):
		err = fmt.Errorf("shutdown timed out after %v", timeout)
	}

	if metricsServer != nil {
		if stopErr := metricsServer.Stop(); stopErr != nil {
			slog.Error("Metrics server stop failed", "error", stopErr)
		}
	}

	if err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("audiograph shutdown complete")
	return nil
}
