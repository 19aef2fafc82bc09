// Package main implements the PlotStream server: it loads a columnar point
// dataset, exposes per-session explorers over WebSocket, and serves
// Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/c360/plotstream/bridge"
	"github.com/c360/plotstream/config"
	"github.com/c360/plotstream/datasource"
	"github.com/c360/plotstream/gateway"
	"github.com/c360/plotstream/metric"
	"github.com/c360/plotstream/param"
	"github.com/c360/plotstream/render"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "plotstream"
)

func main() {
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
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return err
	}

	// CLI flags override file-level logging settings
	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}
	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		logger.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	logger.Info("Starting PlotStream",
		"version", Version,
		"config_path", cliCfg.ConfigPath,
		"dataset", cfg.Dataset.Path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := datasource.OpenParquet(ctx, cfg.Dataset.Path)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded", "rows", source.Rows(), "columns", source.Columns())

	schema, err := buildSchema(cfg)
	if err != nil {
		return err
	}

	registry := metric.NewMetricsRegistry()

	eventBridge, err := bridge.Connect(cfg.Bridge,
		bridge.WithLogger(logger),
		bridge.WithMetrics(registry))
	if err != nil {
		// the bridge is optional wiring; exploration works without it
		logger.Warn("event bridge unavailable, continuing without it", "error", err)
	}
	defer eventBridge.Close()

	gw, err := gateway.New(cfg.Gateway, cfg.Render, source, schema,
		gateway.WithLogger(logger),
		gateway.WithMetrics(registry),
		gateway.WithShutdownTimeout(cliCfg.ShutdownTimeout),
		gateway.WithArtifactObserver(eventBridge.PublishArtifact),
		gateway.WithParamObserver(eventBridge.PublishParamChange))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gw.Start(ctx)
	})

	if cfg.Metrics.Enabled {
		metricsServer := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		g.Go(func() error {
			return metricsServer.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			return metricsServer.Stop()
		})
		logger.Info("metrics server starting", "address", metricsServer.Address())
	}

	err = g.Wait()
	logger.Info("PlotStream stopped")
	return err
}

// buildSchema declares the exploration parameters and applies configured
// class-level defaults
func buildSchema(cfg *config.Config) (*param.Schema, error) {
	schema, err := render.DefaultSchema()
	if err != nil {
		return nil, err
	}
	if cfg.Render.Colormap != "" {
		if err := schema.SetDefault(render.ParamColormap, cfg.Render.Colormap); err != nil {
			return nil, err
		}
	}
	return schema, nil
}
