// Package main implements the entry point for the Sentinel daemon.
// Sentinel ingests streamed retail telemetry, correlates it across
// datasets, and appends detection events to a JSONL log.
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

	"golang.org/x/sync/errgroup"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/catalog"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/component"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/config"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/detect"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/emit"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/health"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/metric"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/natsclient"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/receiver"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/streams"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "sentinel"
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
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	slog.Info("Starting Sentinel (retail telemetry detection)",
		"version", Version,
		"build_time", BuildTime,
		"source", cfg.Source.Addr(),
		"output", cfg.Output.Path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runPipeline(ctx, cfg, logger, cliCfg.ShutdownTimeout)
}

// loadConfiguration reads the config file when one was given, otherwise
// starts from defaults, then applies flag overrides.
func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cliCfg.ConfigPath != "" {
		cfg, err = config.Load(cliCfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	applyFlagOverrides(cfg, cliCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runPipeline wires and runs every component until the context is
// cancelled or the stream source closes.
func runPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, shutdownTimeout time.Duration) error {
	var registry *metric.MetricsRegistry
	if cfg.MetricsEnabled {
		registry = metric.NewMetricsRegistry()
	}

	var cat *catalog.Catalog
	if cfg.CatalogPath != "" {
		var err error
		cat, err = catalog.Load(cfg.CatalogPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		slog.Info("Product catalog loaded", "path", cfg.CatalogPath, "products", cat.Len())
	} else {
		// Catalog-backed detectors (weight, barcode, inventory) skip every
		// record when no catalog is configured.
		slog.Warn("No catalog configured, catalog-backed detectors are inactive")
	}

	buffers, err := streams.New(streams.Options{
		Capacity:          cfg.Buffers.Capacity,
		InventoryCapacity: cfg.Buffers.InventoryCapacity,
		Registry:          registry,
	})
	if err != nil {
		return fmt.Errorf("create buffers: %w", err)
	}
	defer buffers.Close()

	var natsClient *natsclient.Client
	if cfg.NATS.Enabled {
		natsClient, err = natsclient.NewClient(cfg.NATS.URL,
			natsclient.WithClientName(appName),
			natsclient.WithLogger(natsclient.NewSlogLogger(logger)))
		if err != nil {
			return fmt.Errorf("create NATS client: %w", err)
		}
		if err := natsClient.Connect(ctx); err != nil {
			// Fan-out is best effort; the client keeps reconnecting.
			slog.Warn("NATS connection failed, continuing without fan-out", "error", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = natsClient.Close(closeCtx)
		}()
	}

	shared := &component.Dependencies{
		NATSClient:      natsClient,
		MetricsRegistry: registry,
		Logger:          logger,
	}

	emitter := emit.New(emit.Deps{
		Name:            "emit",
		Path:            cfg.Output.Path,
		SyncEveryWrite:  cfg.Output.SyncEveryWrite,
		NATSClient:      shared.NATSClient,
		Subject:         cfg.NATS.Subject,
		MetricsRegistry: shared.MetricsRegistry,
		Logger:          shared.GetLogger(),
	})

	engine := detect.New(detect.Deps{
		Name:            "detect",
		Config:          cfg.Detection,
		Buffers:         buffers,
		Catalog:         cat,
		Emitter:         emitter,
		MetricsRegistry: shared.MetricsRegistry,
		Logger:          shared.GetLogger(),
	})

	rcv := receiver.New(receiver.Deps{
		Name:            "receiver",
		Config:          cfg.Source,
		Buffers:         buffers,
		MetricsRegistry: shared.MetricsRegistry,
		Logger:          shared.GetLogger(),
	})

	var healthSrv *health.Server
	if cfg.HealthAddr != "" {
		healthSrv = health.New(cfg.HealthAddr, registry, logger)
		healthSrv.Register(rcv)
		healthSrv.Register(engine)
		healthSrv.Register(emitter)
	}

	// Start downstream first so nothing received has nowhere to go.
	if err := startComponents(ctx, emitter, engine, rcv); err != nil {
		return err
	}
	if healthSrv != nil {
		if err := healthSrv.Start(ctx); err != nil {
			return fmt.Errorf("start health server: %w", err)
		}
		slog.Info("Health server listening", "addr", healthSrv.Addr())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-rcv.Done():
			// The stream source closed. One last tick catches records
			// that arrived after the previous one.
			slog.Info("Stream source closed, shutting down")
			engine.RunTick(gctx)
			return nil
		}
	})
	err = g.Wait()

	slog.Info("Shutting down", "timeout", shutdownTimeout)
	stopComponents(shutdownTimeout, rcv, engine, emitter)
	if healthSrv != nil {
		_ = healthSrv.Stop(shutdownTimeout)
	}
	return err
}

// pipelineComponent is the lifecycle slice both start and stop iterate.
type pipelineComponent interface {
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

func startComponents(ctx context.Context, components ...pipelineComponent) error {
	for _, c := range components {
		if err := c.Initialize(); err != nil {
			return fmt.Errorf("initialize %T: %w", c, err)
		}
	}
	for _, c := range components {
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("start %T: %w", c, err)
		}
	}
	return nil
}

// stopComponents stops in the given order: receiver first so no new
// records arrive, then the engine, then the emitter.
func stopComponents(timeout time.Duration, components ...pipelineComponent) {
	for _, c := range components {
		if err := c.Stop(timeout); err != nil {
			slog.Warn("Component stop failed", "component", fmt.Sprintf("%T", c), "error", err)
		}
	}
}
