// Package main implements the telemetry replay source. It serves recorded
// dataset files over TCP in the same framing the live store systems use,
// paced by the original record timestamps.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/replay"
)

const (
	Version = "0.1.0"
	appName = "sentinel-replay"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	var (
		dataDir     = flag.String("data", getEnv("SENTINEL_REPLAY_DATA", "data/input"), "Directory with dataset JSONL files (env: SENTINEL_REPLAY_DATA)")
		addr        = flag.String("addr", getEnv("SENTINEL_REPLAY_ADDR", ":8765"), "TCP listen address (env: SENTINEL_REPLAY_ADDR)")
		speed       = flag.Float64("speed", 1.0, "Replay speed multiplier, 2.0 halves the delays")
		loop        = flag.Bool("loop", false, "Restart the sequence after the last record")
		datasets    = flag.String("datasets", "", "Comma-separated dataset tags to replay, empty for all")
		maxRate     = flag.Float64("max-rate", 0, "Cap on events per second per connection, 0 for unlimited")
		logFormat   = flag.String("log-format", "json", "Log format: json, text")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(*logFormat)
	slog.SetDefault(logger)

	var tags []string
	if *datasets != "" {
		for _, tag := range strings.Split(*datasets, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	srv := replay.New(replay.Options{
		DataDir:         *dataDir,
		Addr:            *addr,
		Speed:           *speed,
		Loop:            *loop,
		Datasets:        tags,
		MaxEventsPerSec: *maxRate,
		Logger:          logger,
	})

	if err := srv.Initialize(); err != nil {
		return fmt.Errorf("initialize replay: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start replay: %w", err)
	}

	<-ctx.Done()
	slog.Info("Shutting down")
	return srv.Stop(10 * time.Second)
}

func setupLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With("service", appName, "version", Version)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
