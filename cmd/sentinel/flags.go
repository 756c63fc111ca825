package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/config"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	SourceAddr      string
	CatalogPath     string
	OutputPath      string
	HealthAddr      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("SENTINEL_CONFIG", ""),
		"Path to configuration file, defaults apply when empty (env: SENTINEL_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("SENTINEL_CONFIG", ""),
		"Path to configuration file, defaults apply when empty (env: SENTINEL_CONFIG)")

	flag.StringVar(&cfg.SourceAddr, "source",
		getEnv("SENTINEL_SOURCE", ""),
		"Stream source host:port, overrides config (env: SENTINEL_SOURCE)")

	flag.StringVar(&cfg.CatalogPath, "catalog",
		getEnv("SENTINEL_CATALOG", ""),
		"Product catalog CSV path, overrides config (env: SENTINEL_CATALOG)")

	flag.StringVar(&cfg.OutputPath, "output",
		getEnv("SENTINEL_OUTPUT", ""),
		"Detection event log path, overrides config (env: SENTINEL_OUTPUT)")

	flag.StringVar(&cfg.HealthAddr, "health-addr",
		getEnv("SENTINEL_HEALTH_ADDR", ""),
		"Health/metrics listen address, overrides config (env: SENTINEL_HEALTH_ADDR)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SENTINEL_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error (env: SENTINEL_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SENTINEL_LOG_FORMAT", ""),
		"Log format: json, text (env: SENTINEL_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("SENTINEL_DEBUG", false),
		"Enable debug mode (env: SENTINEL_DEBUG)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("SENTINEL_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: SENTINEL_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	// Override log level if debug is set
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if cfg.LogLevel != "" && !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	if cfg.LogFormat != "" && !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	return nil
}

// applyFlagOverrides layers non-empty flag values over the loaded config.
func applyFlagOverrides(cfg *config.Config, cliCfg *CLIConfig) {
	if cliCfg.SourceAddr != "" {
		if host, port, err := splitHostPort(cliCfg.SourceAddr); err == nil {
			cfg.Source.Host = host
			cfg.Source.Port = port
		}
	}
	if cliCfg.CatalogPath != "" {
		cfg.CatalogPath = cliCfg.CatalogPath
	}
	if cliCfg.OutputPath != "" {
		cfg.Output.Path = cliCfg.OutputPath
	}
	if cliCfg.HealthAddr != "" {
		cfg.HealthAddr = cliCfg.HealthAddr
	}
	if cliCfg.LogLevel != "" {
		cfg.LogLevel = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.LogFormat = cliCfg.LogFormat
	}
}

func splitHostPort(addr string) (string, int, error) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			port, err := strconv.Atoi(addr[i+1:])
			if err != nil {
				return "", 0, err
			}
			return addr[:i], port, nil
		}
	}
	return "", 0, fmt.Errorf("missing port in address %q", addr)
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Retail Telemetry Detection

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run against a local replay source with defaults
  %s

  # Run with custom config
  %s --config=/path/to/config.yaml

  # Point at a different stream source and catalog
  %s --source=10.0.0.5:8765 --catalog=data/products_list.csv

  # Validate configuration only
  %s --config=config.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
