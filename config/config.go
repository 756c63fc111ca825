// Package config provides the sentinel pipeline configuration: defaults,
// file loading (JSON or YAML by extension), and validation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/errors"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

// Config holds the full pipeline configuration.
type Config struct {
	// Source is the telemetry stream endpoint to receive from
	Source SourceConfig `json:"source" yaml:"source"`

	// Buffers configures the in-memory holding area
	Buffers BufferConfig `json:"buffers" yaml:"buffers"`

	// Detection holds the detection engine schedule and thresholds
	Detection DetectionConfig `json:"detection" yaml:"detection"`

	// Output configures the detection event sinks
	Output OutputConfig `json:"output" yaml:"output"`

	// NATS configures the optional fan-out of detection events
	NATS NATSConfig `json:"nats" yaml:"nats"`

	// CatalogPath is the product catalog CSV file
	CatalogPath string `json:"catalog_path" yaml:"catalog_path"`

	// HealthAddr is the listen address for the health and metrics endpoint
	HealthAddr string `json:"health_addr" yaml:"health_addr"`

	// MetricsEnabled controls Prometheus metric registration; when false
	// components run without metrics
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"log_level" yaml:"log_level"`

	// LogFormat is json or text
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// SourceConfig describes the upstream TCP stream.
type SourceConfig struct {
	// Host of the telemetry stream server
	Host string `json:"host" yaml:"host"`

	// Port of the telemetry stream server
	Port int `json:"port" yaml:"port"`

	// DialTimeout bounds a single connection attempt
	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout"`

	// ReconnectAttempts is the number of dial attempts before giving up
	// (-1 retries forever)
	ReconnectAttempts int `json:"reconnect_attempts" yaml:"reconnect_attempts"`

	// ReconnectWait is the initial delay between dial attempts
	ReconnectWait time.Duration `json:"reconnect_wait" yaml:"reconnect_wait"`

	// Datasets filters which dataset tags are buffered; empty means all
	Datasets []string `json:"datasets" yaml:"datasets"`
}

// Addr returns the host:port dial address.
func (s SourceConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BufferConfig sizes the per-dataset circular buffers.
type BufferConfig struct {
	// Capacity is the per-dataset buffer capacity
	Capacity int `json:"capacity" yaml:"capacity"`

	// InventoryCapacity overrides Capacity for inventory snapshots, which
	// arrive far less often and only the most recent few matter
	InventoryCapacity int `json:"inventory_capacity" yaml:"inventory_capacity"`
}

// DetectionConfig holds the engine schedule and every detector threshold.
// Thresholds default to the values the detectors were tuned with; none are
// hard-coded in detector code.
type DetectionConfig struct {
	// Interval between detection ticks
	Interval time.Duration `json:"interval" yaml:"interval"`

	// CorrelationWindow pairs RFID/recognition records with POS
	// transactions at the same station
	CorrelationWindow time.Duration `json:"correlation_window" yaml:"correlation_window"`

	// MinRecognitionConfidence gates product recognition records
	MinRecognitionConfidence float64 `json:"min_recognition_confidence" yaml:"min_recognition_confidence"`

	// WeightToleranceGrams is the allowed deviation from catalog weight
	WeightToleranceGrams float64 `json:"weight_tolerance_grams" yaml:"weight_tolerance_grams"`

	// QueueLengthThreshold is the customer count that marks a long queue
	QueueLengthThreshold int `json:"queue_length_threshold" yaml:"queue_length_threshold"`

	// QueueMinConsecutive is how many consecutive over-threshold samples
	// make an episode
	QueueMinConsecutive int `json:"queue_min_consecutive" yaml:"queue_min_consecutive"`

	// WaitTimeThresholdSeconds is the dwell time that marks a long wait
	WaitTimeThresholdSeconds float64 `json:"wait_time_threshold_seconds" yaml:"wait_time_threshold_seconds"`

	// WaitPriorityCustomerCount marks a long wait as high priority when
	// this many customers are also queued
	WaitPriorityCustomerCount int `json:"wait_priority_customer_count" yaml:"wait_priority_customer_count"`

	// ErrorDedupWindow buckets repeated station error statuses
	ErrorDedupWindow time.Duration `json:"error_dedup_window" yaml:"error_dedup_window"`

	// FaultDurationThresholdSeconds is the minimum observed fault span
	// before a station error is reported
	FaultDurationThresholdSeconds float64 `json:"fault_duration_threshold_seconds" yaml:"fault_duration_threshold_seconds"`

	// InventoryTolerance is the per-SKU unit slack before a discrepancy
	InventoryTolerance int `json:"inventory_tolerance" yaml:"inventory_tolerance"`

	// DedupWindow is the default suppression window for repeated events
	DedupWindow time.Duration `json:"dedup_window" yaml:"dedup_window"`
}

// OutputConfig configures the file emitter.
type OutputConfig struct {
	// Path is the JSONL event log file
	Path string `json:"path" yaml:"path"`

	// SyncEveryWrite fsyncs after each event when true
	SyncEveryWrite bool `json:"sync_every_write" yaml:"sync_every_write"`
}

// NATSConfig configures the optional NATS fan-out sink.
type NATSConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	URL     string `json:"url" yaml:"url"`
	Subject string `json:"subject" yaml:"subject"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Host:              "127.0.0.1",
			Port:              8765,
			DialTimeout:       5 * time.Second,
			ReconnectAttempts: 10,
			ReconnectWait:     time.Second,
		},
		Buffers: BufferConfig{
			Capacity:          1000,
			InventoryCapacity: 16,
		},
		Detection: DetectionConfig{
			Interval:                      5 * time.Second,
			CorrelationWindow:             60 * time.Second,
			MinRecognitionConfidence:      0.7,
			WeightToleranceGrams:          15,
			QueueLengthThreshold:          5,
			QueueMinConsecutive:           3,
			WaitTimeThresholdSeconds:      300,
			WaitPriorityCustomerCount:     5,
			ErrorDedupWindow:              10 * time.Minute,
			FaultDurationThresholdSeconds: 0,
			InventoryTolerance:            1,
			DedupWindow:                   60 * time.Second,
		},
		Output: OutputConfig{
			Path: "events.jsonl",
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Subject: "sentinel.events",
		},
		HealthAddr:     ":8090",
		MetricsEnabled: true,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load reads a JSON or YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "read config file")
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "parse YAML config")
		}
	case ".json", "":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "parse JSON config")
		}
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("unsupported config extension %q", ext),
			"config", "Load", "detect format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	fail := func(msg string, args ...any) error {
		return errors.WrapInvalid(fmt.Errorf(msg, args...), "config", "Validate", "invalid configuration")
	}

	if c.Source.Host == "" {
		return fail("source.host is required")
	}
	if c.Source.Port <= 0 || c.Source.Port > 65535 {
		return fail("source.port must be in (0, 65535], got %d", c.Source.Port)
	}
	if c.Source.ReconnectAttempts < -1 {
		return fail("source.reconnect_attempts must be >= -1, got %d", c.Source.ReconnectAttempts)
	}
	for _, tag := range c.Source.Datasets {
		if _, ok := types.ParseDataset(tag); !ok {
			return fail("source.datasets contains unknown dataset %q", tag)
		}
	}

	if c.Buffers.Capacity <= 0 {
		return fail("buffers.capacity must be positive, got %d", c.Buffers.Capacity)
	}
	if c.Buffers.InventoryCapacity <= 0 {
		return fail("buffers.inventory_capacity must be positive, got %d", c.Buffers.InventoryCapacity)
	}

	d := c.Detection
	if d.Interval <= 0 {
		return fail("detection.interval must be positive")
	}
	if d.CorrelationWindow <= 0 {
		return fail("detection.correlation_window must be positive")
	}
	if d.MinRecognitionConfidence < 0 || d.MinRecognitionConfidence > 1 {
		return fail("detection.min_recognition_confidence must be in [0, 1], got %g", d.MinRecognitionConfidence)
	}
	if d.WeightToleranceGrams < 0 {
		return fail("detection.weight_tolerance_grams must not be negative")
	}
	if d.QueueLengthThreshold <= 0 {
		return fail("detection.queue_length_threshold must be positive")
	}
	if d.QueueMinConsecutive <= 0 {
		return fail("detection.queue_min_consecutive must be positive")
	}
	if d.WaitTimeThresholdSeconds <= 0 {
		return fail("detection.wait_time_threshold_seconds must be positive")
	}
	if d.ErrorDedupWindow <= 0 {
		return fail("detection.error_dedup_window must be positive")
	}
	if d.InventoryTolerance < 0 {
		return fail("detection.inventory_tolerance must not be negative")
	}
	if d.DedupWindow <= 0 {
		return fail("detection.dedup_window must be positive")
	}

	if c.Output.Path == "" {
		return fail("output.path is required")
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return fail("nats.url is required when nats.enabled is true")
		}
		if c.NATS.Subject == "" {
			return fail("nats.subject is required when nats.enabled is true")
		}
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fail("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "", "json", "text":
	default:
		return fail("log_format must be json or text, got %q", c.LogFormat)
	}

	return nil
}

// DatasetFilter returns the parsed dataset filter, or nil when the source
// accepts every dataset.
func (c *Config) DatasetFilter() map[types.Dataset]bool {
	if len(c.Source.Datasets) == 0 {
		return nil
	}
	filter := make(map[types.Dataset]bool, len(c.Source.Datasets))
	for _, tag := range c.Source.Datasets {
		if ds, ok := types.ParseDataset(tag); ok {
			filter[ds] = true
		}
	}
	return filter
}
