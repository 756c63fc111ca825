package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/types"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:8765", cfg.Source.Addr())
	assert.Equal(t, 5*time.Second, cfg.Detection.Interval)
	assert.Equal(t, 5, cfg.Detection.QueueLengthThreshold)
	assert.Nil(t, cfg.DatasetFilter())
}

func TestLoad_JSONOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.json")
	data := `{
		"source": {"host": "stream.internal", "port": 9000},
		"detection": {"queue_length_threshold": 8},
		"output": {"path": "/tmp/out.jsonl"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "stream.internal:9000", cfg.Source.Addr())
	assert.Equal(t, 8, cfg.Detection.QueueLengthThreshold)
	assert.Equal(t, "/tmp/out.jsonl", cfg.Output.Path)
	// Untouched fields keep their defaults.
	assert.Equal(t, 0.7, cfg.Detection.MinRecognitionConfidence)
	assert.Equal(t, 1000, cfg.Buffers.Capacity)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	data := `
source:
  host: replay.local
  port: 8765
  datasets:
    - POS_Transactions
    - RFID_data
nats:
  enabled: true
  url: nats://nats.local:4222
  subject: store.events
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "replay.local", cfg.Source.Host)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "store.events", cfg.NATS.Subject)

	filter := cfg.DatasetFilter()
	require.NotNil(t, filter)
	assert.True(t, filter[types.DatasetPOS])
	assert.True(t, filter[types.DatasetRFID])
	assert.False(t, filter[types.DatasetQueue])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty host", func(c *Config) { c.Source.Host = "" }},
		{"bad port", func(c *Config) { c.Source.Port = 0 }},
		{"unknown dataset", func(c *Config) { c.Source.Datasets = []string{"Footfall"} }},
		{"zero buffer capacity", func(c *Config) { c.Buffers.Capacity = 0 }},
		{"zero interval", func(c *Config) { c.Detection.Interval = 0 }},
		{"confidence out of range", func(c *Config) { c.Detection.MinRecognitionConfidence = 1.5 }},
		{"negative tolerance", func(c *Config) { c.Detection.InventoryTolerance = -1 }},
		{"empty output path", func(c *Config) { c.Output.Path = "" }},
		{"nats enabled without subject", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.Subject = ""
		}},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
