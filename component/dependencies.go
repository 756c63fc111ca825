package component

import (
	"log/slog"

	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/metric"
	"github.com/DonaldAadithiyan/PhantomOrion-InnovateX/natsclient"
)

// Dependencies provides the external dependencies shared by components.
// Fields may be nil; components fall back to defaults (nil registry
// disables metrics, nil logger uses slog.Default()).
type Dependencies struct {
	NATSClient      *natsclient.Client      // optional fan-out of detection events
	MetricsRegistry *metric.MetricsRegistry // Prometheus registrations (can be nil)
	Logger          *slog.Logger            // structured logger (can be nil)
}

// GetLogger returns the configured logger or the default logger.
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger configured with component context.
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}
