package config

import (
	"github.com/marmos91/dittowopi/pkg/metrics"
	promMetrics "github.com/marmos91/dittowopi/pkg/metrics/prometheus"
	"github.com/marmos91/dittowopi/pkg/storage"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// Bridge is the metrics collector for the WOPI handler (never nil, uses noop if disabled)
	Bridge metrics.BridgeMetrics

	// Storage is the metrics collector for the storage gateway (nil if disabled)
	Storage storage.Metrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			Bridge: metrics.NewNoopBridgeMetrics(),
		}
	}

	// Initialize global Prometheus registry
	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:  server,
		Bridge:  promMetrics.NewBridgeMetrics(),
		Storage: promMetrics.NewStorageMetrics(),
	}
}
