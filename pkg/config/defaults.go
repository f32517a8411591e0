package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dittowopi/pkg/bridge"
	"github.com/marmos91/dittowopi/pkg/server"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific defaults are handled by the factories
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(&cfg.Storage)
	applyTokensDefaults(&cfg.Tokens)
	applyWOPIDefaults(&cfg.WOPI, cfg.Server.Port)
	applyRateLimitDefaults(&cfg.RateLimit)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	defaults := server.DefaultConfig()

	if cfg.Port == 0 {
		cfg.Port = defaults.Port
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = defaults.IdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// applyStorageDefaults selects S3 when a bucket is configured and falls back
// to a local directory otherwise.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}

	if cfg.Type == "" {
		if bucket, _ := cfg.S3["bucket"].(string); bucket != "" {
			cfg.Type = "s3"
		} else {
			cfg.Type = "filesystem"
		}
	}

	switch cfg.Type {
	case "s3":
		if _, ok := cfg.S3["region"]; !ok {
			cfg.S3["region"] = "us-east-1"
		}
	case "filesystem":
		if _, ok := cfg.Filesystem["path"]; !ok {
			cfg.Filesystem["path"] = "/tmp/dittowopi-files"
		}
	}
}

// applyTokensDefaults sets token registry defaults.
func applyTokensDefaults(cfg *TokensConfig) {
	if cfg.Mode == "" {
		cfg.Mode = "stateful"
	}
	if cfg.Store == "" {
		cfg.Store = "memory"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 10 * time.Hour
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 100000
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.StatelessMarker == "" {
		cfg.StatelessMarker = "test"
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
}

// applyWOPIDefaults sets protocol defaults. The host URL defaults to the
// local listener so a bare start works against a local editor.
func applyWOPIDefaults(cfg *WOPIConfig, port int) {
	if cfg.HostURL == "" {
		cfg.HostURL = "http://localhost:" + strconv.Itoa(port)
	}
	if cfg.EditorURL == "" {
		cfg.EditorURL = "http://localhost:9980"
	}
	if cfg.LaunchPath == "" {
		cfg.LaunchPath = bridge.DefaultLaunchPath
	}
	if cfg.ContentType == "" {
		cfg.ContentType = bridge.DefaultContentType
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = bridge.DefaultMaxBodySize
	}
	if cfg.OwnerID == "" {
		cfg.OwnerID = bridge.DefaultOwnerID
	}
	if cfg.UserID == "" {
		cfg.UserID = bridge.DefaultUserID
	}
}

// applyRateLimitDefaults sets rate limit defaults. RequestsPerSecond
// stays zero (unlimited) unless configured.
func applyRateLimitDefaults(cfg *RateLimitConfig) {
	if cfg.RequestsPerSecond > 0 && cfg.Burst == 0 {
		cfg.Burst = cfg.RequestsPerSecond
	}
	if cfg.MaxClients == 0 {
		cfg.MaxClients = 10000
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
