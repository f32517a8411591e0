package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides: DITTOWOPI_WOPI_HOST_URL, ...
const envPrefix = "DITTOWOPI"

// Config represents the complete bridge configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTOWOPI_*, plus the legacy names PORT,
//     AWS_REGION, S3_BUCKET, WOPI_HOST_DOMAIN, COLLABORA_DOMAIN)
//  2. Configuration file (YAML or TOML)
//  3. Default values
//
// Backend Configuration Pattern:
// Storage and token backends define their own option structs. The Config
// struct carries type-specific maps (storage.s3, storage.filesystem,
// tokens.badger) and only the section matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains the HTTP listener and metrics settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Storage selects the storage gateway backend
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Tokens controls the access token registry and authorization mode
	Tokens TokensConfig `mapstructure:"tokens" yaml:"tokens"`

	// WOPI contains protocol-facing settings
	WOPI WOPIConfig `mapstructure:"wopi" yaml:"wopi"`

	// CORS is the cross-origin policy
	CORS CORSConfig `mapstructure:"cors" yaml:"cors"`

	// RateLimit throttles the access-grant endpoint
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	// Port is the bridge's listening port
	Port int `mapstructure:"port" yaml:"port" validate:"required,gt=0,lte=65535"`

	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"gte=0"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gte=0"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"gte=0"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MetricsConfig configures the Prometheus metrics server.
type MetricsConfig struct {
	// Enabled turns on metrics collection and the metrics server
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port for the metrics HTTP server
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,gt=0,lte=65535"`
}

// StorageConfig specifies the storage gateway.
//
// The Type field determines which gateway implementation is used.
// Only the corresponding type-specific configuration section is used.
type StorageConfig struct {
	// Type specifies which gateway to use
	// Valid values: s3, filesystem, memory
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=s3 filesystem memory"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`

	// Filesystem contains filesystem-specific configuration
	// Only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem"`
}

// TokensConfig controls token issuance and resolution.
type TokensConfig struct {
	// Mode selects the authorization strategy
	// Valid values: stateful, stateless
	Mode string `mapstructure:"mode" yaml:"mode" validate:"required,oneof=stateful stateless"`

	// AllowInsecureStateless must be true for Mode = "stateless". Stateless
	// mode accepts any token containing StatelessMarker for any file.
	AllowInsecureStateless bool `mapstructure:"allow_insecure_stateless" yaml:"allow_insecure_stateless"`

	// StatelessMarker is the substring accepted in stateless mode
	StatelessMarker string `mapstructure:"stateless_marker" yaml:"stateless_marker"`

	// Store selects the registry backend for stateful mode
	// Valid values: memory, badger
	Store string `mapstructure:"store" yaml:"store" validate:"required,oneof=memory badger"`

	// TTL is the token lifetime (0 = never expires)
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gte=0"`

	// MaxEntries bounds the registry (0 = unbounded)
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries" validate:"gte=0"`

	// SweepInterval is how often expired tokens are purged (0 = never)
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval" validate:"gte=0"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Store = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// WOPIConfig contains protocol-facing settings.
type WOPIConfig struct {
	// HostURL is the externally reachable base URL of this bridge
	HostURL string `mapstructure:"host_url" yaml:"host_url" validate:"required,url"`

	// EditorURL is the base URL of the editor front end
	EditorURL string `mapstructure:"editor_url" yaml:"editor_url" validate:"required,url"`

	// LaunchPath is the editor page that receives WOPISrc
	LaunchPath string `mapstructure:"launch_path" yaml:"launch_path" validate:"required,startswith=/"`

	// ContentType is served for every GetFile response
	ContentType string `mapstructure:"content_type" yaml:"content_type" validate:"required"`

	// MaxBodySize is the largest accepted PutFile body in bytes
	MaxBodySize int64 `mapstructure:"max_body_size" yaml:"max_body_size" validate:"required,gt=0"`

	// OwnerID and UserID are the placeholder identities in CheckFileInfo
	OwnerID string `mapstructure:"owner_id" yaml:"owner_id" validate:"required"`
	UserID  string `mapstructure:"user_id" yaml:"user_id" validate:"required"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers" yaml:"trust_proxy_headers"`
}

// CORSConfig is the cross-origin policy.
type CORSConfig struct {
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods []string      `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders []string      `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	MaxAge         time.Duration `mapstructure:"max_age" yaml:"max_age" validate:"gte=0"`
}

// RateLimitConfig throttles the access-grant endpoint per client address.
type RateLimitConfig struct {
	// RequestsPerSecond per client (0 = unlimited)
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	// Burst per client
	Burst uint `mapstructure:"burst" yaml:"burst"`

	// MaxClients bounds the number of tracked client addresses
	MaxClients int `mapstructure:"max_clients" yaml:"max_clients" validate:"gte=0"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the DITTOWOPI_ prefix and underscores
	// Example: DITTOWOPI_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	// Configure config file search
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/dittowopi/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys lists every scalar key that can be overridden from the
// environment. AutomaticEnv alone only covers keys viper already knows
// about from the file, so each key is bound explicitly.
var envKeys = []string{
	"logging.level", "logging.format", "logging.output",
	"server.port", "server.read_header_timeout", "server.read_timeout",
	"server.write_timeout", "server.idle_timeout", "server.shutdown_timeout",
	"server.metrics.enabled", "server.metrics.port",
	"storage.type",
	"storage.s3.region", "storage.s3.bucket", "storage.s3.key_prefix",
	"storage.s3.endpoint", "storage.s3.access_key_id", "storage.s3.secret_access_key",
	"storage.s3.max_retries", "storage.s3.operation_timeout",
	"storage.filesystem.path",
	"tokens.mode", "tokens.allow_insecure_stateless", "tokens.stateless_marker",
	"tokens.store", "tokens.ttl", "tokens.max_entries", "tokens.sweep_interval",
	"tokens.badger.db_path",
	"wopi.host_url", "wopi.editor_url", "wopi.launch_path", "wopi.content_type",
	"wopi.max_body_size", "wopi.owner_id", "wopi.user_id", "wopi.trust_proxy_headers",
	"cors.allowed_origins", "cors.allowed_methods", "cors.allowed_headers", "cors.max_age",
	"rate_limit.requests_per_second", "rate_limit.burst", "rate_limit.max_clients",
}

// legacyEnv maps the variable names used by earlier deployments of the
// bridge. The prefixed name always wins when both are set.
var legacyEnv = map[string]string{
	"server.port":       "PORT",
	"storage.s3.region": "AWS_REGION",
	"storage.s3.bucket": "S3_BUCKET",
	"wopi.host_url":     "WOPI_HOST_DOMAIN",
	"wopi.editor_url":   "COLLABORA_DOMAIN",
}

func bindEnv(v *viper.Viper) {
	for _, key := range envKeys {
		names := []string{envName(key)}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		_ = v.BindEnv(append([]string{key}, names...)...)
	}
}

// envName returns the prefixed environment variable for key.
func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittowopi")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittowopi")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
