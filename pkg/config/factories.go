package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/internal/ratelimiter"
	"github.com/marmos91/dittowopi/pkg/bridge"
	"github.com/marmos91/dittowopi/pkg/server"
	"github.com/marmos91/dittowopi/pkg/storage"
	storageFs "github.com/marmos91/dittowopi/pkg/storage/fs"
	storageMemory "github.com/marmos91/dittowopi/pkg/storage/memory"
	storageS3 "github.com/marmos91/dittowopi/pkg/storage/s3"
	"github.com/marmos91/dittowopi/pkg/token"
	tokenBadger "github.com/marmos91/dittowopi/pkg/token/badger"
	tokenMemory "github.com/marmos91/dittowopi/pkg/token/memory"
	"github.com/mitchellh/mapstructure"
)

// decodeOptions decodes a backend options map into out. Durations may be
// given as strings ("30s") and numbers may arrive as strings from the
// environment.
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// ConfigureLogging applies the logging section to the global logger.
func ConfigureLogging(cfg *LoggingConfig) error {
	logger.SetLevel(cfg.Level)
	if err := logger.SetFormat(cfg.Format); err != nil {
		return err
	}
	return logger.SetOutput(cfg.Output)
}

// CreateGateway creates a storage gateway based on configuration.
//
// This factory function uses the Type field to determine which gateway
// implementation to create, then decodes the type-specific configuration from
// the corresponding map and passes it to the gateway's constructor.
//
// Supported types:
//   - "s3": Uses pkg/storage/s3 (Amazon S3 or compatible storage)
//   - "filesystem": Uses pkg/storage/fs (local directory)
//   - "memory": Uses pkg/storage/memory (ephemeral, development only)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Storage configuration
//   - metrics: Optional storage metrics (nil disables collection)
//
// Returns:
//   - storage.Gateway: Initialized gateway
//   - error: Configuration or initialization error
func CreateGateway(ctx context.Context, cfg *StorageConfig, metrics storage.Metrics) (storage.Gateway, error) {
	switch cfg.Type {
	case "s3":
		return createS3Gateway(ctx, cfg.S3, metrics)
	case "filesystem":
		return createFilesystemGateway(ctx, cfg.Filesystem, metrics)
	case "memory":
		logger.Warn("Using in-memory storage: files are lost on restart")
		return storageMemory.NewMemoryGateway(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

// createFilesystemGateway creates a filesystem-backed gateway.
func createFilesystemGateway(ctx context.Context, options map[string]any, metrics storage.Metrics) (storage.Gateway, error) {
	type FilesystemGatewayConfig struct {
		Path string `mapstructure:"path"`
	}

	var gwCfg FilesystemGatewayConfig
	if err := decodeOptions(options, &gwCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem storage config: %w", err)
	}

	if gwCfg.Path == "" {
		return nil, fmt.Errorf("filesystem storage: path is required")
	}

	gw, err := storageFs.NewFSGateway(ctx, gwCfg.Path, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	logger.Info("Filesystem storage initialized: path=%s", gwCfg.Path)
	return gw, nil
}

// defaultS3OperationTimeout bounds each S3 call unless storage.s3.operation_timeout is set.
const defaultS3OperationTimeout = 30 * time.Second

// S3GatewayOptions are the options accepted under storage.s3.
type S3GatewayOptions struct {
	Region           string        `mapstructure:"region"`
	Bucket           string        `mapstructure:"bucket"`
	KeyPrefix        string        `mapstructure:"key_prefix"`
	Endpoint         string        `mapstructure:"endpoint"`
	AccessKeyID      string        `mapstructure:"access_key_id"`
	SecretAccessKey  string        `mapstructure:"secret_access_key"`
	MaxRetries       int           `mapstructure:"max_retries"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// NewS3Client builds an S3 client from the storage.s3 options.
//
// A custom endpoint (MinIO, Localstack) switches to path-style addressing.
// Credentials fall back to the default AWS chain when not given.
func NewS3Client(ctx context.Context, opts S3GatewayOptions) (*s3.Client, error) {
	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	// A single attempt by default: a failed backend call surfaces as a 500
	// to the editor, which retries on its own schedule.
	maxAttempts := opts.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxAttempts
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// createS3Gateway creates an S3-backed gateway.
func createS3Gateway(ctx context.Context, options map[string]any, metrics storage.Metrics) (storage.Gateway, error) {
	var gwOpts S3GatewayOptions
	if err := decodeOptions(options, &gwOpts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 storage config: %w", err)
	}

	// Validate required fields
	if gwOpts.Bucket == "" {
		return nil, fmt.Errorf("S3 storage: bucket is required")
	}
	if gwOpts.Region == "" {
		return nil, fmt.Errorf("S3 storage: region is required")
	}
	if gwOpts.OperationTimeout == 0 {
		gwOpts.OperationTimeout = defaultS3OperationTimeout
	}

	// ========================================================================
	// Step 1: Build S3 client
	// ========================================================================

	client, err := NewS3Client(ctx, gwOpts)
	if err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Create gateway (verifies bucket access)
	// ========================================================================

	gw, err := storageS3.NewS3Gateway(ctx, storageS3.S3GatewayConfig{
		Client:           client,
		Bucket:           gwOpts.Bucket,
		KeyPrefix:        gwOpts.KeyPrefix,
		OperationTimeout: gwOpts.OperationTimeout,
		Metrics:          metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 storage: %w", err)
	}

	logger.Info("S3 storage initialized: bucket=%s, region=%s, prefix=%s",
		gwOpts.Bucket, gwOpts.Region, gwOpts.KeyPrefix)

	return gw, nil
}

// tokenOptions converts the tokens section into registry options.
func tokenOptions(cfg *TokensConfig) token.Options {
	return token.Options{
		TTL:        cfg.TTL,
		MaxEntries: cfg.MaxEntries,
	}.WithDefaults()
}

// CreateRegistry creates the token registry for stateful mode.
//
// Supported stores:
//   - "memory": Uses pkg/token/memory (tokens are lost on restart)
//   - "badger": Uses pkg/token/badger (tokens survive restarts)
func CreateRegistry(ctx context.Context, cfg *TokensConfig) (token.Registry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Store {
	case "memory":
		return tokenMemory.NewMemoryRegistry(tokenOptions(cfg)), nil
	case "badger":
		regCfg := tokenBadger.BadgerRegistryConfig{}
		if err := decodeOptions(cfg.Badger, &regCfg); err != nil {
			return nil, fmt.Errorf("failed to decode badger token store options: %w", err)
		}
		if regCfg.DBPath == "" && !regCfg.InMemory {
			return nil, fmt.Errorf("badger token store: db_path is required")
		}
		regCfg.Options = tokenOptions(cfg)

		reg, err := tokenBadger.NewBadgerRegistry(ctx, regCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create badger token store: %w", err)
		}
		return reg, nil
	default:
		return nil, fmt.Errorf("unknown token store: %q", cfg.Store)
	}
}

// CreateAuthorizer creates the authorizer for the configured mode.
//
// In stateful mode the returned registry must be closed by the caller. In
// stateless mode the registry is nil.
func CreateAuthorizer(ctx context.Context, cfg *TokensConfig) (token.Authorizer, token.Registry, error) {
	switch cfg.Mode {
	case "stateful":
		reg, err := CreateRegistry(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return token.NewStateful(reg), reg, nil
	case "stateless":
		if !cfg.AllowInsecureStateless {
			return nil, nil, fmt.Errorf("stateless token mode requires allow_insecure_stateless")
		}
		auth, err := token.NewStateless(cfg.StatelessMarker)
		if err != nil {
			return nil, nil, err
		}
		logger.Warn("Stateless token mode enabled: any token containing %q grants access to every file", cfg.StatelessMarker)
		return auth, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown token mode: %q", cfg.Mode)
	}
}

// CreateAccessLimiter creates the per-client limiter for the access-grant
// endpoint. Returns nil when rate limiting is disabled.
func CreateAccessLimiter(cfg *RateLimitConfig) *ratelimiter.KeyedLimiter {
	if cfg.RequestsPerSecond == 0 {
		return nil
	}
	return ratelimiter.NewKeyed(ratelimiter.KeyedConfig{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		MaxKeys:           cfg.MaxClients,
	})
}

// ToBridgeConfig converts the wopi and cors sections into a bridge.Config.
func (c *Config) ToBridgeConfig() bridge.Config {
	return bridge.Config{
		HostURL:           c.WOPI.HostURL,
		EditorURL:         c.WOPI.EditorURL,
		LaunchPath:        c.WOPI.LaunchPath,
		ContentType:       c.WOPI.ContentType,
		MaxBodySize:       c.WOPI.MaxBodySize,
		OwnerID:           c.WOPI.OwnerID,
		UserID:            c.WOPI.UserID,
		TrustProxyHeaders: c.WOPI.TrustProxyHeaders,
		CORS: bridge.CORSConfig{
			AllowedOrigins: c.CORS.AllowedOrigins,
			AllowedMethods: c.CORS.AllowedMethods,
			AllowedHeaders: c.CORS.AllowedHeaders,
			MaxAge:         c.CORS.MaxAge,
		},
	}
}

// ToServerConfig converts the server section into a server.Config.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Port:              c.Server.Port,
		ReadHeaderTimeout: c.Server.ReadHeaderTimeout,
		ReadTimeout:       c.Server.ReadTimeout,
		WriteTimeout:      c.Server.WriteTimeout,
		IdleTimeout:       c.Server.IdleTimeout,
		ShutdownTimeout:   c.Server.ShutdownTimeout,
	}
}
