package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/pkg/bridge"
	"github.com/marmos91/dittowopi/pkg/config"
	"github.com/marmos91/dittowopi/pkg/server"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the WOPI bridge",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		return run(ctx, cfg)
	},
}

// run wires every component from cfg and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	// ========================================================================
	// Step 1: Logging and metrics
	// ========================================================================

	if err := config.ConfigureLogging(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	logger.Info("dittowopi %s starting", version)

	metricsResult := config.InitializeMetrics(cfg)

	// ========================================================================
	// Step 2: Storage gateway and token authorizer
	// ========================================================================

	gateway, err := config.CreateGateway(ctx, &cfg.Storage, metricsResult.Storage)
	if err != nil {
		return err
	}

	auth, registry, err := config.CreateAuthorizer(ctx, &cfg.Tokens)
	if err != nil {
		return err
	}
	if registry != nil {
		defer func() {
			if err := registry.Close(); err != nil {
				logger.Error("Failed to close token registry: %v", err)
			}
		}()
	}
	logger.Info("Token mode: %s (store=%s, ttl=%s)", auth.Mode(), cfg.Tokens.Store, cfg.Tokens.TTL)

	// ========================================================================
	// Step 3: HTTP handler and server
	// ========================================================================

	handler, err := bridge.New(cfg.ToBridgeConfig(), gateway, auth,
		bridge.WithMetrics(metricsResult.Bridge),
		bridge.WithAccessRateLimit(config.CreateAccessLimiter(&cfg.RateLimit)),
	)
	if err != nil {
		return err
	}

	srv := server.New(cfg.ToServerConfig(), handler)

	if registry != nil {
		sweeper := server.NewTokenSweeper(registry, cfg.Tokens.SweepInterval, metricsResult.Bridge)
		srv.AddBackground(sweeper.Run)
	}

	if metricsResult.Server != nil {
		srv.AddBackground(func(ctx context.Context) {
			if err := metricsResult.Server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error: %v", err)
			}
		})
	}

	logger.Info("WOPI host %s, editor %s", cfg.WOPI.HostURL, cfg.WOPI.EditorURL)
	return srv.Serve(ctx)
}
