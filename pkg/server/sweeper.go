package server

import (
	"context"
	"time"

	"github.com/marmos91/dittowopi/internal/logger"
	"github.com/marmos91/dittowopi/pkg/token"
)

// SweepRecorder receives the number of tokens removed by each sweep.
type SweepRecorder interface {
	RecordTokensSwept(n int)
}

// TokenSweeper periodically removes expired tokens from a registry so that
// memory (or disk) use tracks live tokens only.
type TokenSweeper struct {
	registry token.Registry
	interval time.Duration
	recorder SweepRecorder
}

// NewTokenSweeper creates a sweeper. recorder may be nil.
func NewTokenSweeper(registry token.Registry, interval time.Duration, recorder SweepRecorder) *TokenSweeper {
	return &TokenSweeper{registry: registry, interval: interval, recorder: recorder}
}

// Run sweeps every interval until ctx is cancelled. A non-positive interval
// disables sweeping.
func (s *TokenSweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		logger.Debug("Token sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Debug("Token sweeper running every %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep and returns how many tokens were removed.
func (s *TokenSweeper) SweepOnce(ctx context.Context) int {
	removed, err := s.registry.SweepExpired(ctx)
	if err != nil {
		logger.Warn("Token sweep failed: %v", err)
	}
	if removed > 0 {
		logger.Debug("Swept %d expired tokens, %d remaining", removed, s.registry.Len())
	}
	if s.recorder != nil {
		s.recorder.RecordTokensSwept(removed)
	}
	return removed
}
