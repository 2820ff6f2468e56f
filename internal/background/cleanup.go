package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/rea-backoffice/sessiongate/internal/ratelimit"
)

// CleanupManager periodically evicts expired entries from the rate
// limiters so abandoned clients do not accumulate in memory.
type CleanupManager struct {
	limiters map[string]*ratelimit.Limiter
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager over the named limiters
func NewCleanupManager(
	limiters map[string]*ratelimit.Limiter,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		limiters: limiters,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep. Blocks until Stop is called or the
// context is cancelled, so run it in its own goroutine.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cm.runSweep()
		case <-cm.stopCh:
			cm.logger.Info("rate limit cleanup stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("rate limit cleanup context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runSweep() {
	for name, limiter := range cm.limiters {
		evicted := limiter.Cleanup()
		if evicted > 0 {
			cm.logger.Info("rate limit entries evicted",
				slog.String("limiter", name),
				slog.Int("evicted", evicted),
			)
		}
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
