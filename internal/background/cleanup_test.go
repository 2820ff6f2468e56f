package background_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/rea-backoffice/sessiongate/internal/background"
	"github.com/rea-backoffice/sessiongate/internal/ratelimit"
	"github.com/stretchr/testify/assert"
)

func TestCleanupManager_EvictsExpiredEntries(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	limiter := ratelimit.NewLimiter(ratelimit.DefaultLoginConfig(), logger)
	now := time.Now()
	clock := &now
	limiter.SetClock(func() time.Time { return *clock })

	limiter.RecordAttempt("a1b2c3:x@y.com", false)
	assert.Equal(t, 1, limiter.Snapshot().TotalActive)

	// Entry is past its window and holds no block, so the sweep drops it.
	expired := now.Add(16 * time.Minute)
	clock = &expired

	cm := background.NewCleanupManager(
		map[string]*ratelimit.Limiter{"login": limiter},
		logger,
		10*time.Millisecond,
	)
	go cm.Start(context.Background())
	defer cm.Stop()

	assert.Eventually(t, func() bool {
		return limiter.Snapshot().TotalActive == 0
	}, time.Second, 10*time.Millisecond)
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	limiter := ratelimit.NewLimiter(ratelimit.DefaultLoginConfig(), logger)

	cm := background.NewCleanupManager(
		map[string]*ratelimit.Limiter{"login": limiter},
		logger,
		10*time.Millisecond,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop after context cancel")
	}
}
