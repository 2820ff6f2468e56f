package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Idle timeout defaults. The back office uses a 30 minute budget with a
// 5 minute warning lead; kiosk-style extended sessions use the 8 hour
// variant. Both are explicit named constants so neither silently wins.
const (
	DefaultIdleTimeout     = 30 * time.Minute
	ExtendedIdleTimeout    = 8 * time.Hour
	DefaultIdleWarningLead = 5 * time.Minute
)

// State is the idle timer's lifecycle state.
type State int

const (
	StateActive State = iota
	StateWarning
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateWarning:
		return "warning"
	case StateLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// IdleConfig configures the idle timer. WarningLead must be strictly
// smaller than Timeout so the warning fires before the logout.
type IdleConfig struct {
	Timeout     time.Duration
	WarningLead time.Duration
}

// DefaultIdleConfig returns the standard 30m/5m surface
func DefaultIdleConfig() IdleConfig {
	return IdleConfig{
		Timeout:     DefaultIdleTimeout,
		WarningLead: DefaultIdleWarningLead,
	}
}

// IdleTimer drives the Active → Warning → LoggedOut sequence for one
// tab. Any activity while Active or Warning restarts the cycle;
// LoggedOut is terminal for the instance.
//
// At most one pending warning timer and one pending logout timer exist
// at any instant. Every scheduled callback is additionally guarded by a
// generation counter: a callback that was already queued when the cycle
// restarted sees a stale generation and does nothing, so cancellation
// races cannot fire against a torn-down cycle.
type IdleTimer struct {
	mu        sync.Mutex
	config    IdleConfig
	onWarning func()
	onLogout  func()
	logger    *slog.Logger

	state        State
	lastActivity time.Time
	generation   uint64
	warningTimer *time.Timer
	logoutTimer  *time.Timer
	started      bool

	now func() time.Time
}

// NewIdleTimer creates an idle timer. The callbacks run on timer
// goroutines; they must not call back into the timer while blocking.
func NewIdleTimer(config IdleConfig, onWarning, onLogout func(), logger *slog.Logger) (*IdleTimer, error) {
	if config.Timeout <= 0 {
		return nil, fmt.Errorf("idle timeout must be positive, got %v", config.Timeout)
	}
	if config.WarningLead <= 0 || config.WarningLead >= config.Timeout {
		return nil, fmt.Errorf("warning lead %v must be positive and smaller than timeout %v",
			config.WarningLead, config.Timeout)
	}

	return &IdleTimer{
		config:    config,
		onWarning: onWarning,
		onLogout:  onLogout,
		logger:    logger,
		state:     StateActive,
		now:       time.Now,
	}, nil
}

// Start begins the first idle cycle. No timers run before Start.
func (t *IdleTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.state == StateLoggedOut {
		return
	}
	t.started = true
	t.restartCycle()
}

// Touch records user activity: cancels both pending timers and starts a
// fresh cycle. Safe to call at any rate; a no-op once logged out.
func (t *IdleTimer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started || t.state == StateLoggedOut {
		return
	}
	t.state = StateActive
	t.restartCycle()
}

// ExtendSession behaves exactly like an activity event. Exposed for
// the "stay logged in" action in the warning dialog.
func (t *IdleTimer) ExtendSession() {
	t.Touch()
}

// TimeRemaining reports how long until the logout fires with no further
// activity. Pure query; never mutates state.
func (t *IdleTimer) TimeRemaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started || t.state == StateLoggedOut {
		return 0
	}
	remaining := t.config.Timeout - t.now().Sub(t.lastActivity)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// State returns the current lifecycle state
func (t *IdleTimer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stop cancels all pending timers and makes the instance inert. A
// fresh login should create a fresh instance rather than restart this
// one.
func (t *IdleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
	t.cancelTimers()
	t.state = StateLoggedOut
}

// restartCycle must be called with t.mu held.
func (t *IdleTimer) restartCycle() {
	t.generation++
	gen := t.generation
	t.lastActivity = t.now()
	t.cancelTimers()

	t.warningTimer = time.AfterFunc(t.config.Timeout-t.config.WarningLead, func() {
		t.fireWarning(gen)
	})
	t.logoutTimer = time.AfterFunc(t.config.Timeout, func() {
		t.fireLogout(gen)
	})
}

// cancelTimers must be called with t.mu held.
func (t *IdleTimer) cancelTimers() {
	if t.warningTimer != nil {
		t.warningTimer.Stop()
		t.warningTimer = nil
	}
	if t.logoutTimer != nil {
		t.logoutTimer.Stop()
		t.logoutTimer = nil
	}
}

func (t *IdleTimer) fireWarning(gen uint64) {
	t.mu.Lock()
	if gen != t.generation || t.state != StateActive {
		t.mu.Unlock()
		return
	}
	t.state = StateWarning
	cb := t.onWarning
	t.mu.Unlock()

	if t.logger != nil {
		t.logger.Info("idle warning fired")
	}
	if cb != nil {
		cb()
	}
}

func (t *IdleTimer) fireLogout(gen uint64) {
	t.mu.Lock()
	if gen != t.generation || t.state == StateLoggedOut {
		t.mu.Unlock()
		return
	}
	t.state = StateLoggedOut
	t.cancelTimers()
	cb := t.onLogout
	t.mu.Unlock()

	if t.logger != nil {
		t.logger.Info("idle timeout reached, logging out")
	}
	if cb != nil {
		cb()
	}
}
