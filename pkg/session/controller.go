package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultValidateInterval is how often the controller re-checks the
// server-side session while authenticated.
const DefaultValidateInterval = 30 * time.Second

// Callbacks is the application surface the controller drives. Nil
// callbacks are skipped. ShowWarning receives the remaining time so
// the UI can render a live countdown (refreshable via TimeRemaining).
type Callbacks struct {
	ShowWarning func(remaining time.Duration)
	HideWarning func()
	SignOut     func()
	Redirect    func()
	Reload      func()
	Notify      func(message string)
}

// ControllerConfig configures the auto-logout controller. Zero
// intervals fall back to HeartbeatInterval and DefaultValidateInterval.
type ControllerConfig struct {
	Idle           IdleConfig
	SyncKey        string
	UserID         string
	HeartbeatEvery time.Duration
	ValidateEvery  time.Duration
}

// Controller composes the idle timer, the cross-tab broadcaster, and
// the session validator into the auto-logout behavior: idle warning →
// warning UI, idle expiry → broadcast logout + sign out + redirect,
// remote logout → local sign-out without re-broadcast. While
// authenticated it also emits heartbeats and periodically re-validates
// the server-side session; both loops stop the moment the tab signs
// out.
type Controller struct {
	mu             sync.Mutex
	idle           *IdleTimer
	broadcaster    *Broadcaster
	validator      *Validator
	callbacks      Callbacks
	logger         *slog.Logger
	heartbeatEvery time.Duration
	validateEvery  time.Duration
	stopCh         chan struct{}
	stopOnce       sync.Once
	signedOut      bool
}

// NewController wires the controller. validator may be nil for clients
// that skip server-side extension and validation. A fresh login should
// build a fresh controller; instances do not survive their own logout.
func NewController(channel Channel, validator *Validator, config ControllerConfig, callbacks Callbacks, logger *slog.Logger) (*Controller, error) {
	if config.Idle == (IdleConfig{}) {
		config.Idle = DefaultIdleConfig()
	}
	if config.HeartbeatEvery <= 0 {
		config.HeartbeatEvery = HeartbeatInterval
	}
	if config.ValidateEvery <= 0 {
		config.ValidateEvery = DefaultValidateInterval
	}

	c := &Controller{
		validator:      validator,
		callbacks:      callbacks,
		logger:         logger,
		heartbeatEvery: config.HeartbeatEvery,
		validateEvery:  config.ValidateEvery,
		stopCh:         make(chan struct{}),
	}

	idle, err := NewIdleTimer(config.Idle, c.handleWarning, c.handleIdleLogout, logger)
	if err != nil {
		return nil, err
	}
	c.idle = idle

	c.broadcaster = NewBroadcaster(channel, config.SyncKey, config.UserID, BroadcastHandlers{
		OnRemoteLogout:  c.handleRemoteLogout,
		OnRemoteLogin:   c.handleRemoteLogin,
		OnRemoteRefresh: c.handleRemoteRefresh,
	}, logger)

	return c, nil
}

// Start begins the idle cycle, subscribes to cross-tab events, and
// launches the heartbeat and session-validation loops.
func (c *Controller) Start() {
	c.broadcaster.Start()
	c.idle.Start()

	go c.heartbeatLoop()
	if c.validator != nil {
		go c.validateLoop()
	}
}

// Stop tears the controller down without signing out: timers and loops
// are cancelled and the channel subscription dropped.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.idle.Stop()
	c.broadcaster.Close()
}

// heartbeatLoop emits liveness pulses while the tab is authenticated.
// The ticker spacing is the throttle; the loop exits with stopCh, which
// signOutLocally closes, so a signed-out tab goes silent.
func (c *Controller) heartbeatLoop() {
	ticker := time.NewTicker(c.heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.broadcaster.Broadcast(ActionHeartbeat)
		case <-c.stopCh:
			return
		}
	}
}

// validateLoop periodically confirms the server still honors the
// session. A transport failure is recorded by the validator and
// otherwise ignored here: only a clean "not valid" answer signs the
// tab out, so network blips never log anyone out.
func (c *Controller) validateLoop() {
	ticker := time.NewTicker(c.validateEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_, valid, err := c.validator.Check(ctx)
			cancel()
			if err != nil {
				continue
			}
			if !valid {
				c.notify("Your session has expired")
				c.handleIdleLogout()
				return
			}
		case <-c.stopCh:
			return
		}
	}
}

// Touch forwards an activity event to the idle timer
func (c *Controller) Touch() {
	c.idle.Touch()
}

// TimeRemaining reports the idle budget left
func (c *Controller) TimeRemaining() time.Duration {
	return c.idle.TimeRemaining()
}

// TabID returns the underlying broadcaster's tab identifier
func (c *Controller) TabID() string {
	return c.broadcaster.TabID()
}

// NotifyClosing forwards the unload-path close signal
func (c *Controller) NotifyClosing() {
	c.broadcaster.NotifyClosing()
}

// Extend dismisses the warning and restarts the idle cycle, then
// attempts a server-side session extension. The local timer is already
// reset before the server round trip, so a failed refresh never blocks
// the extension; it only warns that other tabs may be out of sync.
func (c *Controller) Extend(ctx context.Context) {
	c.idle.ExtendSession()
	if c.callbacks.HideWarning != nil {
		c.callbacks.HideWarning()
	}

	if c.validator == nil {
		return
	}
	if _, err := c.validator.Refresh(ctx); err != nil {
		if c.logger != nil {
			c.logger.Warn("session extension failed server-side", slog.Any("error", err))
		}
		c.notify("Session extended locally, but other tabs may be out of sync")
		return
	}
	c.broadcaster.Broadcast(ActionRefresh)
}

// LogoutNow is the warning dialog's "log out now" action: identical to
// the idle expiry path.
func (c *Controller) LogoutNow() {
	c.idle.Stop()
	c.handleIdleLogout()
}

func (c *Controller) handleWarning() {
	if c.callbacks.ShowWarning != nil {
		c.callbacks.ShowWarning(c.idle.TimeRemaining())
	}
}

func (c *Controller) handleIdleLogout() {
	// Broadcast before tearing down: signOutLocally closes the
	// broadcaster, and other tabs must hear about the logout first.
	c.broadcaster.Broadcast(ActionLogout)
	c.signOutLocally()
	if c.callbacks.Redirect != nil {
		c.callbacks.Redirect()
	}
}

// handleRemoteLogout signs this tab out because another tab did. It
// must never re-broadcast the logout it is reacting to, or two tabs
// would ping-pong forever.
func (c *Controller) handleRemoteLogout() {
	c.mu.Lock()
	if c.signedOut {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if c.callbacks.HideWarning != nil {
		c.callbacks.HideWarning()
	}
	c.notify("Logged out in another tab")
	c.signOutLocally()
	if c.callbacks.Redirect != nil {
		c.callbacks.Redirect()
	}
}

func (c *Controller) handleRemoteLogin(userID string) {
	c.mu.Lock()
	authenticated := !c.signedOut
	c.mu.Unlock()
	if authenticated {
		// Already signed in; another tab's login needs no action here.
		return
	}
	if c.callbacks.Reload != nil {
		c.callbacks.Reload()
	}
}

func (c *Controller) handleRemoteRefresh(userID string) {
	if c.logger != nil {
		c.logger.Debug("session extended in another tab", slog.String("user_id", userID))
	}
}

// signOutLocally transitions the tab out of "authenticated": it stops
// the heartbeat and validation loops, the idle timers, and the channel
// subscription before running the sign-out callback, so nothing fires
// against the torn-down session afterwards.
func (c *Controller) signOutLocally() {
	c.mu.Lock()
	if c.signedOut {
		c.mu.Unlock()
		return
	}
	c.signedOut = true
	c.mu.Unlock()

	c.stopOnce.Do(func() { close(c.stopCh) })
	c.idle.Stop()
	c.broadcaster.Close()
	if c.callbacks.SignOut != nil {
		c.callbacks.SignOut()
	}
}

func (c *Controller) notify(message string) {
	if c.callbacks.Notify != nil {
		c.callbacks.Notify(message)
	}
}
