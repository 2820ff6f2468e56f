package session

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Actions carried by cross-tab sync messages.
const (
	ActionLogin     = "login"
	ActionLogout    = "logout"
	ActionRefresh   = "refresh"
	ActionHeartbeat = "heartbeat"
)

const (
	// DefaultSyncKey is the well-known channel key for sync pulses.
	DefaultSyncKey = "session_sync"
	// ClosingKeySuffix marks the synchronous tab-close write, which
	// bypasses the pulse-and-remove pattern.
	ClosingKeySuffix = "_closing"
	// StalenessThreshold is the maximum message age acted upon.
	StalenessThreshold = 30 * time.Second
	// HeartbeatInterval throttles heartbeat emission.
	HeartbeatInterval = 30 * time.Second

	pulseRemoveDelay = 100 * time.Millisecond
)

// Message is the ephemeral value published to the sync channel. The
// JSON field names are the wire contract shared with the web frontend.
type Message struct {
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
	TabID     string `json:"tabId"`
	UserID    string `json:"userId,omitempty"`
}

// BroadcastHandlers receives remote events, already filtered for self
// and staleness. Nil handlers are skipped.
type BroadcastHandlers struct {
	OnRemoteLogout  func()
	OnRemoteLogin   func(userID string)
	OnRemoteRefresh func(userID string)
	OnHeartbeat     func(tabID string)
}

// Broadcaster publishes session events to other tabs and dispatches
// events received from them. Each instance owns one random tab ID for
// its lifetime; messages carrying that ID are ignored on receipt so a
// tab never reacts to its own writes.
type Broadcaster struct {
	mu            sync.Mutex
	channel       Channel
	key           string
	tabID         string
	userID        string
	handlers      BroadcastHandlers
	logger        *slog.Logger
	lastHeartbeat time.Time
	unsubscribe   func()
	closed        bool

	now func() time.Time
}

// NewBroadcaster creates a broadcaster over channel. key is the shared
// channel key (DefaultSyncKey for the standard surface); userID may be
// empty before login.
func NewBroadcaster(channel Channel, key, userID string, handlers BroadcastHandlers, logger *slog.Logger) *Broadcaster {
	if key == "" {
		key = DefaultSyncKey
	}
	return &Broadcaster{
		channel:  channel,
		key:      key,
		tabID:    uuid.NewString(),
		userID:   userID,
		handlers: handlers,
		logger:   logger,
		now:      time.Now,
	}
}

// TabID returns this instance's tab identifier
func (b *Broadcaster) TabID() string {
	return b.tabID
}

// SetClock overrides the time source. Test hook.
func (b *Broadcaster) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Start subscribes to the channel. Events published before Start are
// never delivered.
func (b *Broadcaster) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unsubscribe != nil || b.closed {
		return
	}
	b.unsubscribe = b.channel.Subscribe(b.receive)
}

// Close unsubscribes and drops all future sends and receives.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.unsubscribe != nil {
		b.unsubscribe()
		b.unsubscribe = nil
	}
}

// Broadcast publishes a pulse message: written now, removed ~100ms
// later so newly-opened tabs never read it as initial state. Publish
// failures are swallowed; cross-tab sync is best-effort and must never
// break the local tab.
func (b *Broadcaster) Broadcast(action string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	payload, err := json.Marshal(Message{
		Action:    action,
		Timestamp: b.now().UnixMilli(),
		TabID:     b.tabID,
		UserID:    b.userID,
	})
	b.mu.Unlock()
	if err != nil {
		return
	}

	if err := b.channel.Publish(b.key, string(payload)); err != nil {
		if b.logger != nil {
			b.logger.Debug("session sync publish failed", slog.Any("error", err))
		}
		return
	}

	time.AfterFunc(pulseRemoveDelay, func() {
		_ = b.channel.Remove(b.key)
	})
}

// Heartbeat emits a liveness pulse, throttled to once per
// HeartbeatInterval. Rapid callers are a no-op inside the interval.
func (b *Broadcaster) Heartbeat() {
	b.mu.Lock()
	now := b.now()
	if b.closed || now.Sub(b.lastHeartbeat) < HeartbeatInterval {
		b.mu.Unlock()
		return
	}
	b.lastHeartbeat = now
	b.mu.Unlock()

	b.Broadcast(ActionHeartbeat)
}

// NotifyClosing writes a logout-shaped message under the closing key,
// synchronously and without the delayed remove. Called from the tab's
// unload path where scheduled callbacks are unreliable; best-effort
// only.
func (b *Broadcaster) NotifyClosing() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	payload, err := json.Marshal(Message{
		Action:    ActionLogout,
		Timestamp: b.now().UnixMilli(),
		TabID:     b.tabID,
		UserID:    b.userID,
	})
	b.mu.Unlock()
	if err != nil {
		return
	}
	_ = b.channel.Publish(b.key+ClosingKeySuffix, string(payload))
}

func (b *Broadcaster) receive(key, value string) {
	if key != b.key && key != b.key+ClosingKeySuffix {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(value), &msg); err != nil {
		// The channel is shared and best-effort; foreign or mangled
		// values are discarded silently.
		if b.logger != nil {
			b.logger.Debug("discarding malformed session sync message", slog.Any("error", err))
		}
		return
	}

	b.mu.Lock()
	closed := b.closed
	now := b.now()
	b.mu.Unlock()
	if closed {
		return
	}

	if msg.TabID == b.tabID {
		return
	}
	if now.UnixMilli()-msg.Timestamp > StalenessThreshold.Milliseconds() {
		if b.logger != nil {
			b.logger.Debug("ignoring stale session sync message",
				slog.String("action", msg.Action),
				slog.Int64("age_ms", now.UnixMilli()-msg.Timestamp),
			)
		}
		return
	}

	switch msg.Action {
	case ActionLogout:
		if b.handlers.OnRemoteLogout != nil {
			b.handlers.OnRemoteLogout()
		}
	case ActionLogin:
		if msg.UserID != "" && b.handlers.OnRemoteLogin != nil {
			b.handlers.OnRemoteLogin(msg.UserID)
		}
	case ActionRefresh:
		if b.handlers.OnRemoteRefresh != nil {
			b.handlers.OnRemoteRefresh(msg.UserID)
		}
	case ActionHeartbeat:
		if b.handlers.OnHeartbeat != nil {
			b.handlers.OnHeartbeat(msg.TabID)
		}
	}
}
