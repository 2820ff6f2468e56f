package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// Config holds the fixed-window limiter thresholds.
type Config struct {
	MaxAttempts   int
	Window        time.Duration
	BlockDuration time.Duration
}

// DefaultLoginConfig returns the thresholds for login attempt throttling.
func DefaultLoginConfig() Config {
	return Config{
		MaxAttempts:   5,
		Window:        15 * time.Minute,
		BlockDuration: 30 * time.Minute,
	}
}

// DefaultAPIConfig returns the looser thresholds for general API throttling.
func DefaultAPIConfig() Config {
	return Config{
		MaxAttempts:   60,
		Window:        1 * time.Minute,
		BlockDuration: 5 * time.Minute,
	}
}

// Status is the outcome of a limiter check or attempt, returned as data.
// Denial is never an error: the HTTP layer maps Allowed=false to 429.
type Status struct {
	Allowed       bool
	Remaining     int
	WindowResetAt time.Time
	Blocked       bool
	BlockUntil    time.Time // zero when not blocked
	RateLimited   bool      // set by RecordAttempt when the attempt was denied or triggered a block
}

type entry struct {
	count         int
	windowResetAt time.Time
	blocked       bool
	blockUntil    time.Time
}

// Limiter is a fixed-window login attempt limiter with escalating lockout.
// It owns its key->entry map exclusively; all mutation goes through
// RecordAttempt under the mutex, so interleaved requests cannot lose updates.
type Limiter struct {
	mu      sync.Mutex
	config  Config
	entries map[string]*entry
	logger  *slog.Logger
	now     func() time.Time
}

// NewLimiter creates a limiter with the given thresholds.
func NewLimiter(config Config, logger *slog.Logger) *Limiter {
	return &Limiter{
		config:  config,
		entries: make(map[string]*entry),
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides the limiter's time source. Test use only.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Key derives the lookup key from a hashed client IP and an optional
// secondary identifier (e.g. the attempted email). Callers must pass the
// IP already hashed; raw IPs never enter the map.
func Key(hashedIP, identifier string) string {
	if identifier == "" {
		return hashedIP
	}
	return hashedIP + ":" + identifier
}

// Status reports the current state for a key without mutating stored state.
// An expired window is reported as fresh; the actual reset happens on the
// next RecordAttempt.
func (l *Limiter) Status(key string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]

	if ok && e.blocked && now.Before(e.blockUntil) {
		return Status{
			Allowed:       false,
			Remaining:     0,
			WindowResetAt: e.windowResetAt,
			Blocked:       true,
			BlockUntil:    e.blockUntil,
		}
	}

	// Missing entry, expired window, or expired block all read as fresh.
	if !ok || now.After(e.windowResetAt) || e.blocked {
		return Status{
			Allowed:       true,
			Remaining:     l.config.MaxAttempts,
			WindowResetAt: now.Add(l.config.Window),
		}
	}

	remaining := l.config.MaxAttempts - e.count
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Allowed:       e.count < l.config.MaxAttempts,
		Remaining:     remaining,
		WindowResetAt: e.windowResetAt,
	}
}

// RecordAttempt records one login attempt outcome for a key and returns the
// updated state. A successful attempt forgives all prior failures; a failed
// attempt that reaches MaxAttempts starts the block period.
func (l *Limiter) RecordAttempt(key string, succeeded bool) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]

	// An active block dominates everything: deny without mutation.
	if ok && e.blocked && now.Before(e.blockUntil) {
		return Status{
			Allowed:       false,
			Remaining:     0,
			WindowResetAt: e.windowResetAt,
			Blocked:       true,
			BlockUntil:    e.blockUntil,
			RateLimited:   true,
		}
	}

	// Fresh entry on first attempt, window expiry, or block expiry.
	if !ok || now.After(e.windowResetAt) || e.blocked {
		e = &entry{windowResetAt: now.Add(l.config.Window)}
		l.entries[key] = e
	}

	if succeeded {
		delete(l.entries, key)
		return Status{
			Allowed:       true,
			Remaining:     l.config.MaxAttempts,
			WindowResetAt: now.Add(l.config.Window),
		}
	}

	e.count++
	if e.count >= l.config.MaxAttempts {
		e.blocked = true
		e.blockUntil = now.Add(l.config.BlockDuration)
		l.logger.Warn("rate limit block started",
			slog.Int("attempts", e.count),
			slog.Time("block_until", e.blockUntil))
	}

	remaining := l.config.MaxAttempts - e.count
	if remaining < 0 {
		remaining = 0
	}
	st := Status{
		Allowed:       remaining > 0,
		Remaining:     remaining,
		WindowResetAt: e.windowResetAt,
		Blocked:       e.blocked,
		RateLimited:   e.blocked,
	}
	if e.blocked {
		st.BlockUntil = e.blockUntil
	}
	return st
}

// Cleanup evicts entries whose window has expired and which are not blocked,
// plus entries whose block period has ended. Returns the number evicted.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	evicted := 0
	for key, e := range l.entries {
		if (!e.blocked && now.After(e.windowResetAt)) ||
			(e.blocked && now.After(e.blockUntil)) {
			delete(l.entries, key)
			evicted++
		}
	}
	return evicted
}

// EntryStat is a debug view of one active limiter entry.
type EntryStat struct {
	Key        string        `json:"key"`
	Count      int           `json:"count"`
	Blocked    bool          `json:"blocked"`
	ResetIn    time.Duration `json:"reset_in"`
	BlockedFor time.Duration `json:"blocked_for,omitempty"`
}

// Stats is a point-in-time summary of limiter occupancy, for debug surfaces.
type Stats struct {
	TotalActive int         `json:"total_active"`
	Blocked     int         `json:"blocked"`
	Entries     []EntryStat `json:"entries"`
}

// Snapshot returns the currently active entries. Expired entries awaiting
// cleanup are skipped.
func (l *Limiter) Snapshot() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stats := Stats{Entries: make([]EntryStat, 0, len(l.entries))}
	for key, e := range l.entries {
		active := now.Before(e.windowResetAt) || (e.blocked && now.Before(e.blockUntil))
		if !active {
			continue
		}
		es := EntryStat{
			Key:     key,
			Count:   e.count,
			Blocked: e.blocked,
			ResetIn: e.windowResetAt.Sub(now),
		}
		if es.ResetIn < 0 {
			es.ResetIn = 0
		}
		if e.blocked {
			es.BlockedFor = e.blockUntil.Sub(now)
			stats.Blocked++
		}
		stats.Entries = append(stats.Entries, es)
	}
	stats.TotalActive = len(stats.Entries)
	return stats
}
