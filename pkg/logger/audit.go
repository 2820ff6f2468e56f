package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuthEvent represents a security-relevant authentication event.
// IPHash must already be hashed; raw client IPs are never logged.
type AuthEvent struct {
	EventType string // "login_success", "login_failure", "rate_limit", "session_refresh", "session_expire", "logout"
	UserID    string
	Email     string
	IPHash    string
	Success   bool
	Remaining int
}

// AuditLogger provides structured audit logging for auth events
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthEvent logs one authentication event with masked identifiers
func (al *AuditLogger) LogAuthEvent(event AuthEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPHash != "" {
		attrs = append(attrs, slog.String("ip_hash", event.IPHash))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogRateLimit logs a denied login attempt with the remaining budget
func (al *AuditLogger) LogRateLimit(email, ipHash string, remaining int) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", "rate_limit"),
		slog.String("ip_hash", ipHash),
		slog.Int("remaining", remaining),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(email)))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
}
