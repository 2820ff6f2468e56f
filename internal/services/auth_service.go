package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rea-backoffice/sessiongate/internal/models"
	"github.com/rea-backoffice/sessiongate/internal/ratelimit"
	pkgauth "github.com/rea-backoffice/sessiongate/pkg/auth"
	pkglogger "github.com/rea-backoffice/sessiongate/pkg/logger"
)

// UserRepository defines the user lookups the auth service needs
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Bcrypt hash of an unguessable value, compared against when the user does
// not exist so lookup misses take as long as password mismatches.
const dummyPasswordHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// AuthService implements login and session validation on top of the user
// store and the login rate limiter.
type AuthService struct {
	users        UserRepository
	loginLimiter *ratelimit.Limiter
	logger       *slog.Logger
	audit        *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(users UserRepository, loginLimiter *ratelimit.Limiter, logger *slog.Logger, audit *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		users:        users,
		loginLimiter: loginLimiter,
		logger:       logger,
		audit:        audit,
	}
}

// Login verifies credentials for a client identified by its hashed IP.
// Every outcome is recorded in the login limiter; the returned Status
// carries the remaining-attempt/lockout state for the client UI.
func (s *AuthService) Login(ctx context.Context, email, password, ipHash string) (*models.User, ratelimit.Status, error) {
	key := ratelimit.Key(ipHash, email)

	status := s.loginLimiter.Status(key)
	if !status.Allowed {
		s.audit.LogRateLimit(email, ipHash, status.Remaining)
		return nil, status, models.ErrRateLimitExceeded
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("user lookup failed", slog.Any("error", err))
			return nil, status, models.ErrInternalServer
		}
		// Burn comparable time on unknown emails before recording the failure
		_ = pkgauth.ComparePassword(dummyPasswordHash, password)
		return nil, s.recordFailure(key, email, ipHash), models.ErrUnauthorized
	}

	if !user.IsActive {
		return nil, s.recordFailure(key, email, ipHash), models.ErrUnauthorized
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, s.recordFailure(key, email, ipHash), models.ErrUnauthorized
	}

	status = s.loginLimiter.RecordAttempt(key, true)
	s.audit.LogAuthEvent(pkglogger.AuthEvent{
		EventType: "login_success",
		UserID:    user.ID,
		Email:     email,
		IPHash:    ipHash,
		Success:   true,
	})
	return user, status, nil
}

func (s *AuthService) recordFailure(key, email, ipHash string) ratelimit.Status {
	status := s.loginLimiter.RecordAttempt(key, false)
	s.audit.LogAuthEvent(pkglogger.AuthEvent{
		EventType: "login_failure",
		Email:     email,
		IPHash:    ipHash,
		Success:   false,
		Remaining: status.Remaining,
	})
	if status.RateLimited {
		s.audit.LogRateLimit(email, ipHash, status.Remaining)
	}
	return status
}

// ValidateSession confirms the user behind a session still exists and is
// active. Returns ErrUnauthorized otherwise.
func (s *AuthService) ValidateSession(ctx context.Context, claims *models.SessionClaims) (*models.User, error) {
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("session user lookup failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.IsActive {
		return nil, models.ErrUnauthorized
	}

	return user, nil
}
