package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rea-backoffice/sessiongate/internal/models"
)

// SessionTokenManager issues and validates the signed session token carried
// by the session cookie.
type SessionTokenManager struct {
	secret     string
	sessionTTL time.Duration
}

// NewSessionTokenManager creates a new SessionTokenManager
func NewSessionTokenManager(secret string, sessionTTL time.Duration) *SessionTokenManager {
	return &SessionTokenManager{
		secret:     secret,
		sessionTTL: sessionTTL,
	}
}

// TTL returns the configured session lifetime.
func (tm *SessionTokenManager) TTL() time.Duration {
	return tm.sessionTTL
}

// Generate creates a session token for the given user.
func (tm *SessionTokenManager) Generate(user *models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.sessionTTL)

	claims := &models.SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Validate parses and verifies a session token, returning its claims.
func (tm *SessionTokenManager) Validate(tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(tm.secret), nil
	})
	if err != nil {
		return nil, models.ErrUnauthorized
	}

	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}
