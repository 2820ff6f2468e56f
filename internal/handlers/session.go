package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rea-backoffice/sessiongate/internal/auth"
	"github.com/rea-backoffice/sessiongate/internal/models"
	pkghttp "github.com/rea-backoffice/sessiongate/pkg/http"
)

// SessionServiceInterface defines the session validation the handler needs
type SessionServiceInterface interface {
	ValidateSession(ctx context.Context, claims *models.SessionClaims) (*models.User, error)
}

// SessionHandler serves the session check/refresh/invalidate endpoints the
// idle-timeout and tab-sync clients poll.
type SessionHandler struct {
	service      SessionServiceInterface
	tokens       *auth.SessionTokenManager
	cookieConfig auth.CookieConfig
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(service SessionServiceInterface, tokens *auth.SessionTokenManager, cookieConfig auth.CookieConfig) *SessionHandler {
	return &SessionHandler{
		service:      service,
		tokens:       tokens,
		cookieConfig: cookieConfig,
	}
}

// SessionStatusResponse is the body of GET /auth/session
type SessionStatusResponse struct {
	Valid      bool                `json:"valid"`
	Session    *models.SessionInfo `json:"session,omitempty"`
	Error      string              `json:"error,omitempty"`
	ServerTime int64               `json:"serverTime"`
}

// SessionRefreshResponse is the body of POST /auth/session
type SessionRefreshResponse struct {
	Success    bool                `json:"success"`
	Session    *models.SessionInfo `json:"session,omitempty"`
	Refreshed  bool                `json:"refreshed,omitempty"`
	Error      string              `json:"error,omitempty"`
	ServerTime int64               `json:"serverTime"`
}

func (h *SessionHandler) validate(r *http.Request) (*models.User, *models.SessionClaims, error) {
	token, err := auth.GetSessionCookie(r)
	if err != nil || token == "" {
		return nil, nil, models.ErrUnauthorized
	}

	claims, err := h.tokens.Validate(token)
	if err != nil {
		return nil, nil, models.ErrUnauthorized
	}

	user, err := h.service.ValidateSession(r.Context(), claims)
	if err != nil {
		return nil, nil, err
	}

	return user, claims, nil
}

func sessionInfo(user *models.User, expires time.Time) *models.SessionInfo {
	return &models.SessionInfo{
		User: models.SessionUser{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.FullName,
			Role:  user.Role,
		},
		Expires: expires.UTC().Format(time.RFC3339),
	}
}

// Get handles GET /auth/session: confirms the session cookie is valid and
// the user behind it still exists and is active.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, claims, err := h.validate(r)
	if err != nil {
		if errors.Is(err, models.ErrInternalServer) {
			pkghttp.WriteJSON(w, http.StatusInternalServerError, SessionStatusResponse{
				Valid:      false,
				Error:      "Session validation failed",
				ServerTime: time.Now().UnixMilli(),
			})
			return
		}
		pkghttp.WriteJSON(w, http.StatusUnauthorized, SessionStatusResponse{
			Valid:      false,
			Error:      "No active session",
			ServerTime: time.Now().UnixMilli(),
		})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SessionStatusResponse{
		Valid:      true,
		Session:    sessionInfo(user, claims.ExpiresAt.Time),
		ServerTime: time.Now().UnixMilli(),
	})
}

// Refresh handles POST /auth/session: reissues the session cookie with a
// fresh expiry so an active tab can extend its session.
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.validate(r)
	if err != nil {
		pkghttp.WriteJSON(w, http.StatusUnauthorized, SessionRefreshResponse{
			Success:    false,
			Error:      "No active session to refresh",
			ServerTime: time.Now().UnixMilli(),
		})
		return
	}

	token, expiresAt, err := h.tokens.Generate(user)
	if err != nil {
		pkghttp.WriteJSON(w, http.StatusInternalServerError, SessionRefreshResponse{
			Success:    false,
			Error:      "Session refresh failed",
			ServerTime: time.Now().UnixMilli(),
		})
		return
	}

	auth.SetSessionCookie(w, token, expiresAt, h.cookieConfig)

	pkghttp.WriteJSON(w, http.StatusOK, SessionRefreshResponse{
		Success:    true,
		Session:    sessionInfo(user, expiresAt),
		Refreshed:  true,
		ServerTime: time.Now().UnixMilli(),
	})
}

// Invalidate handles DELETE /auth/session: clears the session cookie.
// Idempotent: succeeds whether or not a session exists.
func (h *SessionHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookieConfig)

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session invalidated successfully",
	})
}
