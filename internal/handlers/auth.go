package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rea-backoffice/sessiongate/internal/auth"
	"github.com/rea-backoffice/sessiongate/internal/models"
	"github.com/rea-backoffice/sessiongate/internal/ratelimit"
	pkghttp "github.com/rea-backoffice/sessiongate/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, ipHash string) (*models.User, ratelimit.Status, error)
}

// AuthHandler handles login and logout
type AuthHandler struct {
	service      AuthServiceInterface
	tokens       *auth.SessionTokenManager
	cookieConfig auth.CookieConfig
	ipConfig     *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, tokens *auth.SessionTokenManager, cookieConfig auth.CookieConfig, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:      service,
		tokens:       tokens,
		cookieConfig: cookieConfig,
		ipConfig:     ipConfig,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	Session   *models.SessionInfo     `json:"session"`
	RateLimit RateLimitStatusResponse `json:"rateLimit"`
}

// Login handles POST /auth/login: verifies credentials, records the attempt
// in the login limiter, and sets the session cookie on success.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	ipHash := pkghttp.HashIP(pkghttp.ExtractClientIP(r, h.ipConfig))

	user, status, err := h.service.Login(r.Context(), req.Email, req.Password, ipHash)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRateLimitExceeded):
			// Include the lockout state so the UI can render a retry countdown
			pkghttp.WriteJSON(w, http.StatusTooManyRequests, RecordAttemptResponse{
				RateLimitStatusResponse: toStatusResponse(status),
				RateLimited:             true,
			})
		case errors.Is(err, models.ErrUnauthorized):
			if status.RateLimited {
				pkghttp.WriteJSON(w, http.StatusTooManyRequests, RecordAttemptResponse{
					RateLimitStatusResponse: toStatusResponse(status),
					RateLimited:             true,
				})
				return
			}
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	token, expiresAt, err := h.tokens.Generate(user)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.SetSessionCookie(w, token, expiresAt, h.cookieConfig)

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		Session:   sessionInfo(user, expiresAt),
		RateLimit: toStatusResponse(status),
	})
}

// Logout handles POST /auth/logout by clearing the session cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}
