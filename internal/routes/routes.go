package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/rea-backoffice/sessiongate/internal/auth"
	"github.com/rea-backoffice/sessiongate/internal/handlers"
	"github.com/rea-backoffice/sessiongate/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	sessionHandler *handlers.SessionHandler,
	rateLimitHandler *handlers.RateLimitHandler,
	tokenManager *auth.SessionTokenManager,
) {
	burstLimit := middleware.DefaultAuthBurstLimit()

	// Public routes - the frontend polls these before and during login,
	// so they must work without a session.
	router.With(middleware.BurstLimitByIP(burstLimit)).Post("/auth/login", authHandler.Login)
	router.Get("/auth/check-rate-limit", rateLimitHandler.Check)
	router.With(middleware.BurstLimitByIP(burstLimit)).Post("/auth/check-rate-limit", rateLimitHandler.Record)

	// Session endpoints are public on purpose: a GET with no cookie is the
	// normal "am I logged in" check and must return a clean 401 body, and
	// DELETE must stay idempotent even after the cookie is already gone.
	router.Get("/auth/session", sessionHandler.Get)
	router.Post("/auth/session", sessionHandler.Refresh)
	router.Delete("/auth/session", sessionHandler.Invalidate)
	router.Post("/auth/logout", authHandler.Logout)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(tokenManager))

		r.Get("/auth/rate-limit-stats", rateLimitHandler.Stats)
	})
}
