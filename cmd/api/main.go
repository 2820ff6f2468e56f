package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rea-backoffice/sessiongate/internal/auth"
	"github.com/rea-backoffice/sessiongate/internal/background"
	"github.com/rea-backoffice/sessiongate/internal/config"
	"github.com/rea-backoffice/sessiongate/internal/database"
	"github.com/rea-backoffice/sessiongate/internal/handlers"
	middlewareCustom "github.com/rea-backoffice/sessiongate/internal/middleware"
	"github.com/rea-backoffice/sessiongate/internal/ratelimit"
	"github.com/rea-backoffice/sessiongate/internal/repositories"
	"github.com/rea-backoffice/sessiongate/internal/routes"
	"github.com/rea-backoffice/sessiongate/internal/services"
	pkghttp "github.com/rea-backoffice/sessiongate/pkg/http"
	pkglogger "github.com/rea-backoffice/sessiongate/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.Connect(context.Background(), &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	userRepo := repositories.NewUserRepository(db)

	// Two limiter singletons: the strict login limiter and the looser
	// general API limiter. Both live for the life of the process.
	loginLimiter := ratelimit.NewLimiter(ratelimit.Config{
		MaxAttempts:   cfg.RateLimit.LoginMaxAttempts,
		Window:        cfg.RateLimit.LoginWindow,
		BlockDuration: cfg.RateLimit.LoginBlockDuration,
	}, logger)
	apiLimiter := ratelimit.NewLimiter(ratelimit.Config{
		MaxAttempts:   cfg.RateLimit.APIMaxAttempts,
		Window:        cfg.RateLimit.APIWindow,
		BlockDuration: cfg.RateLimit.APIBlockDuration,
	}, logger)

	cleanupManager := background.NewCleanupManager(
		map[string]*ratelimit.Limiter{
			"login": loginLimiter,
			"api":   apiLimiter,
		},
		logger,
		cfg.RateLimit.CleanupInterval,
	)

	tokenManager := auth.NewSessionTokenManager(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)
	cookieConfig := auth.CookieConfig{
		Domain: cfg.Auth.CookieDomain,
		Secure: cfg.Auth.CookieSecure,
	}
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	auditLogger := pkglogger.NewAuditLogger(logger)
	authService := services.NewAuthService(userRepo, loginLimiter, logger, auditLogger)

	authHandler := handlers.NewAuthHandler(authService, tokenManager, cookieConfig, ipConfig)
	sessionHandler := handlers.NewSessionHandler(authService, tokenManager, cookieConfig)
	rateLimitHandler := handlers.NewRateLimitHandler(loginLimiter, auditLogger, ipConfig)

	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middlewareCustom.APIThrottle(apiLimiter, ipConfig))

	routes.RegisterRoutes(router, authHandler, sessionHandler, rateLimitHandler, tokenManager)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
