package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rea-backoffice/sessiongate/internal/middleware"
	"github.com/stretchr/testify/assert"
)

func runSecurityHeaders(t *testing.T, env string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	handler := middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: env})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest("GET", "/auth/session", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders_SetOnEveryResponse(t *testing.T) {
	w := runSecurityHeaders(t, "development", nil)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestSecurityHeaders_HSTSOnlyInProductionOverTLS(t *testing.T) {
	w := runSecurityHeaders(t, "production", nil)
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	w = runSecurityHeaders(t, "production", func(r *http.Request) {
		r.Header.Set("X-Forwarded-Proto", "https")
	})
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=31536000")

	w = runSecurityHeaders(t, "development", func(r *http.Request) {
		r.Header.Set("X-Forwarded-Proto", "https")
	})
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestCORS_OnlyConfiguredOriginsAllowed(t *testing.T) {
	config := middleware.DefaultCORSConfig([]string{"https://backoffice.example.com"})
	handler := middleware.CORS(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/auth/session", nil)
	req.Header.Set("Origin", "https://backoffice.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "https://backoffice.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest("GET", "/auth/session", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	config := middleware.DefaultCORSConfig([]string{"https://backoffice.example.com"})
	reached := false
	handler := middleware.CORS(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest("OPTIONS", "/auth/login", nil)
	req.Header.Set("Origin", "https://backoffice.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, reached)
}
