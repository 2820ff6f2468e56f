package middleware_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rea-backoffice/sessiongate/internal/middleware"
	"github.com/rea-backoffice/sessiongate/internal/ratelimit"
	"github.com/stretchr/testify/assert"
)

func TestAPIThrottle_AllowsUntilCapThenBlocks(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		MaxAttempts:   3,
		Window:        time.Minute,
		BlockDuration: 5 * time.Minute,
	}, logger)

	handler := middleware.APIThrottle(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest("GET", "/properties", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{200, 200, 429, 429}, codes)
}

func TestAPIThrottle_SeparateClientsIndependent(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		MaxAttempts:   2,
		Window:        time.Minute,
		BlockDuration: 5 * time.Minute,
	}, logger)

	handler := middleware.APIThrottle(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest("GET", "/properties", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	send("203.0.113.7:1234")
	send("203.0.113.7:1234")
	assert.Equal(t, 429, send("203.0.113.7:1234"))
	assert.Equal(t, 200, send("198.51.100.9:1234"))
}
