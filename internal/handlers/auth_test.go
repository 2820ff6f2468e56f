package handlers_test

import (
	"context"
	"testing"
	"time"

	"net/http/httptest"

	"github.com/rea-backoffice/sessiongate/internal/auth"
	"github.com/rea-backoffice/sessiongate/internal/handlers"
	"github.com/rea-backoffice/sessiongate/internal/models"
	"github.com/rea-backoffice/sessiongate/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockAuthService implements handlers.AuthServiceInterface
type MockAuthService struct {
	LoginFunc func(ctx context.Context, email, password, ipHash string) (*models.User, ratelimit.Status, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ipHash string) (*models.User, ratelimit.Status, error) {
	return m.LoginFunc(ctx, email, password, ipHash)
}

func newAuthHandler(service handlers.AuthServiceInterface) *handlers.AuthHandler {
	tokens := auth.NewSessionTokenManager(testSecret, time.Hour)
	return handlers.NewAuthHandler(service, tokens, auth.CookieConfig{}, nil)
}

func TestLogin_Success(t *testing.T) {
	service := &MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ipHash string) (*models.User, ratelimit.Status, error) {
			assert.Equal(t, "agent@example.com", email)
			assert.NotEmpty(t, ipHash)
			return activeUser(), ratelimit.Status{Allowed: true, Remaining: 5, WindowResetAt: time.Now().Add(15 * time.Minute)}, nil
		},
	}
	handler := newAuthHandler(service)

	req := NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "Agent@Example.com",
		Password: "correct-horse",
	})
	req.RemoteAddr = "203.0.113.7:1234"
	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.LoginResponse
	AssertJSONResponse(t, w, 200, &resp)
	require.NotNil(t, resp.Session)
	assert.Equal(t, "user-1", resp.Session.User.ID)
	assert.NotEmpty(t, SessionCookieValue(w, auth.SessionCookieName))
}

func TestLogin_AuthenticationFailed(t *testing.T) {
	service := &MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ipHash string) (*models.User, ratelimit.Status, error) {
			return nil, ratelimit.Status{Allowed: true, Remaining: 4}, models.ErrUnauthorized
		},
	}
	handler := newAuthHandler(service)

	req := NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "agent@example.com",
		Password: "wrong",
	})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogin_RateLimited(t *testing.T) {
	blockUntil := time.Now().Add(30 * time.Minute)
	service := &MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ipHash string) (*models.User, ratelimit.Status, error) {
			return nil, ratelimit.Status{
				Allowed:     false,
				Remaining:   0,
				Blocked:     true,
				BlockUntil:  blockUntil,
				RateLimited: true,
			}, models.ErrRateLimitExceeded
		},
	}
	handler := newAuthHandler(service)

	req := NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "agent@example.com",
		Password: "whatever",
	})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.RecordAttemptResponse
	AssertJSONResponse(t, w, 429, &resp)
	assert.False(t, resp.Allowed)
	assert.True(t, resp.RateLimited)
	assert.Greater(t, resp.BlockTimeRemaining, int64(0))
}

func TestLogin_FailureThatTriggersBlockReturns429(t *testing.T) {
	service := &MockAuthService{
		LoginFunc: func(ctx context.Context, email, password, ipHash string) (*models.User, ratelimit.Status, error) {
			return nil, ratelimit.Status{
				Allowed:     false,
				Remaining:   0,
				Blocked:     true,
				BlockUntil:  time.Now().Add(30 * time.Minute),
				RateLimited: true,
			}, models.ErrUnauthorized
		},
	}
	handler := newAuthHandler(service)

	req := NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "agent@example.com",
		Password: "wrong",
	})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.RecordAttemptResponse
	AssertJSONResponse(t, w, 429, &resp)
	assert.True(t, resp.RateLimited)
}

func TestLogin_InvalidEmail(t *testing.T) {
	handler := newAuthHandler(&MockAuthService{})

	req := NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "not-an-email",
		Password: "whatever",
	})
	w := httptest.NewRecorder()
	handler.Login(w, req)

	AssertErrorResponse(t, w, 400, "bad_request")
}

func TestLogout_ClearsCookieAndReturns204(t *testing.T) {
	handler := newAuthHandler(&MockAuthService{})

	req := NewTestRequest(t, "POST", "/auth/logout", nil)
	w := httptest.NewRecorder()
	handler.Logout(w, req)

	assert.Equal(t, 204, w.Code)

	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}
