package handlers_test

import (
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rea-backoffice/sessiongate/internal/handlers"
	"github.com/rea-backoffice/sessiongate/internal/ratelimit"
	pkglogger "github.com/rea-backoffice/sessiongate/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func newRateLimitHandler(t *testing.T) *handlers.RateLimitHandler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	limiter := ratelimit.NewLimiter(ratelimit.DefaultLoginConfig(), logger)
	audit := pkglogger.NewAuditLogger(logger)
	return handlers.NewRateLimitHandler(limiter, audit, nil)
}

func TestCheckRateLimit_FreshClient(t *testing.T) {
	handler := newRateLimitHandler(t)

	req := NewTestRequest(t, "GET", "/auth/check-rate-limit?email=x@y.com", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	w := httptest.NewRecorder()
	handler.Check(w, req)

	var resp handlers.RateLimitStatusResponse
	AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.Allowed)
	assert.Equal(t, 5, resp.Remaining)
	assert.False(t, resp.Blocked)
	assert.Greater(t, resp.ResetTime, int64(0))
}

func TestRecordAttempt_FailureDecrementsRemaining(t *testing.T) {
	handler := newRateLimitHandler(t)

	req := NewTestRequest(t, "POST", "/auth/check-rate-limit", handlers.RecordAttemptRequest{
		Email:   "x@y.com",
		Success: false,
	})
	req.RemoteAddr = "203.0.113.7:1234"
	w := httptest.NewRecorder()
	handler.Record(w, req)

	var resp handlers.RecordAttemptResponse
	AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.Allowed)
	assert.Equal(t, 4, resp.Remaining)
	assert.False(t, resp.RateLimited)
}

func TestRecordAttempt_BlocksAfterMaxFailures(t *testing.T) {
	handler := newRateLimitHandler(t)

	var resp handlers.RecordAttemptResponse
	for i := 0; i < 6; i++ {
		req := NewTestRequest(t, "POST", "/auth/check-rate-limit", handlers.RecordAttemptRequest{
			Email:   "x@y.com",
			Success: false,
		})
		req.RemoteAddr = "203.0.113.7:1234"
		w := httptest.NewRecorder()
		handler.Record(w, req)
		AssertJSONResponse(t, w, 200, &resp)
	}

	assert.False(t, resp.Allowed)
	assert.True(t, resp.Blocked)
	assert.True(t, resp.RateLimited)
	// Block lasts 30 minutes; allow scheduling slack on the lower bound.
	assert.Greater(t, resp.BlockTimeRemaining, int64(29*60*1000))
	assert.LessOrEqual(t, resp.BlockTimeRemaining, int64(30*60*1000))

	// Status check reflects the block without mutating it.
	req := NewTestRequest(t, "GET", "/auth/check-rate-limit?email=x@y.com", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	w := httptest.NewRecorder()
	handler.Check(w, req)

	var status handlers.RateLimitStatusResponse
	AssertJSONResponse(t, w, 200, &status)
	assert.False(t, status.Allowed)
	assert.Equal(t, 0, status.Remaining)
	assert.True(t, status.Blocked)
}

func TestRecordAttempt_SuccessResetsEntry(t *testing.T) {
	handler := newRateLimitHandler(t)

	send := func(success bool) handlers.RecordAttemptResponse {
		req := NewTestRequest(t, "POST", "/auth/check-rate-limit", handlers.RecordAttemptRequest{
			Email:   "x@y.com",
			Success: success,
		})
		req.RemoteAddr = "203.0.113.7:1234"
		w := httptest.NewRecorder()
		handler.Record(w, req)

		var resp handlers.RecordAttemptResponse
		AssertJSONResponse(t, w, 200, &resp)
		return resp
	}

	for i := 0; i < 4; i++ {
		send(false)
	}
	resp := send(true)
	assert.True(t, resp.Allowed)
	assert.Equal(t, 5, resp.Remaining)

	resp = send(false)
	assert.Equal(t, 4, resp.Remaining)
}

func TestRecordAttempt_SeparateEmailsTrackedSeparately(t *testing.T) {
	handler := newRateLimitHandler(t)

	send := func(email string) handlers.RecordAttemptResponse {
		req := NewTestRequest(t, "POST", "/auth/check-rate-limit", handlers.RecordAttemptRequest{
			Email:   email,
			Success: false,
		})
		req.RemoteAddr = "203.0.113.7:1234"
		w := httptest.NewRecorder()
		handler.Record(w, req)

		var resp handlers.RecordAttemptResponse
		AssertJSONResponse(t, w, 200, &resp)
		return resp
	}

	for i := 0; i < 5; i++ {
		send("a@y.com")
	}
	resp := send("b@y.com")
	assert.True(t, resp.Allowed)
	assert.Equal(t, 4, resp.Remaining)
}

func TestRecordAttempt_InvalidBody(t *testing.T) {
	handler := newRateLimitHandler(t)

	req := httptest.NewRequest("POST", "/auth/check-rate-limit", nil)
	w := httptest.NewRecorder()
	handler.Record(w, req)

	AssertErrorResponse(t, w, 400, "bad_request")
}

func TestRateLimitStats_ReportsActiveEntries(t *testing.T) {
	handler := newRateLimitHandler(t)

	req := NewTestRequest(t, "POST", "/auth/check-rate-limit", handlers.RecordAttemptRequest{
		Email:   "x@y.com",
		Success: false,
	})
	req.RemoteAddr = "203.0.113.7:1234"
	httpw := httptest.NewRecorder()
	handler.Record(httpw, req)

	statsReq := NewTestRequest(t, "GET", "/auth/rate-limit-stats", nil)
	w := httptest.NewRecorder()
	handler.Stats(w, statsReq)

	var stats ratelimit.Stats
	AssertJSONResponse(t, w, 200, &stats)
	assert.Equal(t, 1, stats.TotalActive)
}
