package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rea-backoffice/sessiongate/internal/ratelimit"
	pkghttp "github.com/rea-backoffice/sessiongate/pkg/http"
	pkglogger "github.com/rea-backoffice/sessiongate/pkg/logger"
)

// RateLimitHandler exposes the login rate limiter state over HTTP.
// Field names follow the contract the back-office UI consumes: timestamps
// are millisecond epochs, relative times are millisecond durations.
type RateLimitHandler struct {
	limiter  *ratelimit.Limiter
	audit    *pkglogger.AuditLogger
	ipConfig *pkghttp.IPConfig
}

// NewRateLimitHandler creates a new RateLimitHandler
func NewRateLimitHandler(limiter *ratelimit.Limiter, audit *pkglogger.AuditLogger, ipConfig *pkghttp.IPConfig) *RateLimitHandler {
	return &RateLimitHandler{
		limiter:  limiter,
		audit:    audit,
		ipConfig: ipConfig,
	}
}

// RateLimitStatusResponse is the wire shape of a limiter status
type RateLimitStatusResponse struct {
	Allowed            bool  `json:"allowed"`
	Remaining          int   `json:"remaining"`
	ResetTime          int64 `json:"resetTime"`
	Blocked            bool  `json:"blocked"`
	BlockUntil         int64 `json:"blockUntil,omitempty"`
	ResetIn            int64 `json:"resetIn"`
	BlockTimeRemaining int64 `json:"blockTimeRemaining"`
}

// RecordAttemptRequest is the body for recording a login attempt outcome
type RecordAttemptRequest struct {
	Email   string `json:"email" validate:"omitempty,email"`
	Success bool   `json:"success"`
}

// RecordAttemptResponse adds the rateLimited flag to the status shape
type RecordAttemptResponse struct {
	RateLimitStatusResponse
	RateLimited bool `json:"rateLimited"`
}

func toStatusResponse(status ratelimit.Status) RateLimitStatusResponse {
	now := time.Now()
	resp := RateLimitStatusResponse{
		Allowed:   status.Allowed,
		Remaining: status.Remaining,
		ResetTime: status.WindowResetAt.UnixMilli(),
		Blocked:   status.Blocked,
	}
	if resetIn := status.WindowResetAt.Sub(now); resetIn > 0 {
		resp.ResetIn = resetIn.Milliseconds()
	}
	if !status.BlockUntil.IsZero() {
		resp.BlockUntil = status.BlockUntil.UnixMilli()
		if blockRemaining := status.BlockUntil.Sub(now); blockRemaining > 0 {
			resp.BlockTimeRemaining = blockRemaining.Milliseconds()
		}
	}
	return resp
}

func (h *RateLimitHandler) key(r *http.Request, email string) string {
	ipHash := pkghttp.HashIP(pkghttp.ExtractClientIP(r, h.ipConfig))
	return ratelimit.Key(ipHash, email)
}

// Check handles GET /auth/check-rate-limit. Read-only: never mutates
// limiter state.
func (h *RateLimitHandler) Check(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email")))

	status := h.limiter.Status(h.key(r, email))
	pkghttp.WriteJSON(w, http.StatusOK, toStatusResponse(status))
}

// Record handles POST /auth/check-rate-limit, recording one attempt outcome.
func (h *RateLimitHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordAttemptRequest

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
	result := h.limiter.RecordAttempt(ratelimit.Key(ipHash, req.Email), req.Success)

	if result.RateLimited || !result.Allowed {
		h.audit.LogRateLimit(req.Email, ipHash, result.Remaining)
	}

	pkghttp.WriteJSON(w, http.StatusOK, RecordAttemptResponse{
		RateLimitStatusResponse: toStatusResponse(result),
		RateLimited:             result.RateLimited,
	})
}

// Stats handles GET /auth/rate-limit-stats, a debug view of active entries.
func (h *RateLimitHandler) Stats(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.limiter.Snapshot())
}
