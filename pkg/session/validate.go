package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ErrNoSession indicates the server reported no valid session (a clean
// 401, not a transport failure).
var ErrNoSession = errors.New("no active session")

// User mirrors the session user returned by the auth API.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Info mirrors the session envelope returned by the auth API.
type Info struct {
	User    User   `json:"user"`
	Expires string `json:"expires"`
}

type statusResponse struct {
	Valid      bool   `json:"valid"`
	Session    *Info  `json:"session,omitempty"`
	Error      string `json:"error,omitempty"`
	ServerTime int64  `json:"serverTime"`
}

type refreshResponse struct {
	Success    bool   `json:"success"`
	Session    *Info  `json:"session,omitempty"`
	Refreshed  bool   `json:"refreshed"`
	Error      string `json:"error,omitempty"`
	ServerTime int64  `json:"serverTime"`
}

// Validator checks and refreshes the server-side session over HTTP.
// Transport failures are recorded as LastError and reported to the
// caller, but they never force a logout by themselves: only the idle
// timer's own expiry does that, so transient network blips cannot log
// anyone out.
type Validator struct {
	mu        sync.Mutex
	client    *http.Client
	baseURL   string
	logger    *slog.Logger
	lastError error
	checkedAt time.Time
}

// NewValidator creates a validator against baseURL (e.g.
// "https://backoffice.example.com"). The client should carry a cookie
// jar holding the session cookie; nil uses a default client with a 10s
// timeout but no jar.
func NewValidator(baseURL string, client *http.Client, logger *slog.Logger) *Validator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Validator{
		client:  client,
		baseURL: baseURL,
		logger:  logger,
	}
}

// Check asks the server whether the session is still valid. Returns
// (info, true, nil) for a valid session, (nil, false, nil) for a clean
// 401, and (nil, false, err) for transport or decode failures.
func (v *Validator) Check(ctx context.Context) (*Info, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/session", nil)
	if err != nil {
		return nil, false, v.recordError(err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, false, v.recordError(err)
	}
	defer resp.Body.Close()

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, v.recordError(fmt.Errorf("decoding session status: %w", err))
	}

	// Only a clean 401 (or a 200 saying valid=false) means "no
	// session"; any other status is a server fault and recorded.
	if resp.StatusCode == http.StatusUnauthorized {
		v.recordSuccess()
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, v.recordError(fmt.Errorf("session check returned status %d", resp.StatusCode))
	}

	v.recordSuccess()
	if !body.Valid {
		return nil, false, nil
	}
	return body.Session, true, nil
}

// Refresh asks the server to extend the session. Returns ErrNoSession
// for a clean 401; transport failures are recorded and returned.
func (v *Validator) Refresh(ctx context.Context) (*Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/auth/session", nil)
	if err != nil {
		return nil, v.recordError(err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, v.recordError(err)
	}
	defer resp.Body.Close()

	var body refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, v.recordError(fmt.Errorf("decoding session refresh: %w", err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		v.recordSuccess()
		return nil, ErrNoSession
	}
	if resp.StatusCode != http.StatusOK {
		return nil, v.recordError(fmt.Errorf("session refresh returned status %d", resp.StatusCode))
	}

	v.recordSuccess()
	if !body.Success {
		return nil, ErrNoSession
	}
	return body.Session, nil
}

// LastError returns the most recent transport failure, or nil after a
// successful round trip. Surfaced to debug UI only.
func (v *Validator) LastError() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastError
}

// LastChecked returns when the last round trip completed
func (v *Validator) LastChecked() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.checkedAt
}

func (v *Validator) recordError(err error) error {
	v.mu.Lock()
	v.lastError = err
	v.checkedAt = time.Now()
	v.mu.Unlock()
	if v.logger != nil {
		v.logger.Warn("session validation request failed", slog.Any("error", err))
	}
	return err
}

func (v *Validator) recordSuccess() {
	v.mu.Lock()
	v.lastError = nil
	v.checkedAt = time.Now()
	v.mu.Unlock()
}
