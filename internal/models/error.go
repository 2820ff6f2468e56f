package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Auth state errors
	ErrRateLimitExceeded = errors.New("too many failed login attempts")
	ErrAccountInactive   = errors.New("account is inactive")
	ErrSessionExpired    = errors.New("session expired")
)
