package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the JWT claims carried by the session cookie.
type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SessionUser is the user payload returned by the session endpoints.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// SessionInfo describes an active session to the client.
type SessionInfo struct {
	User    SessionUser `json:"user"`
	Expires string      `json:"expires"` // RFC3339
}
