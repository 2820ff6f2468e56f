package models

import (
	"time"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	Role         string // e.g., "agent", "admin"
	IsActive     bool   // Inactive users cannot hold a valid session
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
