package domain

import "time"

// Session represents a login issued to a user; tokens reference it by ID.
type Session struct {
	ID        string
	UserID    string
	Role      Role
	ExpiresAt time.Time
	IssuedAt  time.Time
}
