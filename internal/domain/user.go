package domain

import (
	"strings"
	"time"
)

// Role enumerates helpdesk principal roles.
type Role string

const (
	RoleClient  Role = "client"
	RoleSupport Role = "support"
	RoleAdmin   Role = "admin"
)

// ParseRole normalizes user input into a Role.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleClient:
		return RoleClient, true
	case RoleSupport:
		return RoleSupport, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// IsStaff reports whether the role works tickets (support or admin).
func (r Role) IsStaff() bool {
	return r == RoleSupport || r == RoleAdmin
}

// User is an account able to sign in.
type User struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	MiddleName   string
	Phone        string
	Role         Role
	Department   string
	Position     string
	IsActive     bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// RegistrationStatus tracks the approval workflow of a self-registered user.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

// PendingUser is a self-registration awaiting an admin decision.
type PendingUser struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	MiddleName   string
	Phone        string
	Department   string
	Position     string
	EmployeeID   string
	PasswordHash string
	Status       RegistrationStatus
	CreatedAt    time.Time
	DecidedAt    *time.Time
	DecidedBy    *string
}
