package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RegisterRequest is a public self-registration.
type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	MiddleName string `json:"middleName"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
	Position   string `json:"position"`
	EmployeeID string `json:"employeeId"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AuthResponse standard response for login.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// CreateUserRequest is an admin-created account.
type CreateUserRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	MiddleName string `json:"middleName"`
	Phone      string `json:"phone"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Position   string `json:"position"`
	IsActive   *bool  `json:"isActive"`
}

// UpdateUserRequest is a partial account update. A non-empty password resets it.
type UpdateUserRequest struct {
	Email      *string `json:"email"`
	Password   *string `json:"password"`
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	MiddleName *string `json:"middleName"`
	Phone      *string `json:"phone"`
	Role       *string `json:"role"`
	Department *string `json:"department"`
	Position   *string `json:"position"`
	IsActive   *bool   `json:"isActive"`
}

// UserResponse never includes the password hash.
type UserResponse struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	MiddleName  string      `json:"middleName,omitempty"`
	Phone       string      `json:"phone"`
	Role        domain.Role `json:"role"`
	Department  string      `json:"department"`
	Position    string      `json:"position"`
	IsActive    bool        `json:"isActive"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	LastLoginAt *time.Time  `json:"lastLoginAt"`
}

// PendingUserResponse describes a registration awaiting review.
type PendingUserResponse struct {
	ID         string                    `json:"id"`
	Email      string                    `json:"email"`
	FirstName  string                    `json:"firstName"`
	LastName   string                    `json:"lastName"`
	MiddleName string                    `json:"middleName,omitempty"`
	Phone      string                    `json:"phone"`
	Department string                    `json:"department"`
	Position   string                    `json:"position"`
	EmployeeID string                    `json:"employeeId"`
	Status     domain.RegistrationStatus `json:"status"`
	CreatedAt  time.Time                 `json:"createdAt"`
	DecidedAt  *time.Time                `json:"decidedAt"`
	DecidedBy  *string                   `json:"decidedBy"`
}
