package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RegisterRequest payload. Self-registration never takes a role; elevated
// roles are granted by an admin afterwards.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest payload.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// CreateUserRequest payload for admin account provisioning. Unlike
// RegisterRequest it accepts a role.
type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// UpdateUserRequest payload for admin account management.
type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
}

// UserResponse is the public account shape; the credential never leaves the
// service.
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	IsActive  bool        `json:"isActive"`
	LastLogin *time.Time  `json:"lastLogin,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// AuthResponse carries the issued token pair.
type AuthResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// NewUserResponse maps the domain model.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		IsActive:  user.IsActive,
		LastLogin: user.LastLogin,
		CreatedAt: user.CreatedAt,
	}
}
