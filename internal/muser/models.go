package muser

import (
	"time"

	"taskhub/internal/model"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	// Role is honoured only when an admin registers the account.
	Role string `json:"role" binding:"omitempty,oneof=admin manager user"`
	Team string `json:"team" binding:"max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ProfileUpdateRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=2,max=100"`
	Password *string `json:"password" binding:"omitempty,min=6,max=72"`
}

type UserUpdateRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=2,max=100"`
	Email *string `json:"email" binding:"omitempty,email,max=254"`
	Team  *string `json:"team" binding:"omitempty,max=100"`
}

type RoleUpdateRequest struct {
	Role string `json:"role" binding:"required,oneof=admin manager user"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}
