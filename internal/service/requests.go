package service

import (
	"strings"

	"planify/internal/models"
)

// RegisterRequest is the payload of POST /api/auth/register.
type RegisterRequest struct {
	Email     string      `json:"email" validate:"required,email,max=254"`
	Password  string      `json:"password" validate:"required,min=6,bcryptlen,password"`
	FirstName string      `json:"firstName" validate:"required,max=50"`
	LastName  string      `json:"lastName" validate:"required,max=50"`
	Role      models.Role `json:"role" validate:"omitempty,role"`
}

func (r *RegisterRequest) normalize() {
	r.Email = models.NormalizeEmail(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Role = models.Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
}

// LoginRequest is the payload of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the payload of POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// ChangePasswordRequest is the payload of PUT /api/auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,bcryptlen,password"`
}

// LogoutRequest optionally names a refresh token to revoke with the access token.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RoleUpdate is the payload of PATCH /api/admin/users/:userId/role.
type RoleUpdate struct {
	Role models.Role `json:"role" validate:"required,role"`
}

// StatusUpdate is the payload of PATCH /api/admin/users/:userId/status.
// Nil fields are left unchanged.
type StatusUpdate struct {
	IsActive  *bool `json:"isActive"`
	IsBlocked *bool `json:"isBlocked"`
}

// AuthResult is returned by register, login and refresh.
type AuthResult struct {
	User         *models.User `json:"user"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
}
