// Package models contains the persisted account model, the error taxonomy and
// the response envelope shared by every layer.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// User is a Planify account.
type User struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Email           string     `gorm:"size:254;uniqueIndex;not null" json:"email" validate:"required,email,max=254"`
	PasswordHash    string     `gorm:"column:password_hash;not null" json:"-"`
	FirstName       string     `gorm:"size:50;not null" json:"firstName" validate:"required,max=50"`
	LastName        string     `gorm:"size:50;not null" json:"lastName" validate:"required,max=50"`
	Role            Role       `gorm:"size:32;index;not null" json:"role" validate:"required,role"`
	IsEmailVerified bool       `gorm:"not null" json:"isEmailVerified"`
	ProfilePicture  *string    `json:"profilePicture"`
	Bio             *string    `gorm:"size:500" json:"bio" validate:"omitempty,max=500"`
	Phone           *string    `gorm:"size:32" json:"phone" validate:"omitempty,phone"`
	DateOfBirth     *time.Time `json:"dateOfBirth" validate:"omitempty,pastdate"`
	CommunityID     *uint      `gorm:"index" json:"communityId"`
	ClubID          *uint      `gorm:"index" json:"clubId"`
	IsActive        bool       `gorm:"index;not null" json:"isActive"`
	IsBlocked       bool       `gorm:"not null" json:"isBlocked"`
	LastLogin       *time.Time `json:"lastLogin"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// NewUser builds an active, unverified account with normalized identity fields.
func NewUser(email, firstName, lastName string, role Role) *User {
	if role == "" {
		role = RoleUser
	}
	return &User{
		Email:     NormalizeEmail(email),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Role:      role,
		IsActive:  true,
	}
}

// NormalizeEmail trims and lower-cases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// CanAuthenticate reports whether the account may log in or use its tokens.
func (u *User) CanAuthenticate() bool {
	return u.IsActive && !u.IsBlocked
}

// MarshalJSON renders the public profile. The password hash is never included.
func (u User) MarshalJSON() ([]byte, error) {
	type publicUser User
	return json.Marshal(struct {
		publicUser
		FullName string `json:"fullName"`
	}{
		publicUser: publicUser(u),
		FullName:   u.FullName(),
	})
}
