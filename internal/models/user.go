// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is the privilege tier of a user account.
type Role string

const (
	RoleStudent   Role = "student"
	RoleModerator Role = "moderator"
	RoleStaff     Role = "staff"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleModerator, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// User is a board member. Real identity (email, username) is never shown
// next to content unless the author revealed it for that item.
type User struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Username        string         `gorm:"not null" json:"username"`
	Email           string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash    string         `json:"-"`
	Role            Role           `gorm:"type:varchar(16);not null;default:student" json:"role"`
	ModerationNotes string         `gorm:"type:text" json:"moderation_notes,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// CanModerate is true for moderators, staff and admins.
func (u *User) CanModerate() bool {
	switch u.Role {
	case RoleModerator, RoleStaff, RoleAdmin:
		return true
	default:
		return false
	}
}
