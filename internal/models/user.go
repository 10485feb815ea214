package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole defines the application-wide role of a user.
type UserRole string

const (
	// UserRoleMember is the default role for new accounts.
	UserRoleMember UserRole = "member"
	// UserRoleManager is a team-management role; not gated behind approval.
	UserRoleManager UserRole = "manager"
	// UserRoleAdmin is an elevated role granted only through an approved elevation request.
	UserRoleAdmin UserRole = "admin"
	// UserRoleSuperAdmin may decide elevation requests.
	UserRoleSuperAdmin UserRole = "super-admin"
)

// User represents a PLANIT account.
type User struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	Name     string   `gorm:"size:120;not null" json:"name"`
	Email    string   `gorm:"size:254;unique;not null" json:"email"`
	Password string   `gorm:"not null" json:"-"`
	Role     UserRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	Company  string   `gorm:"size:120" json:"company"`
	// IsActive gates authentication entirely. Accounts provisioned through the
	// signup-time admin path start inactive until the request is approved.
	// No column default: gorm drops zero-valued fields carrying a default tag
	// from the INSERT, which would silently flip false back to true. Callers
	// always set both flags explicitly.
	IsActive bool `gorm:"not null" json:"is_active"`
	// IsApproved gates use of an elevated role. A user with role admin or
	// manager and IsApproved false is blocked from signing in.
	IsApproved bool           `gorm:"not null" json:"is_approved"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// Elevated reports whether the role is one granted through the elevation workflow.
func (r UserRole) Elevated() bool {
	return r == UserRoleAdmin || r == UserRoleManager
}

// CanSignIn reports whether the account may authenticate at all.
func (u *User) CanSignIn() bool {
	if !u.IsActive {
		return false
	}
	if u.Role.Elevated() && !u.IsApproved {
		return false
	}
	return true
}
