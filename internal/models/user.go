// Package models defines the persisted domain models of WikiContest.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

// Role constants.
const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleAdmin, RoleSuperadmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Capabilities lists what a role may do regardless of its relation to a contest.
type Capabilities struct {
	ManageContests  bool // edit or delete any contest
	ReviewAny       bool // review submissions of any contest
	ManageRoles     bool // change the role of other accounts
	GrantSuperadmin bool // assign or revoke the superadmin role
}

// Capabilities returns the capability set of the role.
func (r Role) Capabilities() Capabilities {
	switch r {
	case RoleSuperadmin:
		return Capabilities{ManageContests: true, ReviewAny: true, ManageRoles: true, GrantSuperadmin: true}
	case RoleAdmin:
		return Capabilities{ManageContests: true, ReviewAny: true, ManageRoles: true}
	default:
		return Capabilities{}
	}
}

// User is an account, local (password) or linked to a Wikimedia identity, or both.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null;size:255" json:"username"`
	Email        *string   `gorm:"uniqueIndex;size:255" json:"-"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Role         Role      `gorm:"size:20;not null;default:user" json:"role"`
	OAuthID      *string   `gorm:"column:oauth_id;uniqueIndex;size:64" json:"-"`
	OAuthToken   string    `gorm:"column:oauth_token;size:255" json:"-"`
	OAuthSecret  string    `gorm:"column:oauth_secret;size:255" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is an account as its owner sees it. Unlike User it carries the
// email address, so it is only returned to the account itself.
type Profile struct {
	ID          uint      `json:"id"`
	Username    string    `json:"username"`
	Email       *string   `json:"email,omitempty"`
	Role        Role      `json:"role"`
	HasPassword bool      `json:"has_password"`
	OAuthLinked bool      `json:"oauth_linked"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// IsOAuthLinked reports whether the account is linked to a Wikimedia identity.
func (u *User) IsOAuthLinked() bool {
	return u.OAuthID != nil && *u.OAuthID != ""
}

// Capabilities is shorthand for u.Role.Capabilities().
func (u *User) Capabilities() Capabilities {
	return u.Role.Capabilities()
}

// Profile returns the owner's view of the account.
func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Role:        u.Role,
		HasPassword: u.HasPassword(),
		OAuthLinked: u.IsOAuthLinked(),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
