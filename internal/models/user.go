// Package models contains data structures for the forum's domain models.
package models

import (
	"time"
)

// Role is a user's privilege level.
type Role string

const (
	RoleUser      Role = "user"
	RoleVerified  Role = "verified"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleVerified, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// CanModerate reports whether the role may act on reports, content and bans.
func (r Role) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}

// User represents a forum member.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Username       string    `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email          string    `gorm:"uniqueIndex;size:255;not null" json:"email,omitempty"`
	Password       string    `gorm:"not null" json:"-"`
	Role           Role      `gorm:"type:varchar(20);default:'user';not null" json:"role"`
	Bio            string    `gorm:"type:text" json:"bio"`
	AvatarURL      string    `json:"avatar_url"`
	Reputation     int       `gorm:"default:0" json:"reputation"`
	FollowersCount int       `gorm:"default:0" json:"followers_count"`
	FollowingCount int       `gorm:"default:0" json:"following_count"`
	PostCount      int       `gorm:"default:0" json:"post_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserSummary is the author projection embedded in content rows.
type UserSummary struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	Role      Role   `json:"role"`
}

// Summary returns the public author projection of u.
func (u *User) Summary() *UserSummary {
	if u == nil || u.ID == 0 {
		return nil
	}
	return &UserSummary{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL, Role: u.Role}
}
