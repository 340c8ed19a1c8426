// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"
)

// User is an account that can authenticate and own posts.
// Email is always unique; Username is optional but unique when set.
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Email       string     `gorm:"size:254;not null;uniqueIndex" json:"email"`
	Username    *string    `gorm:"size:150;uniqueIndex" json:"username"`
	Password    string     `gorm:"not null" json:"-"`
	FirstName   string     `gorm:"size:150" json:"first_name"`
	LastName    string     `gorm:"size:150" json:"last_name"`
	IsActive    bool       `gorm:"not null;default:true" json:"is_active"`
	IsStaff     bool       `gorm:"not null;default:false" json:"-"`
	IsSuperuser bool       `gorm:"not null;default:false" json:"-"`
	LastLogin   *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"created"`
	UpdatedAt   time.Time  `json:"updated"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UsernameOrEmpty dereferences Username.
func (u *User) UsernameOrEmpty() string {
	if u.Username == nil {
		return ""
	}
	return *u.Username
}

func (u User) String() string {
	return "Username: " + u.Email
}

// StringPtr returns nil for blank input, otherwise a pointer to the trimmed value.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
