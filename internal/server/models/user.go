// Package models holds the persisted domain records shared by repositories
// and services.
package models

import (
	"strings"
	"time"
)

// User is an account record in the user directory. IsActive is the single
// "is usable" predicate: a deactivated account fails every authentication
// check regardless of credential validity.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName returns the display name composed from first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
