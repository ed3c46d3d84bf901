// Package model defines the data structures used throughout the application.
package model

import "time"

// User is the aggregate root of the wish store: a user owns an ordered list
// of wishes, and likes/comments live inside those wishes.
//
// PasswordHash is empty for accounts that were provisioned through Google
// sign-in. Such accounts can never pass a local password check.
type User struct {
	ID           string    `json:"id"         db:"id"`
	Email        string    `json:"email"      db:"email"` // unique across all users
	Username     string    `json:"username"   db:"username"`
	PasswordHash string    `json:"-"          db:"password_hash"`
	ProfilePic   string    `json:"profilePic" db:"profile_pic"`
	Wishes       []Wish    `json:"wishes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"  db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"  db:"updated_at"`
}

// Identity is the stable triple attached to an authenticated request.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Identity projects the user onto the fields the rest of the request needs.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Profile is what GET /api/profile returns.
type Profile struct {
	Username   string `json:"username"`
	ProfilePic string `json:"profilePic"`
}
