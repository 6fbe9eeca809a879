package model

import "time"

// UserID uniquely identifies a user across the system
type UserID string

// User represents a player account
type User struct {
	ID          UserID
	Username    string
	DisplayName string
	Rating      int
	IsGuest     bool // true for unregistered players
	CreatedAt   time.Time
}

// DefaultRating is assigned to every new account
const DefaultRating = 1000

// Credentials holds authentication data for a registered user
// Stored separately so the password hash never travels with the User
type Credentials struct {
	UserID       UserID
	Username     string // login username (immutable)
	PasswordHash string // bcrypt hash
	Email        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
