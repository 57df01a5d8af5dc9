package domain

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID            string
	Email         string // unique, compared case-insensitively
	Role          string
	Authenticated bool   // email verified
	PasswordHash  string // argon2 encoded
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Identity is what the core knows about a caller or a live connection.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Identity returns the identity triple for u.
func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}
