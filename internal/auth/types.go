package auth

import "time"

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User is a principal that can authenticate. Deleting users is another
// subsystem's job; this core only ever invalidates their credentials.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the optional display data attached to a user.
type Profile struct {
	UserID      string
	DisplayName string
	Locale      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
