package domain

import "time"

// User models an account that can authenticate with email and password.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordDigest string    `json:"-"`
	Token          string    `json:"-"`
	LastLoginAt    time.Time `json:"lastLoginAt"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Persisted reports whether the user already has a store-assigned identity.
func (u *User) Persisted() bool {
	return u != nil && u.ID != ""
}
