package users

import (
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated OTServHub account holder.
type User struct {
	ID            uuid.UUID `json:"id"             db:"id"`
	Email         string    `json:"email"          db:"email"`
	PasswordHash  string    `json:"-"              db:"password_hash"`
	DisplayName   string    `json:"display_name"   db:"display_name"`
	Username      string    `json:"username"       db:"username"`
	EmailVerified bool      `json:"email_verified" db:"email_verified"`
	CreatedAt     time.Time `json:"created_at"     db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"     db:"updated_at"`
}

// PublicProfile is the caller-visible slice of an account.
type PublicProfile struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	MemberSince time.Time `json:"member_since"`
}
