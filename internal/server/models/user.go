package models

import "time"

// AuthProvider says how a user proves their identity.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
)

// User is a persisted account. Optional columns are pointers and are nil
// when the column is NULL.
//
// A google account never has a PasswordHash and is always verified.
type User struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash *string
	FirstName    *string
	LastName     *string
	PhoneNumber  *string
	IsVerified   bool
	Provider     AuthProvider

	VerificationCode          *int
	VerificationCodeExpiresAt *time.Time
	ResetCode                 *int
	ResetCodeExpiresAt        *time.Time

	ProfileImage *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileUpdate lists the profile columns a user may change. Nil fields are
// left as they are.
type ProfileUpdate struct {
	UserName    *string
	FirstName   *string
	LastName    *string
	PhoneNumber *string
}
