package models

import "time"

// RefreshToken is the single live refresh token of a user.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
