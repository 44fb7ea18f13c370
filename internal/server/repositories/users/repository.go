// Package users declares the credential store contract and its PostgreSQL
// implementation.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/aiwallpaper/internal/server/models"
)

// Repository reads and writes user records. Lookups by email are
// case-insensitive. Missing rows yield common.ErrorNotFound and duplicate
// email or username yields common.ErrorConflict.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUserName(ctx context.Context, userName string) (*models.User, error)
	UserNameExists(ctx context.Context, userName string) (bool, error)

	// SetVerificationCode overwrites any previous verification code.
	SetVerificationCode(ctx context.Context, id string, code int, expiresAt time.Time) error
	// MarkVerified sets the verified flag and clears the verification code.
	MarkVerified(ctx context.Context, id string) error
	// SetResetCode overwrites any previous reset code.
	SetResetCode(ctx context.Context, id string, code int, expiresAt time.Time) error
	// UpdatePassword replaces the hash and clears the reset code.
	UpdatePassword(ctx context.Context, id string, passwordHash string) error

	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	UpdateProfileImage(ctx context.Context, id string, ref *string) error
}
