package httpapi

import (
	"context"

	"github.com/dmitrijs2005/aiwallpaper/internal/server/models"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/services"
)

// AuthService is the auth workflow behind /auth.
type AuthService interface {
	Register(ctx context.Context, r services.Registration) (*models.User, error)
	Verify(ctx context.Context, email string, code int) error
	ResendCode(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email string, code int, newPassword string) error
	GoogleSignIn(ctx context.Context, idToken string, hint services.GoogleProfile) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

// ProfileService backs /users/me.
type ProfileService interface {
	CurrentUser(ctx context.Context, email string) (*models.User, error)
	Get(ctx context.Context, userID string) (*models.User, error)
	Update(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	UpdatePicture(ctx context.Context, userID string, data []byte, contentType string) (*models.User, error)
	Picture(ctx context.Context, userID string) (*services.ProfilePicture, error)
}

// WallpaperService backs /wallpapers.
type WallpaperService interface {
	Submit(ctx context.Context, userID string, req services.JobRequest) (*models.Wallpaper, error)
	Recreate(ctx context.Context, userID, id string) (*models.Wallpaper, error)
	List(ctx context.Context, userID string) ([]*models.Wallpaper, error)
	Get(ctx context.Context, userID, id string) (*models.Wallpaper, error)
	Delete(ctx context.Context, userID, id string) error
	Download(ctx context.Context, userID, id string) ([]byte, string, error)
	Suggest(ctx context.Context, prompt string) (string, error)
}

// TokenValidator checks bearer access tokens.
type TokenValidator interface {
	ValidateAccessToken(token string) (string, error)
}
