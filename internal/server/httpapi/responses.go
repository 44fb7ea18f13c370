package httpapi

import (
	"time"

	"github.com/dmitrijs2005/aiwallpaper/internal/server/models"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/services"
)

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func newTokenResponse(p *services.TokenPair) tokenResponse {
	return tokenResponse{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken, TokenType: "bearer"}
}

type userResponse struct {
	ID           string    `json:"id"`
	UserName     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    *string   `json:"first_name"`
	LastName     *string   `json:"last_name"`
	PhoneNumber  *string   `json:"phone_number"`
	IsVerified   bool      `json:"is_verified"`
	Provider     string    `json:"provider"`
	ProfileImage *string   `json:"profile_image"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:           u.ID,
		UserName:     u.UserName,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PhoneNumber:  u.PhoneNumber,
		IsVerified:   u.IsVerified,
		Provider:     string(u.Provider),
		ProfileImage: u.ProfileImage,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

type wallpaperResponse struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Size      string    `json:"size"`
	Style     string    `json:"style"`
	Status    string    `json:"status"`
	ImageRef  *string   `json:"image_ref"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newWallpaperResponse(w *models.Wallpaper) wallpaperResponse {
	return wallpaperResponse{
		ID:        w.ID,
		Prompt:    w.Prompt,
		Size:      w.Size,
		Style:     w.Style,
		Status:    string(w.Status),
		ImageRef:  w.ImageRef,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

type wallpaperListResponse struct {
	Wallpapers []wallpaperResponse `json:"wallpapers"`
}

type deleteWallpaperResponse struct {
	Message          string            `json:"message"`
	DeletedWallpaper wallpaperResponse `json:"deleted_wallpaper"`
}

type suggestResponse struct {
	Prompt string `json:"prompt"`
}
