// Package services contains server-side business logic: the auth workflow,
// token lifecycle, profile management and wallpaper generation jobs.
package services

import (
	"context"

	"github.com/dmitrijs2005/aiwallpaper/internal/server/auth"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/notify"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Dispatcher schedules deferred units of work. Dispatch returns once the work
// is queued; the outcome is only observable through persisted state.
type Dispatcher interface {
	DispatchGeneration(ctx context.Context, wallpaperID string) error
	DispatchEmail(ctx context.Context, m notify.Message) error
}

// IdentityVerifier checks the signature of a third-party identity token.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*auth.IdentityClaims, error)
}

// ImageGenerator is the external text-to-image provider.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, width, height int) ([]byte, error)
	Suggest(ctx context.Context, prompt string) (string, error)
}
