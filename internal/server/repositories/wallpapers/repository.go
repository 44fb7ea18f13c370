// Package wallpapers stores generation jobs.
package wallpapers

import (
	"context"

	"github.com/dmitrijs2005/aiwallpaper/internal/server/models"
)

// Repository persists wallpaper generation jobs. Owner-scoped reads return
// common.ErrorNotFound both for a missing job and for another user's job.
type Repository interface {
	Create(ctx context.Context, w *models.Wallpaper) (*models.Wallpaper, error)
	GetByID(ctx context.Context, id string) (*models.Wallpaper, error)
	GetForUser(ctx context.Context, id, userID string) (*models.Wallpaper, error)
	// ListByUser returns the user's jobs, newest first.
	ListByUser(ctx context.Context, userID string) ([]*models.Wallpaper, error)
	Delete(ctx context.Context, id, userID string) error

	// MarkCompleted and MarkFailed only touch a pending job. They report
	// whether the row was transitioned.
	MarkCompleted(ctx context.Context, id, imageRef string) (bool, error)
	MarkFailed(ctx context.Context, id string) (bool, error)
}
