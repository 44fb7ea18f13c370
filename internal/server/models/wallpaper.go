package models

import "time"

type WallpaperStatus string

const (
	WallpaperPending   WallpaperStatus = "pending"
	WallpaperCompleted WallpaperStatus = "completed"
	WallpaperFailed    WallpaperStatus = "failed"
)

// Wallpaper is a generation job. Status moves from pending to completed or
// failed exactly once; ImageRef is set only when completed.
type Wallpaper struct {
	ID        string
	UserID    string
	Prompt    string
	Size      string
	Style     string
	Status    WallpaperStatus
	ImageRef  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
