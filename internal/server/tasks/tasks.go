// Package tasks runs the deferred units of work: wallpaper generation and
// code delivery. Work is dispatched either to an in-process worker pool or to
// asynq on redis, executed by cmd/worker.
package tasks

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/aiwallpaper/internal/server/notify"
)

const (
	TypeGenerateWallpaper = "wallpaper:generate"
	TypeSendEmail         = "email:send"
)

var (
	ErrQueueFull   = errors.New("task queue is full")
	ErrQueueClosed = errors.New("task queue is closed")
)

// GeneratePayload is the body of a wallpaper:generate task.
type GeneratePayload struct {
	WallpaperID string `json:"wallpaper_id"`
}

// Handlers are the functions a queue calls to execute tasks.
type Handlers struct {
	Generate  func(ctx context.Context, wallpaperID string) error
	SendEmail func(ctx context.Context, m notify.Message) error
}

// GenerationKey is the idempotency key of a generation task. At most one task
// per key is queued or running at a time.
func GenerationKey(wallpaperID string) string {
	return TypeGenerateWallpaper + ":" + wallpaperID
}
