package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/aiwallpaper/internal/logging"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/notify"
	"github.com/hibiken/asynq"
)

const emailMaxRetry = 3

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// AsynqQueue dispatches tasks to redis for cmd/worker to execute.
type AsynqQueue struct {
	client enqueuer
	log    logging.Logger
}

func NewAsynqQueue(redisOpt asynq.RedisClientOpt, log logging.Logger) *AsynqQueue {
	return &AsynqQueue{client: asynq.NewClient(redisOpt), log: log.With("module", "tasks")}
}

func (q *AsynqQueue) Close() error {
	return q.client.Close()
}

// DispatchGeneration enqueues the generation step with the wallpaper id as
// task id. A duplicate dispatch of a task still retained by asynq is a no-op.
// Generation is never retried.
func (q *AsynqQueue) DispatchGeneration(ctx context.Context, wallpaperID string) error {
	payload, err := json.Marshal(GeneratePayload{WallpaperID: wallpaperID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeGenerateWallpaper, payload)
	_, err = q.client.EnqueueContext(ctx, task, asynq.TaskID(GenerationKey(wallpaperID)), asynq.MaxRetry(0))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			q.log.Debug(ctx, "generation already dispatched", "wallpaper_id", wallpaperID)
			return nil
		}
		q.log.Warn(ctx, "enqueue generation failed", "wallpaper_id", wallpaperID, "error", err)
		return err
	}
	return nil
}

func (q *AsynqQueue) DispatchEmail(ctx context.Context, m notify.Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeSendEmail, payload)
	if _, err := q.client.EnqueueContext(ctx, task, asynq.MaxRetry(emailMaxRetry)); err != nil {
		q.log.Warn(ctx, "enqueue email failed", "kind", string(m.Kind), "error", err)
		return err
	}
	return nil
}

// Worker runs asynq task handlers. Call Run to start.
type Worker struct {
	srv      *asynq.Server
	mux      *asynq.ServeMux
	handlers Handlers
	log      logging.Logger
}

func NewWorker(redisOpt asynq.RedisClientOpt, concurrency int, h Handlers, log logging.Logger) *Worker {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		LogLevel:    asynq.InfoLevel,
	})
	w := &Worker{srv: srv, handlers: h, log: log.With("module", "worker")}
	w.mux = w.newMux()
	return w
}

func (w *Worker) newMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeGenerateWallpaper, w.handleGenerate)
	mux.HandleFunc(TypeSendEmail, w.handleSendEmail)
	return mux
}

func (w *Worker) handleGenerate(ctx context.Context, t *asynq.Task) error {
	var p GeneratePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.WallpaperID == "" {
		w.log.Error(ctx, "generation task payload invalid", "error", err)
		return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
	}
	return w.handlers.Generate(ctx, p.WallpaperID)
}

func (w *Worker) handleSendEmail(ctx context.Context, t *asynq.Task) error {
	var m notify.Message
	if err := json.Unmarshal(t.Payload(), &m); err != nil {
		w.log.Error(ctx, "email task payload invalid", "error", err)
		return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return w.handlers.SendEmail(ctx, m)
}

// Run blocks until shutdown. Use Shutdown for graceful stop.
func (w *Worker) Run() error {
	return w.srv.Run(w.mux)
}

// Shutdown stops the worker.
func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}
