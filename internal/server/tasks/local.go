package tasks

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/aiwallpaper/internal/logging"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/notify"
)

type job struct {
	key  string
	kind string
	run  func(ctx context.Context, h Handlers) error
}

// LocalQueue is a bounded in-process worker pool.
type LocalQueue struct {
	log     logging.Logger
	workers int

	mu       sync.Mutex
	jobs     chan job
	inflight map[string]struct{}
	closed   bool

	handlers Handlers
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewLocalQueue(workers, buffer int, log logging.Logger) *LocalQueue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalQueue{
		log:      log.With("module", "tasks"),
		workers:  workers,
		jobs:     make(chan job, buffer),
		inflight: make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the workers. Tasks dispatched before Start wait in the buffer.
func (q *LocalQueue) Start(h Handlers) {
	q.handlers = h
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
}

func (q *LocalQueue) work() {
	defer q.wg.Done()
	for j := range q.jobs {
		if err := j.run(q.ctx, q.handlers); err != nil {
			q.log.Error(q.ctx, "task failed", "type", j.kind, "error", err)
		}
		if j.key != "" {
			q.mu.Lock()
			delete(q.inflight, j.key)
			q.mu.Unlock()
		}
	}
}

func (q *LocalQueue) enqueue(j job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if j.key != "" {
		if _, dup := q.inflight[j.key]; dup {
			return nil
		}
	}

	select {
	case q.jobs <- j:
		if j.key != "" {
			q.inflight[j.key] = struct{}{}
		}
		return nil
	default:
		return ErrQueueFull
	}
}

// DispatchGeneration queues the generation step of a wallpaper. Dispatching
// an id that is already queued or running is a no-op.
func (q *LocalQueue) DispatchGeneration(ctx context.Context, wallpaperID string) error {
	return q.enqueue(job{
		key:  GenerationKey(wallpaperID),
		kind: TypeGenerateWallpaper,
		run: func(ctx context.Context, h Handlers) error {
			return h.Generate(ctx, wallpaperID)
		},
	})
}

func (q *LocalQueue) DispatchEmail(ctx context.Context, m notify.Message) error {
	return q.enqueue(job{
		kind: TypeSendEmail,
		run: func(ctx context.Context, h Handlers) error {
			return h.SendEmail(ctx, m)
		},
	})
}

// Stop refuses new work and waits for queued tasks to finish. When ctx ends
// first, running tasks are cancelled and Stop returns ctx.Err().
func (q *LocalQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}
