package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/aiwallpaper/internal/common"
	"github.com/dmitrijs2005/aiwallpaper/internal/logging"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/config"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/metrics"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/models"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/storage"
	"github.com/google/uuid"
)

const (
	MaxPromptLength = 255

	wallpaperPrefix      = "wallpapers"
	wallpaperContentType = "image/webp"
)

// JobRequest is the input of a generation job.
type JobRequest struct {
	Prompt string
	Size   string
	Style  string
}

// Validate trims the prompt and checks the size class and style against the
// lookup tables. An empty style is allowed.
func (r *JobRequest) Validate() error {
	r.Prompt = strings.TrimSpace(r.Prompt)
	if r.Prompt == "" {
		return fmt.Errorf("%w: prompt is required", common.ErrorValidation)
	}
	if utf8.RuneCountInString(r.Prompt) > MaxPromptLength {
		return fmt.Errorf("%w: prompt is longer than %d characters", common.ErrorValidation, MaxPromptLength)
	}
	if _, ok := Sizes[r.Size]; !ok {
		return fmt.Errorf("%w: unknown size %q", common.ErrorValidation, r.Size)
	}
	if _, ok := StyleSuffixes[r.Style]; r.Style != "" && !ok {
		return fmt.Errorf("%w: unknown style %q", common.ErrorValidation, r.Style)
	}
	return nil
}

// WallpaperService runs generation jobs. Submit and Recreate persist a pending
// job and hand it to the dispatcher; Generate is the deferred step that
// calls the image provider and settles the job.
type WallpaperService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.ContentStore
	generator   ImageGenerator
	dispatcher  Dispatcher
	timeout     time.Duration
	log         logging.Logger
}

func NewWallpaperService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, store storage.ContentStore,
	generator ImageGenerator, d Dispatcher, log logging.Logger) *WallpaperService {
	return &WallpaperService{
		db:          db,
		repomanager: m,
		store:       store,
		generator:   generator,
		dispatcher:  d,
		timeout:     cfg.GenerationTimeout,
		log:         log.With("module", "wallpapers"),
	}
}

// Submit creates a pending job for userID and schedules its generation. It
// returns without waiting for the image.
func (s *WallpaperService) Submit(ctx context.Context, userID string, req JobRequest) (*models.Wallpaper, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.create(ctx, userID, req)
}

// Recreate copies prompt, size and style of an owned job into a new pending
// job.
func (s *WallpaperService) Recreate(ctx context.Context, userID, id string) (*models.Wallpaper, error) {
	orig, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, userID, JobRequest{Prompt: orig.Prompt, Size: orig.Size, Style: orig.Style})
}

func (s *WallpaperService) create(ctx context.Context, userID string, req JobRequest) (*models.Wallpaper, error) {
	w, err := s.repomanager.Wallpapers(s.db).Create(ctx, &models.Wallpaper{
		UserID: userID,
		Prompt: req.Prompt,
		Size:   req.Size,
		Style:  req.Style,
		Status: models.WallpaperPending,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "wallpaper job created", "wallpaper_id", w.ID, "user_id", userID)
	metrics.WallpaperJobsTotal.WithLabelValues("submitted").Inc()
	s.dispatch(ctx, w)
	return w, nil
}

// dispatch schedules the generation step. A job that cannot be queued is
// marked failed so it does not stay pending forever.
func (s *WallpaperService) dispatch(ctx context.Context, w *models.Wallpaper) {
	ctx = context.WithoutCancel(ctx)

	err := s.dispatcher.DispatchGeneration(ctx, w.ID)
	if err == nil {
		return
	}

	s.log.Error(ctx, "wallpaper job not dispatched", "wallpaper_id", w.ID, "error", err)
	metrics.WallpaperJobsTotal.WithLabelValues("failed").Inc()
	if _, err := s.repomanager.Wallpapers(s.db).MarkFailed(ctx, w.ID); err != nil {
		s.log.Error(ctx, "mark failed", "wallpaper_id", w.ID, "error", err)
		return
	}
	w.Status = models.WallpaperFailed
}

func (s *WallpaperService) List(ctx context.Context, userID string) ([]*models.Wallpaper, error) {
	return s.repomanager.Wallpapers(s.db).ListByUser(ctx, userID)
}

// Get returns an owned job. Jobs of other users are reported as
// common.ErrorNotFound.
func (s *WallpaperService) Get(ctx context.Context, userID, id string) (*models.Wallpaper, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Wallpapers(s.db).GetForUser(ctx, id, userID)
}

// Delete removes the job image, then the job. A missing image is not an
// error.
func (s *WallpaperService) Delete(ctx context.Context, userID, id string) error {
	w, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if w.ImageRef != nil {
		if err := s.store.Delete(ctx, *w.ImageRef); err != nil {
			s.log.Warn(ctx, "wallpaper image delete failed", "wallpaper_id", id, "error", err)
		}
	}
	return s.repomanager.Wallpapers(s.db).Delete(ctx, id, userID)
}

// Download returns the image of a completed job and its media type.
func (s *WallpaperService) Download(ctx context.Context, userID, id string) ([]byte, string, error) {
	w, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}
	if w.ImageRef == nil {
		return nil, "", common.ErrImageNotReady
	}

	data, err := s.store.Get(ctx, *w.ImageRef)
	if err != nil {
		return nil, "", err
	}
	return data, storage.ContentTypeFor(*w.ImageRef), nil
}

// Suggest rewrites a short prompt into a more descriptive one.
func (s *WallpaperService) Suggest(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt is required", common.ErrorValidation)
	}
	if utf8.RuneCountInString(prompt) > MaxPromptLength {
		return "", fmt.Errorf("%w: prompt is longer than %d characters", common.ErrorValidation, MaxPromptLength)
	}
	return s.generator.Suggest(ctx, prompt)
}

// Generate is the deferred generation step of a job. It runs at most once per
// pending job: jobs that are missing or already settled are skipped. Provider
// failures settle the job as failed and are not returned.
func (s *WallpaperService) Generate(ctx context.Context, id string) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	repo := s.repomanager.Wallpapers(s.db)

	if !validID(id) {
		s.log.Warn(ctx, "generation skipped, bad id", "wallpaper_id", id)
		return nil
	}
	w, err := repo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			s.log.Warn(ctx, "generation skipped, job is gone", "wallpaper_id", id)
			return nil
		}
		return err
	}
	if w.Status != models.WallpaperPending {
		s.log.Debug(ctx, "generation skipped, job settled", "wallpaper_id", id, "status", string(w.Status))
		return nil
	}

	s.log.Info(ctx, "generation started", "wallpaper_id", id)
	started := time.Now()

	dim := dimensionsFor(w.Size)
	data, err := s.generator.Generate(ctx, ComposePrompt(w.Prompt, w.Style), dim.Width, dim.Height)
	metrics.GenerationDurationSeconds.Observe(time.Since(started).Seconds())
	if err == nil && len(data) == 0 {
		err = fmt.Errorf("%w: empty image", common.ErrUpstreamFailure)
	}
	if err != nil {
		return s.fail(ctx, id, err)
	}

	ref, err := s.store.Save(ctx, wallpaperPrefix, data, wallpaperContentType)
	if err != nil {
		return s.fail(ctx, id, err)
	}

	settle := context.WithoutCancel(ctx)
	ok, err := repo.MarkCompleted(settle, id, ref)
	if err != nil || !ok {
		if delErr := s.store.Delete(settle, ref); delErr != nil {
			s.log.Warn(ctx, "orphan image delete failed", "ref", ref, "error", delErr)
		}
	}
	if err != nil {
		return s.fail(ctx, id, err)
	}
	if !ok {
		s.log.Warn(ctx, "generation result dropped, job settled meanwhile", "wallpaper_id", id)
		return nil
	}

	s.log.Info(ctx, "generation completed", "wallpaper_id", id, "duration", time.Since(started).String())
	metrics.WallpaperJobsTotal.WithLabelValues("completed").Inc()
	return nil
}

// fail settles a pending job as failed. Only a failure to persist that is
// returned.
func (s *WallpaperService) fail(ctx context.Context, id string, cause error) error {
	s.log.Error(ctx, "generation failed", "wallpaper_id", id, "error", cause)
	metrics.WallpaperJobsTotal.WithLabelValues("failed").Inc()
	if _, err := s.repomanager.Wallpapers(s.db).MarkFailed(context.WithoutCancel(ctx), id); err != nil {
		return fmt.Errorf("mark wallpaper %s failed: %w", id, err)
	}
	return nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrorNotFound)
}
