// Package server wires configuration, storage, queues and services into the
// API process and the background worker process, and handles graceful
// shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/aiwallpaper/internal/logging"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/auth"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/config"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/httpapi"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/imagegen"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/metrics"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/notify"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/services"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/storage"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/tasks"
	"github.com/hibiken/asynq"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	serviceName      = "aiwallpaper"
	localQueueBuffer = 256
	drainTimeout     = 30 * time.Second
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	verifier *auth.GoogleVerifier
	sender   notify.Sender

	local *tasks.LocalQueue
	asynq *tasks.AsynqQueue

	tokens     *services.TokenService
	auth       *services.AuthService
	profile    *services.ProfileService
	wallpapers *services.WallpaperService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(logging.Options{
		Service:     serviceName,
		Environment: c.Environment,
		Level:       c.LogLevel,
		Format:      c.LogFormat,
	})

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	store, err := app.newStore(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	var dispatcher services.Dispatcher
	switch c.QueueBackend {
	case config.BackendAsynq:
		app.asynq = tasks.NewAsynqQueue(app.redisOpt(), logger)
		dispatcher = app.asynq
	case config.BackendLocal, "":
		app.local = tasks.NewLocalQueue(c.Workers, localQueueBuffer, logger)
		dispatcher = app.local
	default:
		_ = db.Close()
		return nil, fmt.Errorf("unknown queue backend %q", c.QueueBackend)
	}

	// Without a client id Google sign-in stays disabled and always fails.
	var verifier services.IdentityVerifier
	if c.GoogleClientID != "" {
		v, err := auth.NewGoogleVerifier(c.GoogleJWKSURL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("google jwks init error: %w", err)
		}
		app.verifier = v
		verifier = v
	}

	if c.SMTPHost != "" {
		app.sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			User:     c.SMTPUser,
			Password: c.SMTPPassword,
			From:     c.MailFrom,
			FromName: c.MailFromName,
			CodeTTL:  c.CodeValidityDuration,
		})
	} else {
		logger.Warn(ctx, "SMTP host not set, codes are written to the log")
		app.sender = notify.NewLogSender(logger)
	}

	generator, err := imagegen.NewClient(imagegen.Options{
		BaseURL:      c.ReplicateBaseURL,
		Token:        c.ReplicateAPIToken,
		ImageModel:   c.ImageModel,
		SuggestModel: c.SuggestModel,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("image generator init error: %w", err)
	}

	hasher := auth.NewHasher()
	app.tokens = services.NewTokenService(db, rm, c, verifier)
	app.auth = services.NewAuthService(db, rm, app.tokens, hasher, auth.NewCodeIssuer(c.CodeValidityDuration), dispatcher, logger)
	app.profile = services.NewProfileService(db, rm, hasher, store, logger)
	app.wallpapers = services.NewWallpaperService(db, rm, c, store, generator, dispatcher, logger)

	metrics.MustRegister(serviceName)

	return app, nil
}

func (app *App) newStore(ctx context.Context) (storage.ContentStore, error) {
	switch app.config.StorageBackend {
	case config.BackendS3:
		return storage.NewS3Store(ctx, app.config)
	case config.BackendLocal, "":
		return storage.NewLocalStore(app.config.StorageDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", app.config.StorageBackend)
	}
}

func (app *App) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: app.config.RedisAddr}
}

func (app *App) handlers() tasks.Handlers {
	return tasks.Handlers{
		Generate:  app.wallpapers.Generate,
		SendEmail: app.sender.Send,
	}
}

// Close releases connections. It is safe to call once after Run returns.
func (app *App) Close() {
	if app.asynq != nil {
		_ = app.asynq.Close()
	}
	if app.verifier != nil {
		app.verifier.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) error {
	router := httpapi.NewRouter(httpapi.Deps{
		Auth:       app.auth,
		Profile:    app.profile,
		Wallpapers: app.wallpapers,
		Tokens:     app.tokens,
		Logger:     app.logger,
	}, httpapi.Options{
		CORSOrigins:            app.config.CORSOrigins,
		RateLimitPerMinute:     app.config.RateLimitPerMinute,
		AuthRateLimitPerMinute: app.config.AuthRateLimitPerMinute,
	})

	s := httpapi.NewServer(app.config.HTTPAddr, app.logger, router)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return err
	}
	return nil
}

// Run serves the API until a signal arrives. With the local queue backend,
// deferred work runs in this process and is drained on shutdown.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if app.local != nil {
		app.local.Start(app.handlers())
	}

	var wg sync.WaitGroup
	var serveErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		serveErr = app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.local != nil {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
		defer cancel()
		if err := app.local.Stop(drainCtx); err != nil {
			app.logger.Warn(ctx, "task queue did not drain", "error", err)
		}
	}

	app.logger.Info(ctx, "App stopped")
	return serveErr
}

// RunWorker executes asynq tasks until a signal arrives.
func (app *App) RunWorker(ctx context.Context) error {
	if app.config.QueueBackend != config.BackendAsynq {
		return errors.New("worker requires the asynq queue backend")
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	w := tasks.NewWorker(app.redisOpt(), app.config.Workers, app.handlers(), app.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run()
	}()

	app.logger.Info(ctx, "Starting worker...", "concurrency", app.config.Workers)

	select {
	case <-ctx.Done():
		app.logger.Info(ctx, "Stopping worker...")
		w.Shutdown()
		return nil
	case err := <-errCh:
		return err
	}
}
