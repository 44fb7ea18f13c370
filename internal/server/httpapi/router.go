package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/aiwallpaper/internal/logging"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
)

// Deps are the collaborators behind the routes.
type Deps struct {
	Auth       AuthService
	Profile    ProfileService
	Wallpapers WallpaperService
	Tokens     TokenValidator
	Logger     logging.Logger
}

// Options tune the cross-cutting middleware. A zero rate limit disables
// that limiter.
type Options struct {
	CORSOrigins            []string
	RateLimitPerMinute     int
	AuthRateLimitPerMinute int
}

type handler struct {
	auth       AuthService
	profile    ProfileService
	wallpapers WallpaperService
	tokens     TokenValidator
	validate   *validator.Validate
	log        logging.Logger
}

// NewRouter mounts the auth, profile and wallpaper routes plus /healthz and
// /metrics.
func NewRouter(d Deps, opts Options) http.Handler {
	log := d.Logger
	if log == nil {
		log = logging.Nop()
	}
	h := &handler{
		auth:       d.Auth,
		profile:    d.Profile,
		wallpapers: d.Wallpapers,
		tokens:     d.Tokens,
		validate:   newValidate(),
		log:        log.With("module", "http"),
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observe(h.log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if opts.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimitPerMinute, time.Minute))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		if opts.AuthRateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(opts.AuthRateLimitPerMinute, time.Minute))
		}
		r.Post("/register", h.register)
		r.Post("/verify", h.verify)
		r.Post("/resend-code", h.resendCode)
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.Post("/forgot-password", h.forgotPassword)
		r.Post("/reset-password", h.resetPassword)
		r.Post("/google", h.google)
		r.Post("/logout", h.logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.requireUser)

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/", h.me)
			r.Patch("/", h.updateMe)
			r.Put("/password", h.changePassword)
			r.Put("/profile-pic", h.uploadPicture)
			r.Get("/profile-pic", h.picture)
		})

		r.Route("/wallpapers", func(r chi.Router) {
			r.Post("/", h.submitWallpaper)
			r.Get("/", h.listWallpapers)
			r.Post("/suggest", h.suggestPrompt)
			r.Get("/{id}", h.getWallpaper)
			r.Delete("/{id}", h.deleteWallpaper)
			r.Post("/{id}/recreate", h.recreateWallpaper)
			r.Get("/{id}/download", h.downloadWallpaper)
		})
	})

	return r
}
