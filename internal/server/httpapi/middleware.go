package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/aiwallpaper/internal/common"
	"github.com/dmitrijs2005/aiwallpaper/internal/logging"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/metrics"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/models"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const userKey ctxKey = "user"

// UserFromContext returns the authenticated user stored by requireUser.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

func bearerToken(r *http.Request) (string, bool) {
	raw := r.Header.Get(common.AuthorizationHeaderName)
	if len(raw) < len(common.BearerPrefix) || !strings.EqualFold(raw[:len(common.BearerPrefix)], common.BearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(raw[len(common.BearerPrefix):])
	return tok, tok != ""
}

// requireUser resolves the bearer access token to a user. A valid token for
// a user that no longer exists is treated as unauthorized.
func (h *handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			writeError(w, r, h.log, common.ErrorUnauthorized)
			return
		}

		email, err := h.tokens.ValidateAccessToken(tok)
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}

		user, err := h.profile.CurrentUser(r.Context(), email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				err = common.ErrorUnauthorized
			}
			writeError(w, r, h.log, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// observe logs and counts every request except metric scrapes.
func observe(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			elapsed := time.Since(start)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDurationSeconds.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

			log.Info(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
