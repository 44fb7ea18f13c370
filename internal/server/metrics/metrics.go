// Package metrics holds the prometheus collectors of the server and worker.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of auth workflow attempts.",
		},
		[]string{"flow", "result"},
	)

	WallpaperJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallpaper_jobs_total",
			Help: "Wallpaper jobs by lifecycle event: submitted, completed, failed.",
		},
		[]string{"event"},
	)

	GenerationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wallpaper_generation_duration_seconds",
			Help:    "Duration of the image provider call for a job.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
)

var registerOnce sync.Once

// MustRegister registers all collectors on the default registry with a
// service label. Later calls are no-ops.
func MustRegister(serviceName string) {
	registerOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, prometheus.DefaultRegisterer)
		reg.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			AuthAttemptsTotal,
			WallpaperJobsTotal,
			GenerationDurationSeconds,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
