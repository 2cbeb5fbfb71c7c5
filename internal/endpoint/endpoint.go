// Package endpoint is the HTTP interface of selfmon.
package endpoint

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/selfmon/selfmon/internal/clock"
	"github.com/selfmon/selfmon/internal/metrics"
	api "github.com/selfmon/selfmon/lib-selfmon"
)

// Monitor is the source of the reports and the target of the force check.
type Monitor interface {
	Target() string
	Location() *time.Location
	ForceCheck(ctx context.Context) (api.CheckResult, error)
	Stats(ctx context.Context, days int) api.Stats
	Chart(ctx context.Context, hours int) api.ChartData
	Logs(ctx context.Context, limit int) []api.CheckResult
	Incidents(ctx context.Context, limit int) []api.Incident
	Status(ctx context.Context) api.CurrentStatus
	Errors() (healthy bool, messages []string)
}

// Runner runs a demanded task, like schedule.Scheduler.
type Runner interface {
	OnDemand(ctx context.Context, task func(ctx context.Context) error) error
}

// Options is the settings for the handler.
type Options struct {
	// User and PasswordHash protect the force check.
	// The force check is disabled if they are empty.
	User         string
	PasswordHash string

	// Runner runs the force check. The check runs directly if nil.
	Runner Runner

	// Metrics enables /metrics and the request metrics if not nil.
	Metrics *metrics.Metrics

	Clock  clock.Clock
	Logger zerolog.Logger
}

// New makes the http.Handler of all endpoints.
func New(m Monitor, opts Options) http.Handler {
	if opts.Clock == nil {
		opts.Clock = clock.System
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}

	r.Get("/api/stats", StatsEndpoint(m, opts.Logger))
	r.Get("/api/chart-data", ChartEndpoint(m, opts.Logger))
	r.Get("/api/status", StatusJSONEndpoint(m, opts.Logger))
	r.Get("/api/incidents", IncidentsEndpoint(m, opts.Clock, opts.Logger))
	r.Get("/api/logs", LogJSONEndpoint(m, opts.Logger))
	r.Get("/api/logs.csv", LogCSVEndpoint(m, opts.Logger))
	r.Get("/api/logs.xlsx", LogXlsxEndpoint(m, opts.Clock, opts.Logger))

	force := ForceCheckEndpoint(m, opts.Runner, opts.Logger)
	if opts.User != "" && opts.PasswordHash != "" {
		r.Method(http.MethodPost, "/api/force-check", WithBasicAuth(force, opts.User, opts.PasswordHash))
	} else {
		r.Post("/api/force-check", ForceCheckDisabledEndpoint(opts.Logger))
	}

	r.Get("/status.txt", StatusTextEndpoint(m, opts.Clock, opts.Logger))
	r.Get("/healthz", HealthzEndpoint(m, opts.Clock))

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/status.txt", http.StatusFound)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return gziphandler.GzipHandler(r)
}

// handleError reports an error of writing a response.
func handleError(logger zerolog.Logger, scope string, err error) {
	if err != nil {
		logger.Error().Err(err).Str("endpoint", scope).Msg("failed to write response")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func allowCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET")
}

// positiveQuery parses a positive integer query parameter.
// It returns def if the parameter is not set.
func positiveQuery(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
