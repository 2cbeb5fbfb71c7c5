// Package metrics exports the state of the monitor in Prometheus format.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	api "github.com/selfmon/selfmon/lib-selfmon"
)

const namespace = "selfmon"

// Source is the monitor to report.
type Source interface {
	Status(ctx context.Context) api.CurrentStatus
	Stats(ctx context.Context, days int) api.Stats
	Errors() (healthy bool, messages []string)
}

// Metrics is the set of metrics in its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	checks              *prometheus.CounterVec
	responseTime        prometheus.Histogram
	lastStatus          prometheus.Gauge
	lastCheck           prometheus.Gauge
	httpRequestDuration *prometheus.HistogramVec
}

// New makes Metrics with a new registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		checks: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checks_total",
				Help:      "Total checks performed by status",
			},
			[]string{"status"},
		),
		responseTime: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "response_time_seconds",
				Help:      "Response time of the target",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		lastStatus: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "up",
				Help:      "1 if the latest check was up, 0 otherwise",
			},
		),
		lastCheck: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_check_timestamp_seconds",
				Help:      "Unix time of the latest check",
			},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "route", "status_code"},
		),
	}
}

// ObserveCheck records a check result.
func (m *Metrics) ObserveCheck(r api.CheckResult) {
	m.checks.WithLabelValues(r.Status.String()).Inc()
	m.lastCheck.Set(float64(r.Timestamp))

	if r.IsUp() {
		m.lastStatus.Set(1)
		m.responseTime.Observe(r.ResponseTime / 1000)
	} else {
		m.lastStatus.Set(0)
	}
}

// Watch registers the collector that reads aggregated values from src on each scrape.
func (m *Metrics) Watch(src Source) {
	m.Registry.MustRegister(newCollector(src))
}

// Handler returns the handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware records HTTP request metrics of the routes.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// labeled by the route pattern, not by the path
		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequestDuration.WithLabelValues(
			r.Method,
			route,
			strconv.Itoa(status),
		).Observe(time.Since(start).Seconds())
	})
}
