package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/selfmon/selfmon/internal/metrics"
	api "github.com/selfmon/selfmon/lib-selfmon"
)

type dummySource struct {
	open bool
}

func (s dummySource) Status(ctx context.Context) api.CurrentStatus {
	st := api.CurrentStatus{Status: "down"}
	if s.open {
		st.OpenIncident = &api.Incident{Reason: "HTTP 500"}
	}
	return st
}

func (s dummySource) Stats(ctx context.Context, days int) api.Stats {
	return api.Stats{
		UptimePercentage:    75,
		AverageResponseTime: 200,
		P95ResponseTime:     300,
		TotalChecks:         4,
		SuccessfulChecks:    3,
		FailedChecks:        1,
	}
}

func (s dummySource) Errors() (bool, []string) {
	return false, []string{"oops"}
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("failed to scrape: %s", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %s", err)
	}
	return string(body)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.Watch(dummySource{open: true})

	m.ObserveCheck(api.CheckResult{Timestamp: 1700000000, Status: api.StatusUp, ResponseTime: 120, StatusCode: 200})
	m.ObserveCheck(api.CheckResult{Timestamp: 1700000300, Status: api.StatusDown, StatusCode: 503})

	body := scrape(t, m)

	for _, want := range []string{
		`selfmon_checks_total{status="up"} 1`,
		`selfmon_checks_total{status="down"} 1`,
		`selfmon_up 0`,
		`selfmon_last_check_timestamp_seconds 1.7000003e+09`,
		`selfmon_response_time_seconds_count 1`,
		`selfmon_uptime_ratio{window="30d"} 0.75`,
		`selfmon_avg_response_time_seconds{window="7d"} 0.2`,
		`selfmon_p95_response_time_seconds{window="1d"} 0.3`,
		`selfmon_open_incident 1`,
		`selfmon_storage_healthy 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metric not found: %s", want)
		}
	}
}

func TestMetrics_Middleware(t *testing.T) {
	t.Parallel()

	m := metrics.New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, path := range []string{"/api/items/1", "/api/items/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	want := `selfmon_http_request_duration_seconds_count{method="GET",route="/api/items/{id}",status_code="418"} 2`
	if body := scrape(t, m); !strings.Contains(body, want) {
		t.Errorf("metric not found: %s\n%s", want, body)
	}
}
