package monitor_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/selfmon/selfmon/internal/clock"
	"github.com/selfmon/selfmon/internal/monerr"
	"github.com/selfmon/selfmon/internal/monitor"
	"github.com/selfmon/selfmon/internal/store"
	"github.com/selfmon/selfmon/internal/testutil"
	api "github.com/selfmon/selfmon/lib-selfmon"
)

type failingStore struct {
	*store.Memory

	sync.Mutex
	fail bool
}

func (s *failingStore) SetFail(fail bool) {
	s.Lock()
	defer s.Unlock()
	s.fail = fail
}

func (s *failingStore) SaveChecks(ctx context.Context, rs []api.CheckResult) error {
	s.Lock()
	fail := s.fail
	s.Unlock()

	if fail {
		return errors.New("no space left on device")
	}
	return s.Memory.SaveChecks(ctx, rs)
}

const t0 = 1700000000

func newMonitor(p monitor.Prober, s store.Backend) (*monitor.Monitor, *clock.Manual) {
	c := clock.NewManual(time.Unix(t0, 0).UTC())
	m := monitor.New(p, s, s, monitor.Options{
		Target:   "https://example.com/",
		Clock:    c,
		Location: time.UTC,
		Logger:   zerolog.Nop(),
	})
	return m, c
}

type backend struct {
	*failingStore
}

func (backend) String() string { return "failing" }
func (backend) Close() error   { return nil }

func TestMonitor_PerformCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		Name     string
		Response testutil.DummyResponse
		Result   api.CheckResult
		Reason   string
	}{
		{
			"ok",
			testutil.DummyResponse{Code: 200, Elapsed: 12.34},
			api.CheckResult{Timestamp: t0, Date: "2023-11-14 22:13:20", Status: api.StatusUp, ResponseTime: 12.34, StatusCode: 200},
			"",
		},
		{
			"redirect",
			testutil.DummyResponse{Code: 301, Elapsed: 1},
			api.CheckResult{Timestamp: t0, Date: "2023-11-14 22:13:20", Status: api.StatusUp, ResponseTime: 1, StatusCode: 301},
			"",
		},
		{
			"server-error",
			testutil.DummyResponse{Code: 503, Elapsed: 80},
			api.CheckResult{Timestamp: t0, Date: "2023-11-14 22:13:20", Status: api.StatusDown, ResponseTime: 80, StatusCode: 503},
			"HTTP 503",
		},
		{
			"not-found",
			testutil.DummyResponse{Code: 404, Elapsed: 3},
			api.CheckResult{Timestamp: t0, Date: "2023-11-14 22:13:20", Status: api.StatusDown, ResponseTime: 3, StatusCode: 404},
			"HTTP 404",
		},
		{
			"transport-error",
			testutil.DummyResponse{Elapsed: 30000, Error: "probe timed out after 30s"},
			api.CheckResult{Timestamp: t0, Date: "2023-11-14 22:13:20", Status: api.StatusDown, ResponseTime: 30000, StatusCode: 0},
			"probe timed out after 30s",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.Name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			m, _ := newMonitor(&testutil.DummyProber{Responses: []testutil.DummyResponse{tt.Response}}, store.NewMemory())

			var observed []api.CheckResult
			r, err := m.PerformCheck(ctx)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			observed = append(observed, r)

			if diff := cmp.Diff(tt.Result, r); diff != "" {
				t.Errorf("unexpected result:\n%s", diff)
			}
			if diff := cmp.Diff(observed, m.Logs(ctx, 0)); diff != "" {
				t.Errorf("unexpected log:\n%s", diff)
			}

			is := m.Incidents(ctx, 0)
			if tt.Reason == "" {
				if len(is) != 0 {
					t.Errorf("unexpected incidents: %v", is)
				}
			} else {
				if len(is) != 1 {
					t.Fatalf("expected an incident but got %v", is)
				}
				if is[0].Reason != tt.Reason || !is[0].IsOpen() || is[0].StartTime != t0 {
					t.Errorf("unexpected incident: %v", is[0])
				}
			}
		})
	}
}

func TestMonitor_ForceCheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := &testutil.DummyProber{Responses: []testutil.DummyResponse{{Code: 500, Elapsed: 5}}}
	m, c := newMonitor(p, store.NewMemory())

	m.PerformCheck(ctx)
	c.Advance(5 * time.Minute)
	m.PerformCheck(ctx)

	if s := m.Status(ctx); s.Status != "down" || s.OpenIncident == nil {
		t.Fatalf("unexpected status: %v", s)
	}

	p.Push(testutil.DummyResponse{Code: 200, Elapsed: 5})
	c.Advance(5 * time.Minute)

	// the pushed response is consumed after the queued 500
	if _, err := m.ForceCheck(ctx); err != nil {
		t.Fatalf("failed to force check: %s", err)
	}
	if s := m.Status(ctx); s.Status != "down" || s.OpenIncident == nil {
		t.Fatalf("incident resolved by down check: %v", s)
	}

	c.Advance(time.Minute)
	if _, err := m.ForceCheck(ctx); err != nil {
		t.Fatalf("failed to force check: %s", err)
	}

	s := m.Status(ctx)
	if s.Status != "up" || s.OpenIncident != nil {
		t.Fatalf("unexpected status: %v", s)
	}

	is := m.Incidents(ctx, 0)
	if len(is) != 1 || !is[0].Resolved || *is[0].ResolvedTime != t0+11*60 || is[0].Duration != 11*60 {
		t.Fatalf("unexpected incidents: %v", is)
	}

	c.Advance(time.Minute)
	if _, err := m.ForceCheck(ctx); err != nil {
		t.Fatalf("failed to force check: %s", err)
	}
	if diff := cmp.Diff(is, m.Incidents(ctx, 0)); diff != "" {
		t.Errorf("incidents changed by repeated force check:\n%s", diff)
	}
	if n := len(m.Logs(ctx, 0)); n != 5 {
		t.Errorf("expected 5 checks but got %d", n)
	}
}

func TestMonitor_Resolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := &testutil.DummyProber{Responses: []testutil.DummyResponse{{Code: 500}, {Code: 200}}}
	m, c := newMonitor(p, store.NewMemory())

	if n, err := m.Resolve(ctx); n != 0 || err != nil {
		t.Errorf("expected nothing to do but got %d, %v", n, err)
	}

	m.PerformCheck(ctx)
	if n, _ := m.Resolve(ctx); n != 0 {
		t.Errorf("incident resolved while the target is down")
	}

	c.Advance(time.Minute)
	m.PerformCheck(ctx)

	c.Advance(time.Minute)
	if n, err := m.Resolve(ctx); n != 1 || err != nil {
		t.Errorf("expected 1 resolved incident but got %d, %v", n, err)
	}
	if is := m.Incidents(ctx, 0); len(is) != 1 || *is[0].ResolvedTime != t0+120 {
		t.Errorf("unexpected incidents: %v", is)
	}
}

func TestMonitor_Stats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := &testutil.DummyProber{Responses: []testutil.DummyResponse{
		{Code: 200, Elapsed: 100},
		{Code: 200, Elapsed: 200},
		{Code: 200, Elapsed: 300},
		{Code: 502, Elapsed: 5000},
	}}
	m, c := newMonitor(p, store.NewMemory())

	for i := 0; i < 4; i++ {
		m.PerformCheck(ctx)
		c.Advance(5 * time.Minute)
	}

	expected := api.Stats{
		UptimePercentage:    75,
		AverageResponseTime: 200,
		P95ResponseTime:     300,
		TotalChecks:         4,
		SuccessfulChecks:    3,
		FailedChecks:        1,
	}
	if diff := cmp.Diff(expected, m.Stats(ctx, 30)); diff != "" {
		t.Errorf("unexpected stats:\n%s", diff)
	}

	chart := m.Chart(ctx, 24)
	if diff := cmp.Diff([]string{"22:13", "22:18", "22:23", "22:28"}, chart.Labels); diff != "" {
		t.Errorf("unexpected labels:\n%s", diff)
	}
	if diff := cmp.Diff([]float64{100, 200, 300, 5000}, chart.Values); diff != "" {
		t.Errorf("unexpected values:\n%s", diff)
	}

	c.Advance(31 * 24 * time.Hour)
	if diff := cmp.Diff(api.Stats{}, m.Stats(ctx, 30)); diff != "" {
		t.Errorf("unexpected stats of empty window:\n%s", diff)
	}
}

func TestMonitor_Status_unknown(t *testing.T) {
	t.Parallel()

	m, _ := newMonitor(&testutil.DummyProber{Responses: []testutil.DummyResponse{{Code: 200}}}, store.NewMemory())

	expected := api.CurrentStatus{Status: "unknown", Target: "https://example.com/"}
	if diff := cmp.Diff(expected, m.Status(context.Background())); diff != "" {
		t.Errorf("unexpected status:\n%s", diff)
	}
}

func TestMonitor_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := &failingStore{Memory: store.NewMemory(), fail: true}
	m, _ := newMonitor(&testutil.DummyProber{Responses: []testutil.DummyResponse{{Code: 200}}}, backend{s})

	if healthy, msgs := m.Errors(); !healthy || len(msgs) != 0 {
		t.Fatalf("unexpected initial status: %v %v", healthy, msgs)
	}

	for i := 0; i < 12; i++ {
		r, err := m.PerformCheck(ctx)
		if !errors.Is(err, monerr.ErrStorage) {
			t.Fatalf("expected storage error but got %v", err)
		}
		if !r.IsUp() {
			t.Errorf("unexpected result: %v", r)
		}
	}

	healthy, msgs := m.Errors()
	if healthy {
		t.Errorf("expected unhealthy")
	}
	if len(msgs) != 10 {
		t.Errorf("expected 10 messages but got %d", len(msgs))
	}
	expected := "2023-11-14T22:13:20Z\tfailed to append check log: failed to save: no space left on device"
	if len(msgs) > 0 && msgs[0] != expected {
		t.Errorf("unexpected message:\nexpected: %q\n but got: %q", expected, msgs[0])
	}

	s.SetFail(false)
	if _, err := m.PerformCheck(ctx); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if healthy, msgs := m.Errors(); !healthy || len(msgs) != 10 {
		t.Errorf("unexpected status after recovery: %v %v", healthy, msgs)
	}
}

func TestMonitor_OnCheck(t *testing.T) {
	t.Parallel()

	var observed []api.CheckResult
	m := monitor.New(
		&testutil.DummyProber{Responses: []testutil.DummyResponse{{Code: 204, Elapsed: 7}}},
		store.NewMemory(),
		store.NewMemory(),
		monitor.Options{
			Clock:   clock.NewManual(time.Unix(t0, 0)),
			Logger:  zerolog.Nop(),
			OnCheck: func(r api.CheckResult) { observed = append(observed, r) },
		},
	)

	m.PerformCheck(context.Background())

	if len(observed) != 1 || observed[0].StatusCode != 204 {
		t.Errorf("unexpected observed results: %v", observed)
	}
}

func TestMonitor_PerformCheck_concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, _ := newMonitor(&testutil.DummyProber{Responses: []testutil.DummyResponse{{Error: "connection refused"}}}, store.NewMemory())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.ForceCheck(ctx)
		}()
	}
	wg.Wait()

	if n := len(m.Logs(ctx, 0)); n != 20 {
		t.Errorf("expected 20 checks but got %d", n)
	}
	is := m.Incidents(ctx, 0)
	if len(is) != 1 || !strings.Contains(is[0].Reason, "connection refused") {
		t.Errorf("unexpected incidents: %v", is)
	}
}

type slowIncidentStore struct {
	*store.Memory

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *slowIncidentStore) SaveIncidents(ctx context.Context, is []api.Incident) error {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.Memory.SaveIncidents(ctx, is)
}

func (s *slowIncidentStore) String() string { return "slow" }
func (s *slowIncidentStore) Close() error   { return nil }

func TestMonitor_PerformCheck_overlapped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := &slowIncidentStore{
		Memory:  store.NewMemory(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	m, c := newMonitor(testutil.NewDummyProber(testutil.DummyResponse{Code: 503}, testutil.DummyResponse{Code: 200}), s)

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.PerformCheck(ctx)
	}()
	<-s.entered

	c.Advance(time.Minute)
	if r, err := m.PerformCheck(ctx); err != nil || r.Status != api.StatusUp {
		t.Fatalf("unexpected second check: %v, %v", r, err)
	}

	close(s.release)
	<-done

	var ts []int64
	for _, r := range m.Logs(ctx, 0) {
		ts = append(ts, r.Timestamp)
	}
	if diff := cmp.Diff([]int64{t0, t0 + 60}, ts); diff != "" {
		t.Errorf("check log is not in order of time:\n%s", diff)
	}

	if st := m.Status(ctx); st.Status != "up" || st.OpenIncident == nil {
		t.Errorf("unexpected status: %#v", st)
	}

	if n, err := m.Resolve(ctx); n != 1 || err != nil {
		t.Errorf("expected 1 resolved incident but got %d, %v", n, err)
	}
	if is := m.Incidents(ctx, 0); len(is) != 1 || !is[0].Resolved || is[0].Duration != 60 {
		t.Errorf("unexpected incidents: %v", is)
	}
}
