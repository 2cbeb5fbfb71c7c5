package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/selfmon/selfmon/internal/clock"
	"github.com/selfmon/selfmon/internal/monitor"
	"github.com/selfmon/selfmon/internal/store"
)

// BaseTime is the time that the clock of NewMonitor starts at.
var BaseTime = time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

// NewMonitor makes a Monitor on an in-memory store with a manual clock in UTC.
func NewMonitor(t testing.TB, p monitor.Prober) (*monitor.Monitor, *clock.Manual) {
	t.Helper()

	c := clock.NewManual(BaseTime)
	s := store.NewMemory()

	m := monitor.New(p, s, s, monitor.Options{
		Target:   "https://example.com/",
		Clock:    c,
		Location: time.UTC,
		Logger:   zerolog.Nop(),
	})
	return m, c
}

// RunChecks runs PerformCheck n times, advancing the clock by interval before each check except the first.
func RunChecks(t testing.TB, m *monitor.Monitor, c *clock.Manual, n int, interval time.Duration) {
	t.Helper()

	for i := 0; i < n; i++ {
		if i > 0 {
			c.Advance(interval)
		}
		if _, err := m.PerformCheck(context.Background()); err != nil {
			t.Fatalf("failed to perform check: %s", err)
		}
	}
}
