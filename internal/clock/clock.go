// Package clock supplies the current time to the monitor.
package clock

import (
	"sync"
	"time"
)

// Clock is the source of the current time.
type Clock interface {
	Now() time.Time
}

// System is the Clock backed by time.Now.
var System Clock = Func(time.Now)

// Func makes a Clock from a function.
type Func func() time.Time

func (f Func) Now() time.Time {
	return f()
}

// Manual is a Clock for testing.
// It returns the same time until Set or Advance called.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a Manual clock that starts at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set changes current time.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves current time forward.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}
