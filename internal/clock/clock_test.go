package clock_test

import (
	"testing"
	"time"

	"github.com/selfmon/selfmon/internal/clock"
)

func TestManual(t *testing.T) {
	start := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	c := clock.NewManual(start)

	if !c.Now().Equal(start) {
		t.Fatalf("unexpected time: %s", c.Now())
	}

	c.Advance(30 * time.Minute)
	if want := start.Add(30 * time.Minute); !c.Now().Equal(want) {
		t.Errorf("expected %s but got %s", want, c.Now())
	}

	c.Set(start)
	if !c.Now().Equal(start) {
		t.Errorf("expected %s but got %s", start, c.Now())
	}
}

func TestFunc(t *testing.T) {
	fixed := time.Unix(42, 0)
	c := clock.Func(func() time.Time { return fixed })

	if !c.Now().Equal(fixed) {
		t.Errorf("unexpected time: %s", c.Now())
	}
}
