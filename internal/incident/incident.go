// Package incident tracks the periods of failure of the target.
package incident

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/selfmon/selfmon/internal/store"
	api "github.com/selfmon/selfmon/lib-selfmon"
)

// DefaultMergeWindow is the period that a failure extends the open incident instead of making a new one.
const DefaultMergeWindow = 30 * time.Minute

// MergeFrom is the reference point of the merge window.
type MergeFrom int8

const (
	// MergeFromStart measures the merge window from the start of the open incident.
	// A failure that continues longer than the window is split into several incidents.
	MergeFromStart MergeFrom = iota

	// MergeFromLastSeen measures the merge window from the latest failure of the open incident.
	MergeFromLastSeen
)

// ParseMergeFrom parses "start" or "last_seen".
func ParseMergeFrom(s string) (MergeFrom, error) {
	switch s {
	case "start", "":
		return MergeFromStart, nil
	case "last_seen":
		return MergeFromLastSeen, nil
	default:
		return MergeFromStart, fmt.Errorf("invalid merge reference: %q", s)
	}
}

func (m MergeFrom) String() string {
	if m == MergeFromLastSeen {
		return "last_seen"
	}
	return "start"
}

// Options is the settings for Tracker.
type Options struct {
	// MergeWindow is DefaultMergeWindow if zero.
	MergeWindow time.Duration

	MergeFrom MergeFrom

	// Location is the time zone to render StartDate. time.Local is used if nil.
	Location *time.Location
}

// Tracker records failures as incidents and resolves them.
type Tracker struct {
	store  store.IncidentStore
	guard  *store.Guard
	window int64
	from   MergeFrom
	loc    *time.Location
	logger zerolog.Logger
}

// New makes a Tracker.
func New(s store.IncidentStore, guard *store.Guard, opts Options, logger zerolog.Logger) *Tracker {
	if guard == nil {
		guard = store.NewGuard(0)
	}
	if opts.MergeWindow <= 0 {
		opts.MergeWindow = DefaultMergeWindow
	}
	return &Tracker{
		store:  s,
		guard:  guard,
		window: int64(opts.MergeWindow / time.Second),
		from:   opts.MergeFrom,
		loc:    opts.Location,
		logger: logger,
	}
}

func (t *Tracker) load(ctx context.Context) ([]api.Incident, error) {
	var is []api.Incident
	err := t.guard.Load(ctx, func(ctx context.Context) (err error) {
		is, err = t.store.LoadIncidents(ctx)
		return err
	})
	if errors.Is(err, store.ErrCorrupted) {
		t.logger.Warn().Err(err).Msg("incident list is corrupted; starting a new one")
		return nil, nil
	}
	return is, err
}

func (t *Tracker) save(ctx context.Context, is []api.Incident) error {
	return t.guard.Save(ctx, func(ctx context.Context) error {
		return t.store.SaveIncidents(ctx, is)
	})
}

// RecordFailure extends the open incident, or opens a new incident, for a failure at now.
//
// The open incident is extended only if the failure is in the merge window.
// Otherwise it is closed at its last failure and a new incident is opened,
// so there is at most one open incident at any time.
func (t *Tracker) RecordFailure(ctx context.Context, reason string, now time.Time) (api.Incident, error) {
	var recorded api.Incident

	err := t.guard.Do(ctx, func(ctx context.Context) error {
		is, err := t.load(ctx)
		if err != nil {
			return err
		}

		ts := now.Unix()

		if n := len(is); n > 0 && is[n-1].IsOpen() {
			last := &is[n-1]

			// a late failure does not move the incident backwards
			if ts < last.LastSeen {
				ts = last.LastSeen
			}

			ref := last.StartTime
			if t.from == MergeFromLastSeen {
				ref = last.LastSeen
			}

			if ts-ref < t.window {
				last.LastSeen = ts
				last.Duration = ts - last.StartTime
				recorded = *last

				t.logger.Info().
					Str("start_date", last.StartDate).
					Int64("duration", last.Duration).
					Msg("incident extended")

				return t.save(ctx, is)
			}

			closed := last.LastSeen
			last.Resolved = true
			last.ResolvedTime = &closed
			last.Duration = closed - last.StartTime

			t.logger.Info().
				Str("start_date", last.StartDate).
				Int64("duration", last.Duration).
				Msg("incident closed by merge window")
		}

		recorded = api.Incident{
			StartTime: ts,
			StartDate: api.FormatDate(ts, t.loc),
			LastSeen:  ts,
			Reason:    reason,
		}
		is = append(is, recorded)

		t.logger.Warn().
			Str("start_date", recorded.StartDate).
			Str("reason", reason).
			Msg("incident opened")

		return t.save(ctx, is)
	})

	return recorded, err
}

// ResolveOpen resolves every open incident at now if the latest check is up.
// It does nothing if latest is nil or down, or if there is no open incident.
//
// It returns the number of resolved incidents.
func (t *Tracker) ResolveOpen(ctx context.Context, latest *api.CheckResult, now time.Time) (int, error) {
	if latest == nil || !latest.IsUp() {
		return 0, nil
	}

	resolved := 0
	err := t.guard.Do(ctx, func(ctx context.Context) error {
		is, err := t.load(ctx)
		if err != nil {
			return err
		}

		ts := now.Unix()
		for i := range is {
			if !is[i].IsOpen() {
				continue
			}
			rt := ts
			is[i].Resolved = true
			is[i].ResolvedTime = &rt
			is[i].Duration = rt - is[i].StartTime
			resolved++

			t.logger.Info().
				Str("start_date", is[i].StartDate).
				Str("duration", api.FormatDuration(is[i].Duration)).
				Msg("incident resolved")
		}

		if resolved == 0 {
			return nil
		}
		return t.save(ctx, is)
	})
	if err != nil {
		resolved = 0
	}

	return resolved, err
}

// List returns the most recent limit incidents in chronological order.
// All incidents returned if limit is zero or negative.
//
// An unreadable list is reported as a warning and treated as empty.
func (t *Tracker) List(ctx context.Context, limit int) []api.Incident {
	is, err := t.load(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("failed to read incident list")
		return nil
	}

	if limit > 0 && len(is) > limit {
		is = is[len(is)-limit:]
	}
	return is
}

// Open returns the open incident, or nil if there is no open incident.
func (t *Tracker) Open(ctx context.Context) *api.Incident {
	is := t.List(ctx, 0)
	for i := len(is) - 1; i >= 0; i-- {
		if is[i].IsOpen() {
			return &is[i]
		}
	}
	return nil
}
