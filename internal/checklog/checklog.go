// Package checklog is the bounded history of check results.
package checklog

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/selfmon/selfmon/internal/store"
	api "github.com/selfmon/selfmon/lib-selfmon"
)

// DefaultRetention is the age of checks to keep.
const DefaultRetention = 30 * 24 * time.Hour

// Log is the check log on a store.
type Log struct {
	store     store.CheckLogStore
	guard     *store.Guard
	retention time.Duration
	logger    zerolog.Logger
}

// New makes a Log.
// DefaultRetention is used if retention is zero or negative.
func New(s store.CheckLogStore, guard *store.Guard, retention time.Duration, logger zerolog.Logger) *Log {
	if guard == nil {
		guard = store.NewGuard(0)
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Log{
		store:     s,
		guard:     guard,
		retention: retention,
		logger:    logger,
	}
}

// Retention returns the age of checks to keep.
func (l *Log) Retention() time.Duration {
	return l.retention
}

// Append adds a result to the log, and drops the results that older than the retention.
//
// The log is kept in order of Timestamp, even if an older result arrives late.
// A result is placed after the results that have the same Timestamp.
func (l *Log) Append(ctx context.Context, r api.CheckResult, now time.Time) error {
	return l.guard.Do(ctx, func(ctx context.Context) error {
		var rs []api.CheckResult
		err := l.guard.Load(ctx, func(ctx context.Context) (err error) {
			rs, err = l.store.LoadChecks(ctx)
			return err
		})
		if errors.Is(err, store.ErrCorrupted) {
			l.logger.Warn().Err(err).Msg("check log is corrupted; starting a new one")
			rs = nil
		} else if err != nil {
			return err
		}

		rs = Prune(Insert(rs, r), now.Add(-l.retention).Unix())

		return l.guard.Save(ctx, func(ctx context.Context) error {
			return l.store.SaveChecks(ctx, rs)
		})
	})
}

// Insert places r in rs, which is sorted by Timestamp, and keeps it sorted.
func Insert(rs []api.CheckResult, r api.CheckResult) []api.CheckResult {
	i := sort.Search(len(rs), func(i int) bool {
		return rs[i].Timestamp > r.Timestamp
	})

	rs = append(rs, api.CheckResult{})
	copy(rs[i+1:], rs[i:])
	rs[i] = r
	return rs
}

// Prune drops results that has Timestamp less than or equal to cutoff.
// The results are rewritten in place and the order is kept.
func Prune(rs []api.CheckResult, cutoff int64) []api.CheckResult {
	kept := rs[:0]
	for _, r := range rs {
		if r.Timestamp > cutoff {
			kept = append(kept, r)
		}
	}
	return kept
}

// Read returns the most recent limit results in chronological order.
// All results returned if limit is zero or negative.
//
// An unreadable log is reported as a warning and treated as empty.
func (l *Log) Read(ctx context.Context, limit int) []api.CheckResult {
	var rs []api.CheckResult
	err := l.guard.Load(ctx, func(ctx context.Context) (err error) {
		rs, err = l.store.LoadChecks(ctx)
		return err
	})
	if err != nil {
		l.logger.Warn().Err(err).Msg("failed to read check log")
		return nil
	}

	if limit > 0 && len(rs) > limit {
		rs = rs[len(rs)-limit:]
	}
	return rs
}

// Latest returns the last result in the log, or nil if the log is empty.
func (l *Log) Latest(ctx context.Context) *api.CheckResult {
	rs := l.Read(ctx, 1)
	if len(rs) == 0 {
		return nil
	}
	return &rs[0]
}
