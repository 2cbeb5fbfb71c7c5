// Package monitor runs checks against the target and keeps the check log and incidents up to date.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/selfmon/selfmon/internal/checklog"
	"github.com/selfmon/selfmon/internal/clock"
	"github.com/selfmon/selfmon/internal/incident"
	"github.com/selfmon/selfmon/internal/probe"
	"github.com/selfmon/selfmon/internal/stats"
	"github.com/selfmon/selfmon/internal/store"
	api "github.com/selfmon/selfmon/lib-selfmon"
)

// Prober sends a request to the target.
type Prober interface {
	Probe(ctx context.Context) (probe.Outcome, error)
}

// Options is the settings for Monitor.
type Options struct {
	// Target is the URL of the target, for reports.
	Target string

	Clock clock.Clock

	// Location is the time zone to render dates and chart labels.
	Location *time.Location

	Retention      time.Duration
	MergeWindow    time.Duration
	MergeFrom      incident.MergeFrom
	StorageTimeout time.Duration

	Logger zerolog.Logger

	// OnCheck is called after each check.
	OnCheck func(api.CheckResult)
}

// Monitor is the entry point of checks and reports.
type Monitor struct {
	prober  Prober
	log     *checklog.Log
	tracker *incident.Tracker

	target  string
	clock   clock.Clock
	loc     *time.Location
	logger  zerolog.Logger
	onCheck func(api.CheckResult)

	errorsLock sync.RWMutex
	healthy    bool
	errors     []string
}

// New makes a Monitor.
// The check log and the incident list have their own lock, so they can be in the same backend.
func New(p Prober, checks store.CheckLogStore, incidents store.IncidentStore, opts Options) *Monitor {
	if opts.Clock == nil {
		opts.Clock = clock.System
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	return &Monitor{
		prober: p,
		log: checklog.New(
			checks,
			store.NewGuard(opts.StorageTimeout),
			opts.Retention,
			opts.Logger.With().Str("collection", "checks").Logger(),
		),
		tracker: incident.New(
			incidents,
			store.NewGuard(opts.StorageTimeout),
			incident.Options{
				MergeWindow: opts.MergeWindow,
				MergeFrom:   opts.MergeFrom,
				Location:    opts.Location,
			},
			opts.Logger.With().Str("collection", "incidents").Logger(),
		),
		target:  opts.Target,
		clock:   opts.Clock,
		loc:     opts.Location,
		logger:  opts.Logger,
		onCheck: opts.OnCheck,
		healthy: true,
	}
}

func (m *Monitor) Target() string {
	return m.target
}

func (m *Monitor) Location() *time.Location {
	return m.loc
}

// PerformCheck probes the target once, records an incident if it is down, and appends the result to the check log.
//
// A failure of the probe is recorded as a down result, not an error.
// The returned error is a storage error; the result is valid even in that case.
func (m *Monitor) PerformCheck(ctx context.Context) (api.CheckResult, error) {
	logger := m.logger.With().Str("check_id", uuid.NewString()).Logger()

	out, perr := m.prober.Probe(ctx)
	now := m.clock.Now()

	r := api.CheckResult{
		Timestamp:    now.Unix(),
		Date:         api.FormatDate(now.Unix(), m.loc),
		ResponseTime: out.Elapsed,
	}

	var reason string
	if perr != nil {
		r.Status = api.StatusDown
		reason = perr.Error()
	} else {
		r.StatusCode = out.StatusCode
		r.Status = api.StatusOf(out.StatusCode)
		if !r.IsUp() {
			reason = fmt.Sprintf("HTTP %d", out.StatusCode)
		}
	}

	var errs []error
	if reason != "" {
		if _, err := m.tracker.RecordFailure(ctx, reason, now); err != nil {
			m.handleError(logger, err, "failed to record incident")
			errs = append(errs, err)
		}
	}
	if err := m.log.Append(ctx, r, now); err != nil {
		m.handleError(logger, err, "failed to append check log")
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		m.setHealthy()
	}

	ev := logger.Info()
	if !r.IsUp() {
		ev = logger.Warn().Str("reason", reason)
	}
	ev.Str("status", r.Status.String()).
		Int("status_code", r.StatusCode).
		Float64("response_time_ms", r.ResponseTime).
		Msg("check performed")

	if m.onCheck != nil {
		m.onCheck(r)
	}

	return r, errors.Join(errs...)
}

// Resolve resolves the open incidents if the latest check in the log is up.
// It returns the number of resolved incidents.
func (m *Monitor) Resolve(ctx context.Context) (int, error) {
	latest := m.log.Latest(ctx)

	n, err := m.tracker.ResolveOpen(ctx, latest, m.clock.Now())
	if err != nil {
		m.handleError(m.logger, err, "failed to resolve incidents")
	}
	return n, err
}

// ForceCheck performs a check and then resolves the open incidents if the target is up.
func (m *Monitor) ForceCheck(ctx context.Context) (api.CheckResult, error) {
	r, err := m.PerformCheck(ctx)
	if _, rerr := m.Resolve(ctx); rerr != nil {
		err = errors.Join(err, rerr)
	}
	return r, err
}

// Stats aggregates the check log of the last days.
func (m *Monitor) Stats(ctx context.Context, days int) api.Stats {
	return stats.Compute(m.log.Read(ctx, 0), days, m.clock.Now())
}

// Chart makes the response time series of the last hours.
func (m *Monitor) Chart(ctx context.Context, hours int) api.ChartData {
	return stats.Chart(m.log.Read(ctx, 0), hours, m.loc, m.clock.Now())
}

// Logs returns the most recent limit results in chronological order, or all results if limit <= 0.
func (m *Monitor) Logs(ctx context.Context, limit int) []api.CheckResult {
	return m.log.Read(ctx, limit)
}

// Incidents returns the most recent limit incidents in chronological order, or all incidents if limit <= 0.
func (m *Monitor) Incidents(ctx context.Context, limit int) []api.Incident {
	return m.tracker.List(ctx, limit)
}

// Status returns the summary of the latest state.
func (m *Monitor) Status(ctx context.Context) api.CurrentStatus {
	s := api.CurrentStatus{
		Status:       "unknown",
		Target:       m.target,
		LastCheck:    m.log.Latest(ctx),
		OpenIncident: m.tracker.Open(ctx),
	}
	if s.LastCheck != nil {
		s.Status = s.LastCheck.Status.String()
	}
	return s
}

// handleError reports an error of storage.
// The error is logged, and reported to /healthz via Errors method.
func (m *Monitor) handleError(logger zerolog.Logger, err error, message string) {
	logger.Error().Err(err).Msg(message)
	m.addError(fmt.Sprintf("%s: %s", message, err))
}

// setHealthy is reset healthy status.
// This status is reported by Errors method.
func (m *Monitor) setHealthy() {
	m.errorsLock.Lock()
	defer m.errorsLock.Unlock()

	m.healthy = true
}

// addError adds error message for Errors method, and set healthy status to false.
func (m *Monitor) addError(message string) {
	m.errorsLock.Lock()
	defer m.errorsLock.Unlock()

	m.healthy = false
	m.errors = append(
		m.errors,
		fmt.Sprintf("%s\t%s", m.clock.Now().Format(time.RFC3339), message),
	)

	if len(m.errors) > 10 {
		m.errors = m.errors[1:]
	}
}

// Errors returns storage status and recent error messages.
func (m *Monitor) Errors() (healthy bool, messages []string) {
	m.errorsLock.RLock()
	defer m.errorsLock.RUnlock()

	return m.healthy, append([]string(nil), m.errors...)
}
