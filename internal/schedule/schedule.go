// Package schedule decides when the periodic jobs run.
package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	DefaultCheckSchedule   = Schedule(IntervalSchedule{5 * time.Minute})
	DefaultResolveSchedule = Schedule(IntervalSchedule{5 * time.Minute})

	// MinInterval is the shortest interval accepted by ParseInterval.
	MinInterval = time.Second
)

// Schedule is a cron.Schedule that can be printed and configured.
type Schedule interface {
	cron.Schedule
	fmt.Stringer

	// RunAtStart reports the job should run once when the scheduler started.
	RunAtStart() bool
}

// Parse parses an interval like "5m", or a cron spec like "*/5 * * * *" or "@hourly".
func Parse(spec string) (Schedule, error) {
	if s, err := ParseInterval(spec); err == nil {
		return s, nil
	}

	return ParseCron(spec)
}

// IntervalSchedule runs a job every Interval.
type IntervalSchedule struct {
	Interval time.Duration
}

func ParseInterval(spec string) (IntervalSchedule, error) {
	d, err := time.ParseDuration(strings.TrimSpace(spec))
	if err != nil {
		return IntervalSchedule{}, err
	}
	if d < MinInterval {
		return IntervalSchedule{}, fmt.Errorf("interval is too short: %s", d)
	}
	return IntervalSchedule{d}, nil
}

func (s IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

func (s IntervalSchedule) String() string {
	return s.Interval.String()
}

func (s IntervalSchedule) RunAtStart() bool {
	return true
}

// CronSchedule runs a job at the times that matches a cron spec.
type CronSchedule struct {
	spec     string
	schedule cron.Schedule
}

var cronDelimiter = regexp.MustCompile("[ \t]+")

// ParseCron parses a cron spec.
// The day of week field can be omitted.
func ParseCron(spec string) (CronSchedule, error) {
	switch spec {
	case "@yearly", "@annually":
		spec = "0 0 1 1 ?"
	case "@monthly":
		spec = "0 0 1 * ?"
	case "@weekly":
		spec = "0 0 * * 0"
	case "@daily":
		spec = "0 0 * * ?"
	case "@hourly":
		spec = "0 * * * ?"
	default:
		ss := cronDelimiter.Split(strings.TrimSpace(spec), -1)
		if len(ss) == 4 {
			ss = append(ss, "?")
		}
		spec = strings.Join(ss, " ")
	}

	s, err := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.DowOptional).Parse(spec)
	if err != nil {
		return CronSchedule{}, err
	}
	return CronSchedule{
		spec:     spec,
		schedule: s,
	}, nil
}

func (s CronSchedule) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

func (s CronSchedule) String() string {
	return s.spec
}

func (s CronSchedule) RunAtStart() bool {
	return false
}
