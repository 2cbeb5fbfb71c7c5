// Package stats aggregates the check log into availability and performance numbers.
package stats

import (
	"math"
	"sort"
	"time"

	api "github.com/selfmon/selfmon/lib-selfmon"
)

const (
	DefaultDays  = 30
	DefaultHours = 24

	// ChartLabelLayout is the layout of the chart labels.
	ChartLabelLayout = "15:04"
)

// Compute aggregates results in the last days until now.
// DefaultDays is used if days is zero or negative.
//
// Only the results that have Timestamp after now-days are counted.
// All numbers are zero if there are no results in the window.
func Compute(rs []api.CheckResult, days int, now time.Time) api.Stats {
	if days <= 0 {
		days = DefaultDays
	}
	cutoff := now.Unix() - int64(days)*86400

	var s api.Stats
	var sum float64
	var times []float64

	for _, r := range rs {
		if r.Timestamp <= cutoff {
			continue
		}
		s.TotalChecks++
		if r.IsUp() {
			s.SuccessfulChecks++
			sum += r.ResponseTime
			times = append(times, r.ResponseTime)
		}
	}
	s.FailedChecks = s.TotalChecks - s.SuccessfulChecks

	if s.TotalChecks > 0 {
		s.UptimePercentage = Round(float64(s.SuccessfulChecks)/float64(s.TotalChecks)*100, 3)
	}
	if s.SuccessfulChecks > 0 {
		s.AverageResponseTime = Round(sum/float64(s.SuccessfulChecks), 2)
		s.P95ResponseTime = Percentile95(times)
	}

	return s
}

// Percentile95 picks the value at the index floor(0.95*n) of the sorted values, without interpolation.
// It returns 0 if values is empty. The values are sorted in place.
func Percentile95(values []float64) float64 {
	sort.Float64s(values)

	idx := len(values) * 95 / 100
	if idx >= len(values) {
		return 0
	}
	return values[idx]
}

// Chart makes a response time series of all results in the last hours until now.
// DefaultHours is used if hours is zero or negative.
//
// The labels are rendered in loc, or time.Local if loc is nil.
func Chart(rs []api.CheckResult, hours int, loc *time.Location, now time.Time) api.ChartData {
	if hours <= 0 {
		hours = DefaultHours
	}
	if loc == nil {
		loc = time.Local
	}
	cutoff := now.Unix() - int64(hours)*3600

	data := api.ChartData{
		Labels: []string{},
		Values: []float64{},
	}
	for _, r := range rs {
		if r.Timestamp <= cutoff {
			continue
		}
		data.Labels = append(data.Labels, time.Unix(r.Timestamp, 0).In(loc).Format(ChartLabelLayout))
		data.Values = append(data.Values, r.ResponseTime)
	}
	return data
}

// Round rounds x to digits decimal places, half away from zero.
func Round(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(x*p) / p
}
