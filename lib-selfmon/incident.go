package selfmon

import (
	"fmt"
	"math"
)

// Incident is a period of continuous, or merged, failure of the target.
type Incident struct {
	// StartTime is the epoch second of the first failure.
	StartTime int64 `json:"start_time"`

	// StartDate is a rendering of StartTime for humans.
	StartDate string `json:"start_date"`

	// LastSeen is the epoch second of the latest failure that attributed to this incident.
	LastSeen int64 `json:"last_seen"`

	// Reason is the description of the first failure.
	// It won't be updated when the incident extended.
	Reason string `json:"reason"`

	Resolved bool `json:"resolved"`

	// ResolvedTime is the epoch second of the resolution, or nil while the incident is open.
	ResolvedTime *int64 `json:"resolved_time"`

	// Duration is the length of the incident in seconds.
	Duration int64 `json:"duration"`
}

// IsOpen reports the incident is not resolved yet.
func (i Incident) IsOpen() bool {
	return !i.Resolved
}

// CurrentDuration returns the length of the incident for display only.
//
// It is Duration, except for an open incident that has only one failure yet.
// Its Duration is zero, so the time from StartTime to now is returned instead.
// The value is never stored; the stored Duration of an open incident is LastSeen - StartTime.
func (i Incident) CurrentDuration(now int64) int64 {
	if i.Duration > 0 || i.Resolved {
		return i.Duration
	}
	return now - i.StartTime
}

// FormatDuration makes a short text like "42s", "5m", or "1.5h" from seconds.
func FormatDuration(seconds int64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm", int64(math.Round(float64(seconds)/60)))
	default:
		return fmt.Sprintf("%sh", trimFloat(math.Round(float64(seconds)/360)/10))
	}
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.1f", f)
	if len(s) > 2 && s[len(s)-2:] == ".0" {
		return s[:len(s)-2]
	}
	return s
}
