package selfmon

import (
	"time"
)

// DateLayout is the layout of the human readable dates in the check log and the incident list.
const DateLayout = "2006-01-02 15:04:05"

// FormatDate renders an epoch second in DateLayout.
func FormatDate(unix int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(unix, 0).In(loc).Format(DateLayout)
}

// CheckResult is a result of a single check.
type CheckResult struct {
	// Timestamp is the epoch second of the check.
	// This value is the source of truth for ordering and pruning.
	Timestamp int64 `json:"timestamp"`

	// Date is a rendering of Timestamp for humans.
	Date string `json:"date"`

	Status Status `json:"status"`

	// ResponseTime is the elapsed time in milliseconds, rounded to 2 decimal places.
	ResponseTime float64 `json:"response_time_ms"`

	// StatusCode is the HTTP status code, or 0 if the target did not respond.
	StatusCode int `json:"status_code"`
}

// Time returns Timestamp as time.Time.
func (r CheckResult) Time() time.Time {
	return time.Unix(r.Timestamp, 0)
}

// IsUp reports the check was successful.
func (r CheckResult) IsUp() bool {
	return r.Status == StatusUp
}
