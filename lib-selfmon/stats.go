package selfmon

// Stats is the aggregated availability and performance numbers of a window.
type Stats struct {
	// UptimePercentage is the percentage of successful checks, rounded to 3 decimal places.
	UptimePercentage float64 `json:"uptime_percentage"`

	// AverageResponseTime is the mean response time of successful checks in milliseconds, rounded to 2 decimal places.
	AverageResponseTime float64 `json:"avg_response_time"`

	// P95ResponseTime is the 95th percentile response time of successful checks in milliseconds.
	// It is picked by rank without interpolation.
	P95ResponseTime float64 `json:"p95_response_time"`

	TotalChecks      int `json:"total_checks"`
	SuccessfulChecks int `json:"successful_checks"`
	FailedChecks     int `json:"failed_checks"`
}

// ChartData is a response time series for drawing graph.
type ChartData struct {
	// Labels are time-of-day strings like "15:04".
	Labels []string `json:"labels"`

	// Values are response times in milliseconds.
	Values []float64 `json:"values"`
}

// CurrentStatus is a summary of the latest state of the target.
type CurrentStatus struct {
	// Status is "up", "down", or "unknown" if the target never checked.
	Status string `json:"status"`

	Target string `json:"target"`

	LastCheck *CheckResult `json:"last_check"`

	OpenIncident *Incident `json:"open_incident"`
}
