package endpoint

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/selfmon/selfmon/internal/stats"
)

// StatsEndpoint is the http.HandlerFunc for /api/stats?days=N.
func StatsEndpoint(m Monitor, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w)

		days, ok := positiveQuery(r, "days", stats.DefaultDays)
		if !ok {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}

		handleError(logger, "stats", writeJSON(w, http.StatusOK, m.Stats(r.Context(), days)))
	}
}

// ChartEndpoint is the http.HandlerFunc for /api/chart-data?hours=N.
func ChartEndpoint(m Monitor, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w)

		hours, ok := positiveQuery(r, "hours", stats.DefaultHours)
		if !ok {
			writeError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}

		handleError(logger, "chart-data", writeJSON(w, http.StatusOK, m.Chart(r.Context(), hours)))
	}
}

// StatusJSONEndpoint is the http.HandlerFunc for /api/status.
func StatusJSONEndpoint(m Monitor, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w)

		handleError(logger, "status", writeJSON(w, http.StatusOK, m.Status(r.Context())))
	}
}
