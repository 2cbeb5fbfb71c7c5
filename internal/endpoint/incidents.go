package endpoint

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/selfmon/selfmon/internal/clock"
	api "github.com/selfmon/selfmon/lib-selfmon"
)

// DefaultIncidentsLimit is the number of incidents /api/incidents shows by default.
const DefaultIncidentsLimit = 10

type incidentView struct {
	api.Incident

	DurationText string `json:"duration_text"`
}

// newIncidentViews makes views of incidents in newest first order.
func newIncidentViews(is []api.Incident, now int64) []incidentView {
	vs := make([]incidentView, len(is))
	for i, x := range is {
		vs[len(is)-i-1] = incidentView{
			Incident:     x,
			DurationText: api.FormatDuration(x.CurrentDuration(now)),
		}
	}
	return vs
}

// IncidentsEndpoint is the http.HandlerFunc for /api/incidents?limit=N.
func IncidentsEndpoint(m Monitor, c clock.Clock, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w)

		limit, ok := positiveQuery(r, "limit", DefaultIncidentsLimit)
		if !ok {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}

		vs := newIncidentViews(m.Incidents(r.Context(), limit), c.Now().Unix())

		handleError(logger, "incidents", writeJSON(w, http.StatusOK, vs))
	}
}
