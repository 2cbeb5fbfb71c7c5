package endpoint

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/selfmon/selfmon/internal/clock"
	api "github.com/selfmon/selfmon/lib-selfmon"
)

// HealthzEndpoint is the http.HandlerFunc for /healthz.
//
// The first line is HEALTHY, or FAILURE if the latest storage operation failed.
// It is followed by the state of the target and the recent storage errors.
func HealthzEndpoint(m Monitor, c clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=UTF-8")

		healthy, messages := m.Errors()
		st := m.Status(r.Context())
		now := c.Now()

		if healthy {
			fmt.Fprintln(w, "HEALTHY")
		} else {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprintln(w, "FAILURE")
		}

		fmt.Fprintf(w, "target: %s\n", st.Target)

		if lc := st.LastCheck; lc != nil {
			fmt.Fprintf(w, "last check: %s, %s\n", lc.Status, humanize.RelTime(time.Unix(lc.Timestamp, 0), now, "ago", "from now"))
		} else {
			fmt.Fprintln(w, "last check: never")
		}

		if i := st.OpenIncident; i != nil {
			fmt.Fprintf(w, "open incident: %s since %s (%s)\n", i.Reason, i.StartDate, api.FormatDuration(i.CurrentDuration(now.Unix())))
		} else {
			fmt.Fprintln(w, "open incident: none")
		}

		for _, msg := range messages {
			fmt.Fprintf(w, "error: %s\n", msg)
		}
	}
}
