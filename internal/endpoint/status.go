package endpoint

import (
	_ "embed"
	"net/http"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/selfmon/selfmon/internal/clock"
	api "github.com/selfmon/selfmon/lib-selfmon"
)

//go:embed templates/status.txt
var statusTextTemplate string

type statusWindow struct {
	Label string
	Stats api.Stats
}

type statusReport struct {
	api.CurrentStatus

	Now       time.Time
	Windows   []statusWindow
	Incidents []incidentView
}

func newStatusTemplate(c clock.Clock, loc func() *time.Location) *template.Template {
	return template.Must(template.New("status.txt").Funcs(template.FuncMap{
		"date": func(t time.Time) string {
			return t.In(loc()).Format(api.DateLayout)
		},
		"reltime": func(t time.Time) string {
			return humanize.RelTime(t, c.Now(), "ago", "from now")
		},
		"duration": func(i *api.Incident) string {
			return api.FormatDuration(i.CurrentDuration(c.Now().Unix()))
		},
	}).Parse(statusTextTemplate))
}

// StatusTextEndpoint is the http.HandlerFunc for /status.txt.
func StatusTextEndpoint(m Monitor, c clock.Clock, logger zerolog.Logger) http.HandlerFunc {
	tmpl := newStatusTemplate(c, m.Location)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=UTF-8")

		ctx := r.Context()
		now := c.Now()

		report := statusReport{
			CurrentStatus: m.Status(ctx),
			Now:           now,
			Incidents:     newIncidentViews(m.Incidents(ctx, DefaultIncidentsLimit), now.Unix()),
		}
		for _, win := range []struct {
			Label string
			Days  int
		}{{"24h", 1}, {"7d", 7}, {"30d", 30}} {
			report.Windows = append(report.Windows, statusWindow{win.Label, m.Stats(ctx, win.Days)})
		}

		handleError(logger, "status.txt", tmpl.Execute(w, report))
	}
}
