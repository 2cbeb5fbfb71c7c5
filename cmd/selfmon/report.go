package main

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/selfmon/selfmon/internal/clock"
	api "github.com/selfmon/selfmon/lib-selfmon"
)

func (cmd *SelfmonCommand) printJSON(v interface{}) (exitCode int) {
	enc := json.NewEncoder(cmd.OutStream)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(cmd.ErrStream, "error: %s\n", err)
		return 1
	}
	return 0
}

// RunStats prints the statistics of the last --days days.
func (cmd *SelfmonCommand) RunStats(ctx context.Context) (exitCode int) {
	m, backend, _, code := cmd.openOrReport(nil)
	if code != 0 {
		return code
	}
	defer backend.Close()

	return cmd.printJSON(m.Stats(ctx, cmd.Days))
}

type incidentReport struct {
	api.Incident
	DurationText string `json:"duration_text"`
}

// RunIncidents prints the last --limit incidents, newest first.
func (cmd *SelfmonCommand) RunIncidents(ctx context.Context) (exitCode int) {
	m, backend, _, code := cmd.openOrReport(nil)
	if code != 0 {
		return code
	}
	defer backend.Close()

	now := clock.System.Now().Unix()

	is := m.Incidents(ctx, cmd.Limit)
	rs := make([]incidentReport, len(is))
	for i, x := range is {
		rs[len(is)-i-1] = incidentReport{x, api.FormatDuration(x.CurrentDuration(now))}
	}

	return cmd.printJSON(rs)
}
