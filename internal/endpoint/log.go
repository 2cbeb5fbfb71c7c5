package endpoint

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/selfmon/selfmon/internal/clock"
	api "github.com/selfmon/selfmon/lib-selfmon"
	"github.com/xuri/excelize/v2"
)

// DefaultLogsLimit is the number of checks /api/logs shows by default.
const DefaultLogsLimit = 100

// LogJSONEndpoint is the http.HandlerFunc for /api/logs?limit=N.
// The checks are in newest first order.
func LogJSONEndpoint(m Monitor, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowCORS(w)

		limit, ok := positiveQuery(r, "limit", DefaultLogsLimit)
		if !ok {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}

		rs := m.Logs(r.Context(), limit)
		reversed := make([]api.CheckResult, len(rs))
		for i, x := range rs {
			reversed[len(rs)-i-1] = x
		}

		handleError(logger, "logs", writeJSON(w, http.StatusOK, reversed))
	}
}

// LogCSVEndpoint is the http.HandlerFunc for /api/logs.csv.
// It exports the whole log in chronological order.
func LogCSVEndpoint(m Monitor, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=UTF-8")
		w.Header().Set("Content-Disposition", `attachment; filename="uptime-logs.csv"`)

		handleError(logger, "logs.csv", ToCSV(w, m.Logs(r.Context(), 0)))
	}
}

// ToCSV writes checks as CSV.
func ToCSV(w io.Writer, rs []api.CheckResult) error {
	c := csv.NewWriter(w)

	err := c.Write([]string{"timestamp", "date", "status", "response_time_ms", "status_code"})
	if err != nil {
		return err
	}

	for _, r := range rs {
		err := c.Write([]string{
			strconv.FormatInt(r.Timestamp, 10),
			r.Date,
			r.Status.String(),
			strconv.FormatFloat(r.ResponseTime, 'f', 2, 64),
			strconv.Itoa(r.StatusCode),
		})
		if err != nil {
			return err
		}
	}

	c.Flush()

	return c.Error()
}

// LogXlsxEndpoint is the http.HandlerFunc for /api/logs.xlsx.
func LogXlsxEndpoint(m Monitor, c clock.Clock, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="uptime-logs.xlsx"`)

		now := c.Now().In(m.Location())

		handleError(logger, "logs.xlsx", ToXlsx(w, m.Logs(r.Context(), 0), now))
	}
}

func excelPos(x, y int) string {
	pos, err := excelize.CoordinatesToCellName(x+1, y+1)
	if err != nil {
		panic(err)
	}
	return pos
}

// ToXlsx writes checks as an Excel sheet.
// The dates are rendered in the location of createdAt.
func ToXlsx(w io.Writer, rs []api.CheckResult, createdAt time.Time) error {
	const sheet = "checks"

	xlsx := excelize.NewFile()
	defer xlsx.Close()
	xlsx.SetSheetName("Sheet1", sheet)

	xlsx.SetAppProps(&excelize.AppProperties{
		Application: "selfmon",
	})
	xlsx.SetDocProps(&excelize.DocProperties{
		Created:        createdAt.Format(time.RFC3339),
		Modified:       createdAt.Format(time.RFC3339),
		Creator:        "selfmon",
		LastModifiedBy: "selfmon",
	})

	zone, _ := createdAt.Zone()
	xlsx.SetCellStr(sheet, "A1", fmt.Sprintf("time (%s)", zone))
	xlsx.SetCellStr(sheet, "B1", "status")
	xlsx.SetCellStr(sheet, "C1", "response time")
	xlsx.SetCellStr(sheet, "D1", "status code")

	colors := map[api.Status]string{
		api.StatusUp:   "89C923",
		api.StatusDown: "FF2D00",
	}

	datefmt := "yyyy-mm-dd hh:mm:ss"
	latencyfmt := "#,##0.00 \"ms\""

	styles := make(map[string]int)
	style := func(color string, border int, format *string) int {
		key := fmt.Sprintf("%s/%d/%v", color, border, format != nil)
		if format != nil {
			key += "/" + *format
		}
		if id, ok := styles[key]; ok {
			return id
		}
		id, _ := xlsx.NewStyle(&excelize.Style{
			CustomNumFmt: format,
			Border:       []excelize.Border{{Type: "bottom", Style: border, Color: color}},
		})
		styles[key] = id
		return id
	}

	setValue := func(x, y int, value interface{}, sid int) {
		pos := excelPos(x, y)
		xlsx.SetCellValue(sheet, pos, value)
		xlsx.SetCellStyle(sheet, pos, pos, sid)
	}

	for i, r := range rs {
		row := i + 1
		color := colors[r.Status]

		setValue(0, row, r.Time().In(createdAt.Location()), style(color, 1, &datefmt))
		setValue(1, row, r.Status.String(), style(color, 5, nil))
		setValue(2, row, r.ResponseTime, style(color, 1, &latencyfmt))
		setValue(3, row, r.StatusCode, style(color, 1, nil))
	}

	xlsx.SetColWidth(sheet, "A", "A", 20)
	xlsx.SetColWidth(sheet, "C", "C", 15)
	xlsx.SetColWidth(sheet, "D", "D", 12)

	return xlsx.Write(w)
}
