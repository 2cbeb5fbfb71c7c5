// Package sqlite is the SQLite backend of the store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	api "github.com/selfmon/selfmon/lib-selfmon"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS checks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp INTEGER NOT NULL,
  date TEXT NOT NULL,
  status TEXT NOT NULL,
  response_time_ms REAL NOT NULL,
  status_code INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checks_timestamp ON checks(timestamp);

CREATE TABLE IF NOT EXISTS incidents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  start_time INTEGER NOT NULL,
  start_date TEXT NOT NULL,
  last_seen INTEGER NOT NULL,
  reason TEXT NOT NULL,
  resolved INTEGER NOT NULL DEFAULT 0,
  resolved_time INTEGER,
  duration INTEGER NOT NULL DEFAULT 0
);
`

// DB is a SQLite database that has the checks table and the incidents table.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens the database and creates the schema if needed.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite allows only one writer. Sharing a single connection also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db: db, path: path}, nil
}

func (d *DB) String() string {
	return "sqlite:" + d.path
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) LoadChecks(ctx context.Context) ([]api.CheckResult, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT timestamp, date, status, response_time_ms, status_code
		FROM checks
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rs []api.CheckResult
	for rows.Next() {
		var r api.CheckResult
		var status string
		if err := rows.Scan(&r.Timestamp, &r.Date, &status, &r.ResponseTime, &r.StatusCode); err != nil {
			return nil, err
		}
		if r.Status, err = api.ParseStatus(status); err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return rs, rows.Err()
}

// SaveChecks replaces all checks in a transaction.
func (d *DB) SaveChecks(ctx context.Context, rs []api.CheckResult) error {
	return d.replace(ctx, "checks", `
		INSERT INTO checks (timestamp, date, status, response_time_ms, status_code)
		VALUES (?, ?, ?, ?, ?)
	`, len(rs), func(stmt *sql.Stmt, i int) error {
		r := rs[i]
		_, err := stmt.ExecContext(ctx, r.Timestamp, r.Date, r.Status.String(), r.ResponseTime, r.StatusCode)
		return err
	})
}

func (d *DB) LoadIncidents(ctx context.Context) ([]api.Incident, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT start_time, start_date, last_seen, reason, resolved, resolved_time, duration
		FROM incidents
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var is []api.Incident
	for rows.Next() {
		var i api.Incident
		var resolvedTime sql.NullInt64
		if err := rows.Scan(&i.StartTime, &i.StartDate, &i.LastSeen, &i.Reason, &i.Resolved, &resolvedTime, &i.Duration); err != nil {
			return nil, err
		}
		if resolvedTime.Valid {
			t := resolvedTime.Int64
			i.ResolvedTime = &t
		}
		is = append(is, i)
	}
	return is, rows.Err()
}

// SaveIncidents replaces all incidents in a transaction.
func (d *DB) SaveIncidents(ctx context.Context, is []api.Incident) error {
	return d.replace(ctx, "incidents", `
		INSERT INTO incidents (start_time, start_date, last_seen, reason, resolved, resolved_time, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, len(is), func(stmt *sql.Stmt, n int) error {
		i := is[n]
		var resolvedTime sql.NullInt64
		if i.ResolvedTime != nil {
			resolvedTime = sql.NullInt64{Int64: *i.ResolvedTime, Valid: true}
		}
		_, err := stmt.ExecContext(ctx, i.StartTime, i.StartDate, i.LastSeen, i.Reason, i.Resolved, resolvedTime, i.Duration)
		return err
	})
}

func (d *DB) replace(ctx context.Context, table, insert string, n int, exec func(*sql.Stmt, int) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}
