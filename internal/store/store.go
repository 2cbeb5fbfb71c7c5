// Package store persists the check log and the incident list.
//
// Every backend loads and replaces a whole collection at once.
// Callers serialize their load-mutate-save cycles with a Guard.
package store

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/selfmon/selfmon/internal/monerr"
	"github.com/selfmon/selfmon/internal/store/sqlite"
	api "github.com/selfmon/selfmon/lib-selfmon"
)

var (
	// ErrCorrupted means the persisted collection could not be decoded.
	// The file backend moves the broken file aside before it returns this error,
	// so the next save starts a fresh collection.
	ErrCorrupted = errors.New("corrupted data")
)

// CheckLogStore loads and replaces the check log.
type CheckLogStore interface {
	LoadChecks(ctx context.Context) ([]api.CheckResult, error)
	SaveChecks(ctx context.Context, rs []api.CheckResult) error
}

// IncidentStore loads and replaces the incident list.
type IncidentStore interface {
	LoadIncidents(ctx context.Context) ([]api.Incident, error)
	SaveIncidents(ctx context.Context, is []api.Incident) error
}

// Backend is a storage that has both of collections.
type Backend interface {
	CheckLogStore
	IncidentStore
	io.Closer

	// String returns a description of the backend for logs.
	String() string
}

// Open opens a backend.
//
// dsn is "memory:" for the in-memory backend, "sqlite:<path>" for SQLite database,
// or a path to the data directory for the JSON files backend.
func Open(dsn string, logger zerolog.Logger) (Backend, error) {
	switch {
	case dsn == "memory:":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "sqlite:"):
		db, err := sqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
		if err != nil {
			return nil, monerr.New(monerr.ErrStorage, err, "failed to open database")
		}
		return db, nil
	case dsn == "":
		return nil, monerr.New(monerr.ErrConfig, nil, "store: data directory is required")
	default:
		return NewFiles(dsn, logger)
	}
}
