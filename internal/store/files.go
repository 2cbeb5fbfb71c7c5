package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/selfmon/selfmon/internal/monerr"
	api "github.com/selfmon/selfmon/lib-selfmon"
)

const (
	ChecksFile    = "uptime-logs.json"
	IncidentsFile = "uptime-incidents.json"
)

// LargeFileWarning is the size of a collection file to log a warning when loading.
var LargeFileWarning uint64 = 10 * 1024 * 1024

// Files is the backend that stores each collection as a JSON array file in a directory.
type Files struct {
	dir    string
	logger zerolog.Logger
}

// NewFiles makes a Files backend, creating the directory if not exists.
func NewFiles(dir string, logger zerolog.Logger) (*Files, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, monerr.New(monerr.ErrStorage, err, "failed to prepare data directory")
	}
	return &Files{
		dir:    dir,
		logger: logger,
	}, nil
}

func (f *Files) String() string {
	return "files:" + f.dir
}

func (f *Files) Close() error {
	return nil
}

func (f *Files) LoadChecks(ctx context.Context) ([]api.CheckResult, error) {
	var rs []api.CheckResult
	err := f.load(ctx, ChecksFile, &rs)
	return rs, err
}

func (f *Files) SaveChecks(ctx context.Context, rs []api.CheckResult) error {
	if rs == nil {
		rs = []api.CheckResult{}
	}
	return f.save(ctx, ChecksFile, rs)
}

func (f *Files) LoadIncidents(ctx context.Context) ([]api.Incident, error) {
	var is []api.Incident
	err := f.load(ctx, IncidentsFile, &is)
	return is, err
}

func (f *Files) SaveIncidents(ctx context.Context, is []api.Incident) error {
	if is == nil {
		is = []api.Incident{}
	}
	return f.save(ctx, IncidentsFile, is)
}

func (f *Files) load(ctx context.Context, name string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return monerr.New(monerr.ErrStorage, err, "failed to load %s", name)
	}

	path := filepath.Join(f.dir, name)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return monerr.New(monerr.ErrStorage, err, "failed to load %s", name)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if size := uint64(len(data)); size >= LargeFileWarning {
		f.logger.Warn().
			Str("file", path).
			Str("size", humanize.Bytes(size)).
			Msg("collection file is large")
	}

	if err := json.Unmarshal(data, v); err != nil {
		aside := path + ".corrupt"
		if rerr := os.Rename(path, aside); rerr != nil {
			f.logger.Error().Err(rerr).Str("file", path).Msg("failed to move corrupted file")
		} else {
			f.logger.Warn().Err(err).Str("file", path).Str("moved_to", aside).Msg("corrupted file moved aside")
		}
		return monerr.New(monerr.ErrStorage, ErrCorrupted, "%s", name)
	}

	return nil
}

func (f *Files) save(ctx context.Context, name string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return monerr.New(monerr.ErrStorage, err, "failed to save %s", name)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return monerr.New(monerr.ErrStorage, err, "failed to encode %s", name)
	}

	if err := writeFileAtomic(filepath.Join(f.dir, name), data); err != nil {
		return monerr.New(monerr.ErrStorage, err, "failed to save %s", name)
	}
	return nil
}

// writeFileAtomic writes data into a temporary file in the same directory and then renames it to path.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace: %w", err)
	}
	return nil
}
