package store

import (
	"context"
	"sync"

	api "github.com/selfmon/selfmon/lib-selfmon"
)

// Memory is the backend that keeps collections on memory.
// It is used for tests, and for a dry run with the "memory:" store.
type Memory struct {
	sync.Mutex

	checks    []api.CheckResult
	incidents []api.Incident
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) String() string {
	return "memory:"
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) LoadChecks(ctx context.Context) ([]api.CheckResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.Lock()
	defer m.Unlock()

	return append([]api.CheckResult(nil), m.checks...), nil
}

func (m *Memory) SaveChecks(ctx context.Context, rs []api.CheckResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.Lock()
	defer m.Unlock()

	m.checks = append([]api.CheckResult(nil), rs...)
	return nil
}

func (m *Memory) LoadIncidents(ctx context.Context) ([]api.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.Lock()
	defer m.Unlock()

	is := make([]api.Incident, len(m.incidents))
	for i, x := range m.incidents {
		is[i] = copyIncident(x)
	}
	return is, nil
}

func (m *Memory) SaveIncidents(ctx context.Context, is []api.Incident) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.Lock()
	defer m.Unlock()

	m.incidents = make([]api.Incident, len(is))
	for i, x := range is {
		m.incidents[i] = copyIncident(x)
	}
	return nil
}

func copyIncident(i api.Incident) api.Incident {
	if i.ResolvedTime != nil {
		t := *i.ResolvedTime
		i.ResolvedTime = &t
	}
	return i
}
