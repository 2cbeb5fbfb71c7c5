package checklog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/selfmon/selfmon/internal/checklog"
	"github.com/selfmon/selfmon/internal/monerr"
	"github.com/selfmon/selfmon/internal/store"
	api "github.com/selfmon/selfmon/lib-selfmon"
)

type flakyStore struct {
	*store.Memory
	failures int
}

func (s *flakyStore) SaveChecks(ctx context.Context, rs []api.CheckResult) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("write failed")
	}
	return s.Memory.SaveChecks(ctx, rs)
}

func check(ts int64) api.CheckResult {
	return api.CheckResult{
		Timestamp:    ts,
		Date:         api.FormatDate(ts, time.UTC),
		Status:       api.StatusUp,
		ResponseTime: 10,
		StatusCode:   200,
	}
}

func timestamps(rs []api.CheckResult) []int64 {
	ts := make([]int64, len(rs))
	for i, r := range rs {
		ts[i] = r.Timestamp
	}
	return ts
}

func TestLog_Append_retention(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemory()
	l := checklog.New(s, nil, 0, zerolog.Nop())

	now := time.Unix(1700000000, 0)
	retention := int64(checklog.DefaultRetention / time.Second)

	s.SaveChecks(ctx, []api.CheckResult{
		check(now.Unix() - retention - 100),
		check(now.Unix() - retention),
		check(now.Unix() - retention + 1),
		check(now.Unix() - 60),
	})

	if err := l.Append(ctx, check(now.Unix()), now); err != nil {
		t.Fatalf("failed to append: %s", err)
	}

	expected := []int64{now.Unix() - retention + 1, now.Unix() - 60, now.Unix()}
	if diff := cmp.Diff(expected, timestamps(l.Read(ctx, 0))); diff != "" {
		t.Errorf("unexpected log:\n%s", diff)
	}
}

func TestLog_Append_order(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := checklog.New(store.NewMemory(), nil, time.Hour, zerolog.Nop())

	now := time.Unix(1700000000, 0)
	for _, ts := range []int64{100, 200, 150, 300} {
		if err := l.Append(ctx, check(now.Unix()-1000+ts), now); err != nil {
			t.Fatalf("failed to append: %s", err)
		}
	}

	base := now.Unix() - 1000
	expected := []int64{base + 100, base + 150, base + 200, base + 300}
	if diff := cmp.Diff(expected, timestamps(l.Read(ctx, 0))); diff != "" {
		t.Errorf("unexpected log:\n%s", diff)
	}
}

func TestInsert(t *testing.T) {
	tests := []struct {
		Name   string
		Input  []int64
		Insert int64
		Output []int64
	}{
		{"empty", nil, 10, []int64{10}},
		{"last", []int64{1, 2, 3}, 4, []int64{1, 2, 3, 4}},
		{"first", []int64{2, 3}, 1, []int64{1, 2, 3}},
		{"middle", []int64{1, 3, 5}, 4, []int64{1, 3, 4, 5}},
		{"same", []int64{1, 3, 3, 5}, 3, []int64{1, 3, 3, 3, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			var rs []api.CheckResult
			for _, ts := range tt.Input {
				rs = append(rs, check(ts))
			}

			rs = checklog.Insert(rs, check(tt.Insert))

			if diff := cmp.Diff(tt.Output, timestamps(rs)); diff != "" {
				t.Errorf("unexpected order:\n%s", diff)
			}
		})
	}
}

func TestInsert_stable(t *testing.T) {
	first := check(100)
	second := check(100)
	second.Status = api.StatusDown
	second.StatusCode = 500

	rs := checklog.Insert([]api.CheckResult{check(50), first, check(200)}, second)

	if rs[1].Status != api.StatusUp || rs[2].Status != api.StatusDown {
		t.Errorf("a result with the same timestamp should be placed after the existing one: %v", rs)
	}
}

func TestLog_Read(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := store.NewMemory()
	l := checklog.New(s, nil, 0, zerolog.Nop())

	if rs := l.Read(ctx, 0); len(rs) != 0 {
		t.Errorf("expected empty log but got %v", rs)
	}
	if r := l.Latest(ctx); r != nil {
		t.Errorf("expected nil but got %v", r)
	}

	s.SaveChecks(ctx, []api.CheckResult{check(1), check(2), check(3), check(4)})

	tests := []struct {
		Limit  int
		Expect []int64
	}{
		{0, []int64{1, 2, 3, 4}},
		{-1, []int64{1, 2, 3, 4}},
		{2, []int64{3, 4}},
		{4, []int64{1, 2, 3, 4}},
		{10, []int64{1, 2, 3, 4}},
	}

	for _, tt := range tests {
		if diff := cmp.Diff(tt.Expect, timestamps(l.Read(ctx, tt.Limit))); diff != "" {
			t.Errorf("limit=%d: unexpected result:\n%s", tt.Limit, diff)
		}
	}

	if r := l.Latest(ctx); r == nil || r.Timestamp != 4 {
		t.Errorf("unexpected latest: %v", r)
	}
}

func TestLog_Append_retry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	tests := []struct {
		Failures int
		Error    bool
		Length   int
	}{
		{0, false, 1},
		{1, false, 1},
		{2, true, 0},
	}

	for _, tt := range tests {
		s := &flakyStore{Memory: store.NewMemory(), failures: tt.Failures}
		l := checklog.New(s, nil, 0, zerolog.Nop())

		err := l.Append(ctx, check(now.Unix()), now)
		if tt.Error {
			if !errors.Is(err, monerr.ErrStorage) {
				t.Errorf("failures=%d: expected storage error but got %v", tt.Failures, err)
			}
		} else if err != nil {
			t.Errorf("failures=%d: unexpected error: %s", tt.Failures, err)
		}

		if rs := l.Read(ctx, 0); len(rs) != tt.Length {
			t.Errorf("failures=%d: expected %d results but got %d", tt.Failures, tt.Length, len(rs))
		}
	}
}

func TestLog_corruptedFile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, store.ChecksFile), []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to prepare file: %s", err)
	}

	s, err := store.NewFiles(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open store: %s", err)
	}
	l := checklog.New(s, nil, 0, zerolog.Nop())

	if rs := l.Read(ctx, 0); len(rs) != 0 {
		t.Errorf("expected empty log but got %v", rs)
	}

	if err := os.WriteFile(filepath.Join(dir, store.ChecksFile), []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to prepare file: %s", err)
	}

	now := time.Unix(1700000000, 0)
	if err := l.Append(ctx, check(now.Unix()), now); err != nil {
		t.Fatalf("failed to append: %s", err)
	}

	if diff := cmp.Diff([]int64{now.Unix()}, timestamps(l.Read(ctx, 0))); diff != "" {
		t.Errorf("unexpected log:\n%s", diff)
	}
}

func TestLog_Append_concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := checklog.New(store.NewMemory(), nil, 0, zerolog.Nop())
	now := time.Unix(1700000000, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := l.Append(ctx, check(now.Unix()-int64(i)), now); err != nil {
				t.Errorf("failed to append: %s", err)
			}
		}(i)
	}
	wg.Wait()

	if rs := l.Read(ctx, 0); len(rs) != 50 {
		t.Errorf("expected 50 results but got %d", len(rs))
	}
}

func TestPrune(t *testing.T) {
	rs := []api.CheckResult{check(1), check(5), check(3), check(10)}

	if diff := cmp.Diff([]int64{5, 10}, timestamps(checklog.Prune(rs, 3))); diff != "" {
		t.Errorf("unexpected result:\n%s", diff)
	}
}
