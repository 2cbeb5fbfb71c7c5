package store_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/selfmon/selfmon/internal/store"
)

func TestMemory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := store.NewMemory()

	if err := m.SaveIncidents(ctx, sampleIncidents); err != nil {
		t.Fatalf("failed to save: %s", err)
	}

	is, err := m.LoadIncidents(ctx)
	if err != nil {
		t.Fatalf("failed to load: %s", err)
	}
	if diff := cmp.Diff(sampleIncidents, is); diff != "" {
		t.Fatalf("unexpected incidents:\n%s", diff)
	}

	*is[0].ResolvedTime = 0
	is[1].Reason = "modified"

	again, err := m.LoadIncidents(ctx)
	if err != nil {
		t.Fatalf("failed to load: %s", err)
	}
	if diff := cmp.Diff(sampleIncidents, again); diff != "" {
		t.Errorf("stored incidents changed through a loaded copy:\n%s", diff)
	}
}
