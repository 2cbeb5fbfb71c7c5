package store

import (
	"context"
	"errors"
	"time"

	"github.com/selfmon/selfmon/internal/monerr"
)

// DefaultTimeout is the limit of a single storage operation.
const DefaultTimeout = 5 * time.Second

// Guard serializes load-mutate-save cycles of a collection.
type Guard struct {
	sem     chan struct{}
	timeout time.Duration
}

// NewGuard makes a Guard.
// DefaultTimeout is used if timeout is zero or negative.
func NewGuard(timeout time.Duration) *Guard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guard{
		sem:     make(chan struct{}, 1),
		timeout: timeout,
	}
}

// Timeout returns the limit of each storage operation.
func (g *Guard) Timeout() time.Duration {
	return g.timeout
}

// Do waits for the guard and then calls fn while holding it.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return monerr.New(monerr.ErrStorage, ctx.Err(), "failed to acquire storage lock")
	}
	defer func() { <-g.sem }()

	return fn(ctx)
}

// Load calls load with the storage timeout.
func (g *Guard) Load(ctx context.Context, load func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	return asStorageError(load(ctx), "failed to load")
}

// Save calls save with the storage timeout, and retries once if it failed.
func (g *Guard) Save(ctx context.Context, save func(ctx context.Context) error) error {
	var err error
	for i := 0; i < 2; i++ {
		c, cancel := context.WithTimeout(ctx, g.timeout)
		err = save(c)
		cancel()

		if err == nil || ctx.Err() != nil {
			break
		}
	}
	return asStorageError(err, "failed to save")
}

func asStorageError(err error, message string) error {
	if err == nil || errors.Is(err, monerr.ErrStorage) {
		return err
	}
	return monerr.New(monerr.ErrStorage, err, "%s", message)
}
