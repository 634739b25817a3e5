// Package cache is the optional result cache port. The engine is a pure
// function over its inputs, so caching lives entirely outside the core:
// callers inject a Store and the pipeline works identically when it is
// absent or unreachable.
package cache

import (
	"context"
	"time"
)

// Store is the injected cache port. Get reports (nil, false, nil) on a
// miss; implementations must never treat a miss as an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Noop satisfies Store while caching nothing. Used when no Redis address
// is configured.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Noop) Delete(context.Context, string) error { return nil }

func (Noop) Close() error { return nil }
