package cache

import (
	"context"
	"time"
)

// Store is a small byte-value cache with TTLs. SetIfAbsent is the only
// primitive the settlement worker relies on for claiming an event.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}
