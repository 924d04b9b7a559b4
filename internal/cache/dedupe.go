package cache

import (
	"context"
	"time"
)

const (
	claimValue = "processing"
	doneValue  = "done"

	DefaultClaimTTL = time.Minute
)

// Deduper remembers which order events were already settled so redelivered
// messages skip the database. It is advisory: a miss only costs one idempotent
// settlement attempt.
//
// TTL bounds the done marker. ClaimTTL bounds the in-flight marker and must
// stay short: a worker that dies while holding a claim blocks redeliveries of
// that order until the claim expires.
type Deduper struct {
	Store    Store
	TTL      time.Duration
	ClaimTTL time.Duration
	Prefix   string
}

func (d *Deduper) claimTTL() time.Duration {
	ttl := d.ClaimTTL
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	if d.TTL > 0 && d.TTL < ttl {
		ttl = d.TTL
	}
	return ttl
}

func (d *Deduper) key(id string) string {
	prefix := d.Prefix
	if prefix == "" {
		prefix = "kuberafi:settled:"
	}
	return prefix + id
}

// Claim reserves id for one worker. It returns false when id is done or held
// by another worker.
func (d *Deduper) Claim(ctx context.Context, id string) (bool, error) {
	if d == nil || d.Store == nil || id == "" {
		return true, nil
	}
	return d.Store.SetIfAbsent(ctx, d.key(id), []byte(claimValue), d.claimTTL())
}

func (d *Deduper) Done(ctx context.Context, id string) error {
	if d == nil || d.Store == nil || id == "" {
		return nil
	}
	return d.Store.Set(ctx, d.key(id), []byte(doneValue), d.TTL)
}

// Release drops a claim so the next delivery can retry.
func (d *Deduper) Release(ctx context.Context, id string) error {
	if d == nil || d.Store == nil || id == "" {
		return nil
	}
	return d.Store.Delete(ctx, d.key(id))
}

func (d *Deduper) IsDone(ctx context.Context, id string) (bool, error) {
	if d == nil || d.Store == nil || id == "" {
		return false, nil
	}
	v, found, err := d.Store.Get(ctx, d.key(id))
	if err != nil || !found {
		return false, err
	}
	return string(v) == doneValue, nil
}
