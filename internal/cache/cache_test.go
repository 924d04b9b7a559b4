package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if err := s.Set(ctx, "a", []byte("1"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, ok, _ := s.Get(ctx, "a"); !ok || string(v) != "1" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatalf("expected expiry")
	}
}

func TestMemoryStoreSetIfAbsent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ok, _ := s.SetIfAbsent(ctx, "k", []byte("x"), 0)
	if !ok {
		t.Fatalf("first claim should win")
	}
	ok, _ = s.SetIfAbsent(ctx, "k", []byte("y"), 0)
	if ok {
		t.Fatalf("second claim should lose")
	}
	_ = s.Delete(ctx, "k")
	ok, _ = s.SetIfAbsent(ctx, "k", []byte("z"), 0)
	if !ok {
		t.Fatalf("claim after delete should win")
	}
}

func TestDeduperLifecycle(t *testing.T) {
	d := &Deduper{Store: NewMemoryStore(), TTL: time.Hour}
	ctx := context.Background()

	ok, err := d.Claim(ctx, "evt-1")
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if ok, _ := d.Claim(ctx, "evt-1"); ok {
		t.Fatalf("duplicate claim should fail")
	}
	if done, _ := d.IsDone(ctx, "evt-1"); done {
		t.Fatalf("claimed is not done")
	}
	if err := d.Done(ctx, "evt-1"); err != nil {
		t.Fatalf("done: %v", err)
	}
	if done, _ := d.IsDone(ctx, "evt-1"); !done {
		t.Fatalf("expected done")
	}

	_, _ = d.Claim(ctx, "evt-2")
	_ = d.Release(ctx, "evt-2")
	if ok, _ := d.Claim(ctx, "evt-2"); !ok {
		t.Fatalf("released claim should be claimable")
	}
}

func TestDeduperClaimExpiresBeforeDone(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	d := &Deduper{Store: store, TTL: 24 * time.Hour, ClaimTTL: time.Minute}
	ctx := context.Background()

	if ok, _ := d.Claim(ctx, "9"); !ok {
		t.Fatalf("first claim should win")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := d.Claim(ctx, "9"); !ok {
		t.Fatalf("abandoned claim should expire after ClaimTTL")
	}
	if err := d.Done(ctx, "9"); err != nil {
		t.Fatalf("done: %v", err)
	}
	now = now.Add(2 * time.Hour)
	if done, _ := d.IsDone(ctx, "9"); !done {
		t.Fatalf("done marker should keep the long ttl")
	}
}

func TestDeduperClaimTTLDefaults(t *testing.T) {
	cases := []struct {
		d    Deduper
		want time.Duration
	}{
		{Deduper{TTL: 24 * time.Hour}, DefaultClaimTTL},
		{Deduper{TTL: 24 * time.Hour, ClaimTTL: 90 * time.Second}, 90 * time.Second},
		{Deduper{TTL: 10 * time.Second}, 10 * time.Second},
		{Deduper{}, DefaultClaimTTL},
	}
	for i, tc := range cases {
		if got := tc.d.claimTTL(); got != tc.want {
			t.Fatalf("case %d: claimTTL=%s want %s", i, got, tc.want)
		}
	}
}

func TestNilDeduperAllowsEverything(t *testing.T) {
	var d *Deduper
	ok, err := d.Claim(context.Background(), "x")
	if err != nil || !ok {
		t.Fatalf("nil deduper should allow")
	}
}
