package cronrunner

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRepublisher struct {
	calls     int
	olderThan time.Duration
	limit     int
	err       error
}

func (f *fakeRepublisher) RepublishStuck(_ context.Context, olderThan time.Duration, limit int) (int, error) {
	f.calls++
	f.olderThan = olderThan
	f.limit = limit
	return 0, f.err
}

type flags map[string]bool

func (f flags) IsEnabled(_ context.Context, key string, _ bool) bool { return f[key] }

func TestReconcilerDefaults(t *testing.T) {
	orders := &fakeRepublisher{}
	r := &Reconciler{Orders: orders}
	r.Run(context.Background())
	if orders.calls != 1 {
		t.Fatalf("calls=%d", orders.calls)
	}
	if orders.olderThan != 2*time.Minute || orders.limit != 100 {
		t.Fatalf("olderThan=%s limit=%d", orders.olderThan, orders.limit)
	}
}

func TestReconcilerSwitchedOff(t *testing.T) {
	orders := &fakeRepublisher{}
	r := &Reconciler{Orders: orders, Flags: flags{"reconciler": false}, FlagKey: "reconciler"}
	r.Run(context.Background())
	if orders.calls != 0 {
		t.Fatalf("expected no sweep, got %d", orders.calls)
	}
	r.Flags = flags{"reconciler": true}
	orders.err = errors.New("db down")
	r.Run(context.Background())
	if orders.calls != 1 {
		t.Fatalf("expected one sweep, got %d", orders.calls)
	}
}

func TestRunnerAcceptsSpecs(t *testing.T) {
	r := New(nil, context.Background())
	for _, spec := range []string{"@every 1m", "*/30 * * * * *", "*/5 * * * *"} {
		if _, err := r.Add(spec, func(context.Context) {}); err != nil {
			t.Fatalf("spec %q: %v", spec, err)
		}
	}
	if r.Entries() != 3 {
		t.Fatalf("entries=%d", r.Entries())
	}
}
