package service

import (
	"context"
	"testing"

	"kuberafi/internal/testutil"
)

func TestSystemSettings_DefaultsAndToggle(t *testing.T) {
	fx := testutil.NewFixture(t)
	svc := &SystemSettingsService{Repo: fx.Store}
	ctx := context.Background()

	if err := svc.EnsureDefaultSwitches(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if svc.RejectOverdraft(ctx) {
		t.Fatalf("overdraft rejection should default off")
	}
	if !svc.IsEnabled(ctx, FeatureReconciler, false) {
		t.Fatalf("reconciler should default on")
	}

	if err := svc.SetEnabled(ctx, FeatureLedgerRejectOverdraft, true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !svc.RejectOverdraft(ctx) {
		t.Fatalf("expected overdraft rejection on")
	}

	// Re-seeding must not flip an operator choice back.
	if err := svc.EnsureDefaultSwitches(ctx); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if !svc.RejectOverdraft(ctx) {
		t.Fatalf("ensure overwrote stored switch")
	}

	items, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != len(DefaultFeatureSwitches()) {
		t.Fatalf("expected %d settings, got %d", len(DefaultFeatureSwitches()), len(items))
	}
}

func TestSystemSettings_NilSafe(t *testing.T) {
	var svc *SystemSettingsService
	if !svc.IsEnabled(context.Background(), "x", true) {
		t.Fatalf("nil service should return fallback")
	}
}
