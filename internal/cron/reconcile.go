package cronrunner

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Republisher interface {
	RepublishStuck(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type Switch interface {
	IsEnabled(ctx context.Context, key string, fallback bool) bool
}

// Reconciler re-queues orders whose settlement event may have been lost.
type Reconciler struct {
	Orders     Republisher
	Flags      Switch
	FlagKey    string
	StuckAfter time.Duration
	BatchSize  int
	Logger     *zap.Logger
}

func (r *Reconciler) Run(ctx context.Context) {
	if r == nil || r.Orders == nil {
		return
	}
	if r.Flags != nil && r.FlagKey != "" && !r.Flags.IsEnabled(ctx, r.FlagKey, true) {
		return
	}
	stuckAfter := r.StuckAfter
	if stuckAfter <= 0 {
		stuckAfter = 2 * time.Minute
	}
	batch := r.BatchSize
	if batch <= 0 {
		batch = 100
	}
	n, err := r.Orders.RepublishStuck(ctx, stuckAfter, batch)
	if err != nil && r.Logger != nil {
		r.Logger.Warn("reconcile stuck orders failed", zap.Int("republished", n), zap.Error(err))
	}
}
