package queue

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"kuberafi/internal/cache"
	"kuberafi/internal/models"
	"kuberafi/internal/paymentmethod"
	"kuberafi/internal/repository"
	"kuberafi/internal/settlement"
)

type Settler interface {
	SettleOrderWithRetry(ctx context.Context, orderID uint64) (settlement.Result, error)
}

// Worker settles orders from OrderCompleted events. It acknowledges every
// event it has dealt with; orders left in processing are picked up again by
// the reconciler.
type Worker struct {
	Settler Settler
	Dedupe  *cache.Deduper
	Logger  *zap.Logger
}

func (w *Worker) Handle(ctx context.Context, evt OrderCompleted) error {
	if evt.OrderID == 0 {
		w.warn("order event without order id", evt, nil)
		return nil
	}
	key := strconv.FormatUint(evt.OrderID, 10)

	done, err := w.Dedupe.IsDone(ctx, key)
	if err != nil {
		// The cache is advisory; fall through to the database guard.
		w.warn("dedupe lookup failed", evt, err)
	}
	if done {
		w.debug("order already settled, skipping redelivery", evt)
		return nil
	}
	claimed, err := w.Dedupe.Claim(ctx, key)
	if err != nil {
		w.warn("dedupe claim failed", evt, err)
		claimed = true
	}
	if !claimed {
		w.debug("order claimed by another worker", evt)
		return nil
	}

	res, err := w.Settler.SettleOrderWithRetry(ctx, evt.OrderID)
	switch {
	case err == nil:
		if err := w.Dedupe.Done(ctx, key); err != nil {
			w.warn("dedupe mark failed", evt, err)
		}
		if w.Logger != nil {
			w.Logger.Info("order event settled",
				zap.Uint64("order_id", evt.OrderID),
				zap.String("event_id", evt.EventID),
				zap.Bool("already_settled", res.AlreadySettled),
				zap.Int("attempts", res.Attempts),
			)
		}
		return nil
	case ctx.Err() != nil:
		_ = w.Dedupe.Release(context.Background(), key)
		return ctx.Err()
	case errors.Is(err, models.ErrInvalidStatusTransition),
		errors.Is(err, models.ErrInvalidOrder),
		errors.Is(err, repository.ErrNotFound):
		// Permanent: the order was cancelled, failed, malformed or never existed.
		if err := w.Dedupe.Done(ctx, key); err != nil {
			w.warn("dedupe mark failed", evt, err)
		}
		w.warn("order event dropped", evt, err)
		return nil
	case errors.Is(err, paymentmethod.ErrNoActivePaymentMethod):
		_ = w.Dedupe.Release(ctx, key)
		w.warn("order event waiting for payment method configuration", evt, err)
		return nil
	default:
		_ = w.Dedupe.Release(ctx, key)
		w.warn("order event left for reconciler", evt, err)
		return nil
	}
}

func (w *Worker) warn(msg string, evt OrderCompleted, err error) {
	if w.Logger == nil {
		return
	}
	w.Logger.Warn(msg, zap.Uint64("order_id", evt.OrderID), zap.String("event_id", evt.EventID), zap.Error(err))
}

func (w *Worker) debug(msg string, evt OrderCompleted) {
	if w.Logger == nil {
		return
	}
	w.Logger.Debug(msg, zap.Uint64("order_id", evt.OrderID), zap.String("event_id", evt.EventID))
}
