package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"kuberafi/internal/metrics"
	"kuberafi/internal/models"
	"kuberafi/internal/queue"
	"kuberafi/internal/repository"
	"kuberafi/internal/settlement"
)

const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

var ErrNoSettler = errors.New("settlement mode has no backend")

type Settler interface {
	SettleOrderWithRetry(ctx context.Context, orderID uint64) (settlement.Result, error)
}

// CompleteResult reports what Complete did. In sync mode Settlement is set;
// in async mode EventID names the published event.
type CompleteResult struct {
	OrderID    uint64             `json:"order_id"`
	Mode       string             `json:"mode"`
	Status     string             `json:"status"`
	EventID    string             `json:"event_id,omitempty"`
	Settlement *settlement.Result `json:"settlement,omitempty"`
}

// Lifecycle drives order status changes outside settlement itself.
type Lifecycle struct {
	Repo      repository.OrderRepository
	Settler   Settler
	Publisher queue.Publisher
	Mode      string
	Metrics   *metrics.Registry
	Logger    *zap.Logger
	Now       func() time.Time
}

func (l *Lifecycle) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *Lifecycle) mode() string {
	if strings.EqualFold(strings.TrimSpace(l.Mode), ModeAsync) {
		return ModeAsync
	}
	return ModeSync
}

func (l *Lifecycle) Complete(ctx context.Context, orderID uint64) (CompleteResult, error) {
	if l.mode() == ModeAsync {
		return l.completeAsync(ctx, orderID)
	}
	if l.Settler == nil {
		return CompleteResult{}, ErrNoSettler
	}
	res, err := l.Settler.SettleOrderWithRetry(ctx, orderID)
	if err != nil {
		return CompleteResult{}, err
	}
	return CompleteResult{
		OrderID:    orderID,
		Mode:       ModeSync,
		Status:     models.OrderStatusCompleted,
		Settlement: &res,
	}, nil
}

// completeAsync moves the order to processing and hands it to the worker.
// A publish failure leaves the order in processing for the reconciler.
func (l *Lifecycle) completeAsync(ctx context.Context, orderID uint64) (CompleteResult, error) {
	if l.Publisher == nil {
		return CompleteResult{}, ErrNoSettler
	}
	out := CompleteResult{OrderID: orderID, Mode: ModeAsync}
	err := l.Repo.InTx(ctx, func(tx *gorm.DB) error {
		order, err := l.Repo.LockOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("order %d: %w", orderID, repository.ErrNotFound)
		}
		out.Status = order.Status
		switch order.Status {
		case models.OrderStatusCompleted, models.OrderStatusProcessing:
			return nil
		}
		if err := order.CheckTransition(models.OrderStatusProcessing); err != nil {
			return err
		}
		now := l.now()
		out.Status = models.OrderStatusProcessing
		return l.Repo.UpdateOrderTx(ctx, tx, orderID, map[string]any{
			"status":        models.OrderStatusProcessing,
			"processing_at": now,
		})
	})
	if err != nil {
		return CompleteResult{}, err
	}
	if out.Status == models.OrderStatusCompleted {
		return out, nil
	}

	evt := queue.NewOrderCompleted(orderID, queue.SourceLifecycle)
	if err := l.Publisher.Publish(ctx, evt); err != nil {
		if l.Logger != nil {
			l.Logger.Warn("order event publish failed", zap.Uint64("order_id", orderID), zap.Error(err))
		}
		return out, fmt.Errorf("publish order %d: %w", orderID, err)
	}
	l.Metrics.EventPublished(queue.SourceLifecycle)
	out.EventID = evt.EventID
	return out, nil
}

func (l *Lifecycle) StartProcessing(ctx context.Context, orderID uint64) (*models.Order, error) {
	return l.transition(ctx, orderID, models.OrderStatusProcessing, "")
}

func (l *Lifecycle) Cancel(ctx context.Context, orderID uint64, reason string) (*models.Order, error) {
	return l.transition(ctx, orderID, models.OrderStatusCancelled, reason)
}

func (l *Lifecycle) Fail(ctx context.Context, orderID uint64, reason string) (*models.Order, error) {
	return l.transition(ctx, orderID, models.OrderStatusFailed, reason)
}

func (l *Lifecycle) transition(ctx context.Context, orderID uint64, status string, reason string) (*models.Order, error) {
	var out *models.Order
	err := l.Repo.InTx(ctx, func(tx *gorm.DB) error {
		order, err := l.Repo.LockOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("order %d: %w", orderID, repository.ErrNotFound)
		}
		if err := order.CheckTransition(status); err != nil {
			return err
		}
		now := l.now()
		updates := map[string]any{"status": status}
		switch status {
		case models.OrderStatusProcessing:
			updates["processing_at"] = now
			order.ProcessingAt = &now
		case models.OrderStatusCancelled:
			updates["cancelled_at"] = now
			order.CancelledAt = &now
		case models.OrderStatusFailed:
			updates["failed_at"] = now
			order.FailedAt = &now
		}
		if reason = strings.TrimSpace(reason); reason != "" {
			updates["failure_reason"] = reason
			order.FailureReason = reason
		}
		if err := l.Repo.UpdateOrderTx(ctx, tx, orderID, updates); err != nil {
			return err
		}
		order.Status = status
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if l.Logger != nil {
		l.Logger.Info("order status changed", zap.Uint64("order_id", orderID), zap.String("status", status))
	}
	return out, nil
}

// RepublishStuck re-sends events for orders that have sat in processing
// longer than olderThan. Settlement is idempotent so duplicates are harmless.
func (l *Lifecycle) RepublishStuck(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if l.Publisher == nil {
		return 0, nil
	}
	status := models.OrderStatusProcessing
	cutoff := l.now().Add(-olderThan)
	asc := true
	items, err := l.Repo.ListOrders(ctx, repository.ListOrdersParams{
		Limit:         limit,
		Status:        &status,
		UpdatedBefore: &cutoff,
		OrderBy:       "updated_at",
		Asc:           &asc,
	})
	if err != nil {
		return 0, err
	}
	published := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		if err := l.Publisher.Publish(ctx, queue.NewOrderCompleted(item.ID, queue.SourceReconciler)); err != nil {
			return published, fmt.Errorf("republish order %d: %w", item.ID, err)
		}
		l.Metrics.EventPublished(queue.SourceReconciler)
		published++
		// Touch updated_at so the next sweep waits another olderThan.
		if err := l.Repo.UpdateOrderTx(ctx, nil, item.ID, map[string]any{"updated_at": l.now()}); err != nil && l.Logger != nil {
			l.Logger.Warn("touch stuck order failed", zap.Uint64("order_id", item.ID), zap.Error(err))
		}
	}
	if published > 0 && l.Logger != nil {
		l.Logger.Info("republished stuck orders", zap.Int("count", published))
	}
	return published, nil
}
