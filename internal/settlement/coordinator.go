package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"kuberafi/internal/audit"
	"kuberafi/internal/commission"
	"kuberafi/internal/db"
	"kuberafi/internal/ledger"
	"kuberafi/internal/models"
	"kuberafi/internal/paymentmethod"
	"kuberafi/internal/repository"
)

type Repository interface {
	repository.OrderRepository
	repository.CommissionRepository
}

type Result struct {
	OrderID        uint64                   `json:"order_id"`
	AlreadySettled bool                     `json:"already_settled"`
	Commission     *models.Commission       `json:"commission,omitempty"`
	Entries        []models.CashLedgerEntry `json:"entries,omitempty"`
	Attempts       int                      `json:"attempts"`
}

// Coordinator turns a completed order into ledger entries and a commission
// inside one transaction.
type Coordinator struct {
	Repo     Repository
	Ledger   *ledger.Service
	Selector *paymentmethod.Selector
	Resolver *commission.Resolver
	Audit    *audit.Recorder
	Logger   *zap.Logger

	MaxAttempts  int
	RetryBackoff time.Duration
	Now          func() time.Time
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// SettleOrder completes orderID. An order that is already completed is a
// successful no-op; cancelled and failed orders are rejected.
func (c *Coordinator) SettleOrder(ctx context.Context, orderID uint64) (Result, error) {
	start := time.Now()
	policy := c.Ledger.PolicyFor(ctx)

	var (
		res     = Result{OrderID: orderID, Attempts: 1}
		order   *models.Order
		applied []ledger.ApplyResult
	)
	err := c.Repo.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = c.Repo.LockOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("order %d: %w", orderID, repository.ErrNotFound)
		}
		if order.IsTerminal() {
			if order.Status == models.OrderStatusCompleted {
				res.AlreadySettled = true
				return nil
			}
			return order.CheckTransition(models.OrderStatusCompleted)
		}
		// A negative amount would flip the credit and debit legs.
		if err := order.Validate(); err != nil {
			return err
		}
		existing, err := c.Repo.GetCommissionByOrderIDTx(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			res.AlreadySettled = true
			res.Commission = existing
			return nil
		}

		pair, err := c.Repo.GetCurrencyPairTx(ctx, tx, order.CurrencyPairID)
		if err != nil {
			return err
		}
		if pair == nil {
			return fmt.Errorf("currency pair %d of order %d: %w", order.CurrencyPairID, order.ID, repository.ErrNotFound)
		}

		inbound, err := c.Selector.SelectInbound(ctx, tx, order.ExchangeHouseID, pair.BaseCurrency)
		if err != nil {
			return err
		}
		outbound, err := c.Selector.SelectOutbound(ctx, tx, order.ExchangeHouseID, pair.QuoteCurrency)
		if err != nil {
			return err
		}

		ref := strconv.FormatUint(order.ID, 10)
		applied, err = c.Ledger.Store.ApplyAll(ctx, tx, []ledger.Mutation{
			{
				Key:           models.BalanceKey{OperatorID: order.OperatorID, PaymentMethodID: inbound.ID, Currency: pair.BaseCurrency},
				Delta:         order.BaseAmount,
				Reason:        "order " + order.OrderNumber + " received",
				ReferenceType: models.ReferenceOrderIn,
				ReferenceID:   ref,
			},
			{
				Key:           models.BalanceKey{OperatorID: order.OperatorID, PaymentMethodID: outbound.ID, Currency: pair.QuoteCurrency},
				Delta:         order.QuoteAmount.Neg(),
				Reason:        "order " + order.OrderNumber + " paid out",
				ReferenceType: models.ReferenceOrderOut,
				ReferenceID:   ref,
			},
		}, policy)
		if err != nil {
			return err
		}

		cfg, err := c.Resolver.Resolve(ctx, tx, order.ExchangeHouseID, order.CurrencyPairID)
		if err != nil {
			return err
		}
		in := commission.InputFor(order, pair)
		calc := commission.Calculate(in, cfg)
		item := &models.Commission{
			OrderID:         order.ID,
			ExchangeHouseID: order.ExchangeHouseID,
			Model:           calc.Model,
			Amount:          calc.Amount,
			Currency:        calc.Currency,
			Breakdown:       commission.Breakdown(in, cfg, calc),
			Status:          models.CommissionStatusPending,
		}
		if err := c.Repo.InsertCommissionTx(ctx, tx, item); err != nil {
			return fmt.Errorf("insert commission for order %d: %w", order.ID, err)
		}
		res.Commission = item

		now := c.now()
		if err := c.Repo.UpdateOrderTx(ctx, tx, order.ID, map[string]any{
			"status":       models.OrderStatusCompleted,
			"completed_at": now,
			"settled_at":   now,
		}); err != nil {
			return err
		}
		order.Status = models.OrderStatusCompleted
		order.CompletedAt = &now
		order.SettledAt = &now
		return nil
	})
	if err != nil {
		c.reportFailure(orderID, err)
		return Result{OrderID: orderID, Attempts: 1}, err
	}
	if res.AlreadySettled {
		c.Audit.SettlementAlreadySettled(orderID)
		return res, nil
	}

	res.Entries = make([]models.CashLedgerEntry, 0, len(applied))
	for _, a := range applied {
		res.Entries = append(res.Entries, a.Entry)
	}
	c.Ledger.Report(applied...)
	c.Audit.SettlementCompleted(order, res.Commission, time.Since(start))
	return res, nil
}

func (c *Coordinator) reportFailure(orderID uint64, err error) {
	switch {
	case errors.Is(err, paymentmethod.ErrNoActivePaymentMethod):
		c.Audit.SettlementAborted(orderID, err)
	case IsRetryable(err):
		// Retries are reported once by SettleOrderWithRetry.
	case errors.Is(err, models.ErrInvalidStatusTransition), errors.Is(err, repository.ErrNotFound):
		if c.Logger != nil {
			c.Logger.Info("settlement rejected", zap.Uint64("order_id", orderID), zap.Error(err))
		}
	default:
		c.Audit.SettlementFailed(orderID, err)
	}
}

func (c *Coordinator) retryParams() (int, time.Duration) {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := c.RetryBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	return attempts, backoff
}

// RetryBudget is the total time SettleOrderWithRetry may spend sleeping
// between attempts.
func (c *Coordinator) RetryBudget() time.Duration {
	attempts, backoff := c.retryParams()
	var total time.Duration
	for i := 1; i < attempts; i++ {
		total += backoff
		backoff *= 2
	}
	return total
}

// IsRetryable reports whether a fresh transaction may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ledger.ErrConcurrentBalanceConflict) || db.IsRetryable(err)
}

// SettleOrderWithRetry retries transient conflicts with exponential backoff.
func (c *Coordinator) SettleOrderWithRetry(ctx context.Context, orderID uint64) (Result, error) {
	attempts, backoff := c.retryParams()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := c.SettleOrder(ctx, orderID)
		if err == nil {
			res.Attempts = attempt
			return res, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return Result{OrderID: orderID, Attempts: attempt}, err
		}
		if attempt == attempts {
			break
		}
		if c.Logger != nil {
			c.Logger.Debug("settlement conflict, retrying",
				zap.Uint64("order_id", orderID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
		}
		select {
		case <-ctx.Done():
			return Result{OrderID: orderID, Attempts: attempt}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	c.Audit.SettlementFailed(orderID, lastErr)
	return Result{OrderID: orderID, Attempts: attempts}, fmt.Errorf("settle order %d after %d attempts: %w", orderID, attempts, lastErr)
}
