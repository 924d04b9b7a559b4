package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kuberafi/internal/metrics"
	"kuberafi/internal/models"
)

const (
	ActionSettlementCompleted = "settlement_completed"
	ActionSettlementAborted   = "settlement_aborted"
	ActionSettlementFailed    = "settlement_failed"
	ActionNegativeBalance     = "negative_balance"
	ActionManualMovement      = "manual_movement"
	ActionHTTPWrite           = "http_write"
)

// Switch reports whether remote delivery is on. Satisfied by
// service.SystemSettingsService.
type Switch interface {
	IsEnabled(ctx context.Context, key string, fallback bool) bool
}

// Recorder fans settlement and ledger facts out to zap, Prometheus and the
// remote audit log. None of it is needed for correctness; a nil Recorder or
// any nil field is skipped.
type Recorder struct {
	Logger  *zap.Logger
	Metrics *metrics.Registry
	Client  *Client
	Flags   Switch
	// FlagKey gates remote delivery when Flags is set.
	FlagKey string

	queue chan Event
}

func NewRecorder(logger *zap.Logger, reg *metrics.Registry, client *Client, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	return &Recorder{Logger: logger, Metrics: reg, Client: client, queue: make(chan Event, buffer)}
}

// Run drains queued remote events until ctx is done.
func (r *Recorder) Run(ctx context.Context) {
	if r == nil || r.queue == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-r.queue:
			r.deliver(ctx, evt)
		}
	}
}

func (r *Recorder) deliver(ctx context.Context, evt Event) {
	if r.Client == nil {
		return
	}
	if r.Flags != nil && r.FlagKey != "" && !r.Flags.IsEnabled(ctx, r.FlagKey, true) {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Client.Send(sendCtx, evt); err != nil && r.Logger != nil {
		r.Logger.Debug("remote audit failed", zap.String("action", evt.Action), zap.Error(err))
	}
}

func (r *Recorder) enqueue(action, level string, details map[string]any) {
	if r == nil || r.Client == nil || r.queue == nil {
		return
	}
	evt := Event{
		ID:      uuid.NewString(),
		Action:  action,
		Level:   level,
		Details: details,
	}
	select {
	case r.queue <- evt:
	default:
		if r.Logger != nil {
			r.Logger.Debug("audit queue full, dropping event", zap.String("action", action))
		}
	}
}

func (r *Recorder) SettlementCompleted(order *models.Order, commission *models.Commission, elapsed time.Duration) {
	if r == nil || order == nil {
		return
	}
	r.Metrics.Settlement(metrics.OutcomeSettled, elapsed)
	details := map[string]any{
		"order_id":          order.ID,
		"order_number":      order.OrderNumber,
		"exchange_house_id": order.ExchangeHouseID,
		"operator_id":       order.OperatorID,
		"elapsed":           elapsed.String(),
	}
	if commission != nil {
		r.Metrics.Commission(commission.Model)
		details["commission_id"] = commission.ID
		details["commission_amount"] = commission.Amount.String()
		details["commission_currency"] = commission.Currency
	}
	if r.Logger != nil {
		r.Logger.Info("order settled",
			zap.Uint64("order_id", order.ID),
			zap.String("order_number", order.OrderNumber),
			zap.Duration("elapsed", elapsed),
		)
	}
	r.enqueue(ActionSettlementCompleted, "info", details)
}

func (r *Recorder) SettlementAlreadySettled(orderID uint64) {
	if r == nil {
		return
	}
	r.Metrics.Settlement(metrics.OutcomeAlreadySettled, 0)
	if r.Logger != nil {
		r.Logger.Debug("order already settled", zap.Uint64("order_id", orderID))
	}
}

// SettlementAborted records a settlement that rolled back because routing
// configuration is missing. The order stays untouched and can be retried.
func (r *Recorder) SettlementAborted(orderID uint64, err error) {
	if r == nil {
		return
	}
	r.Metrics.Settlement(metrics.OutcomeAborted, 0)
	if r.Logger != nil {
		r.Logger.Warn("settlement aborted", zap.Uint64("order_id", orderID), zap.Error(err))
	}
	r.enqueue(ActionSettlementAborted, "warn", map[string]any{
		"order_id": orderID,
		"error":    errString(err),
	})
}

func (r *Recorder) SettlementFailed(orderID uint64, err error) {
	if r == nil {
		return
	}
	r.Metrics.Settlement(metrics.OutcomeFailed, 0)
	if r.Logger != nil {
		r.Logger.Error("settlement failed", zap.Uint64("order_id", orderID), zap.Error(err))
	}
	r.enqueue(ActionSettlementFailed, "error", map[string]any{
		"order_id": orderID,
		"error":    errString(err),
	})
}

func (r *Recorder) LedgerEntry(entry *models.CashLedgerEntry) {
	if r == nil || entry == nil {
		return
	}
	r.Metrics.LedgerEntry(entry.ReferenceType)
}

func (r *Recorder) NegativeBalance(key models.BalanceKey, resulting decimal.Decimal, referenceType, referenceID string) {
	if r == nil {
		return
	}
	r.Metrics.NegativeBalance(key.Currency)
	if r.Logger != nil {
		r.Logger.Warn("cash balance below zero",
			zap.String("balance_key", key.String()),
			zap.String("resulting_balance", resulting.String()),
			zap.String("reference_type", referenceType),
			zap.String("reference_id", referenceID),
		)
	}
	r.enqueue(ActionNegativeBalance, "warn", map[string]any{
		"operator_id":       key.OperatorID,
		"payment_method_id": key.PaymentMethodID,
		"currency":          key.Currency,
		"resulting_balance": resulting.String(),
		"reference_type":    referenceType,
		"reference_id":      referenceID,
	})
}

func (r *Recorder) ManualMovement(entry *models.CashLedgerEntry) {
	if r == nil || entry == nil {
		return
	}
	if r.Logger != nil {
		r.Logger.Info("manual cash movement",
			zap.Uint64("operator_id", entry.OperatorID),
			zap.Uint64("payment_method_id", entry.PaymentMethodID),
			zap.String("currency", entry.Currency),
			zap.String("delta", entry.Delta.String()),
			zap.String("reference_type", entry.ReferenceType),
		)
	}
	r.enqueue(ActionManualMovement, "info", map[string]any{
		"entry_id":          entry.ID,
		"operator_id":       entry.OperatorID,
		"payment_method_id": entry.PaymentMethodID,
		"currency":          entry.Currency,
		"delta":             entry.Delta.String(),
		"reference_type":    entry.ReferenceType,
		"reference_id":      entry.ReferenceID,
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
