package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusFailed     = "failed"
)

// Order is a currency trade executed by an operator for an exchange house.
// Entering OrderStatusCompleted is the only transition with ledger side effects
// and it happens inside the settlement transaction.
type Order struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber     string `gorm:"type:varchar(40);not null;uniqueIndex" json:"order_number"`
	ExchangeHouseID uint64 `gorm:"not null;index" json:"exchange_house_id"`
	CustomerID      uint64 `gorm:"not null;index" json:"customer_id"`
	OperatorID      uint64 `gorm:"not null;index" json:"operator_id"`
	CurrencyPairID  uint64 `gorm:"not null;index" json:"currency_pair_id"`

	BaseAmount  decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"base_amount"`
	QuoteAmount decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"quote_amount"`
	// AppliedRate is the rate charged to the customer; MarketRate is the
	// reference rate captured at intake and feeds the spread commission.
	AppliedRate decimal.Decimal  `gorm:"type:numeric(20,10);not null;default:0" json:"applied_rate"`
	MarketRate  *decimal.Decimal `gorm:"type:numeric(20,10)" json:"market_rate,omitempty"`

	Status        string `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	FailureReason string `gorm:"type:text" json:"failure_reason,omitempty"`

	ProcessingAt *time.Time `json:"processing_at,omitempty"`
	SettledAt    *time.Time `json:"settled_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed},
}

func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

func (o *Order) CanTransitionTo(status string) bool {
	for _, next := range orderTransitions[o.Status] {
		if next == status {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidStatusTransition wrapped with both statuses.
func (o *Order) CheckTransition(status string) error {
	if o.CanTransitionTo(status) {
		return nil
	}
	return fmt.Errorf("order %d %s -> %s: %w", o.ID, o.Status, status, ErrInvalidStatusTransition)
}

// Validate checks the intake invariants.
func (o *Order) Validate() error {
	if o.BaseAmount.IsNegative() || o.QuoteAmount.IsNegative() {
		return fmt.Errorf("order %s: amounts must be non-negative: %w", o.OrderNumber, ErrInvalidOrder)
	}
	if o.CurrencyPairID == 0 {
		return fmt.Errorf("order %s: currency pair required: %w", o.OrderNumber, ErrInvalidOrder)
	}
	return nil
}
