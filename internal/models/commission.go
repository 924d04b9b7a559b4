package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	CommissionModelPercentage = "percentage"
	CommissionModelSpread     = "spread"
	CommissionModelMixed      = "mixed"
)

const (
	CommissionStatusPending   = "pending"
	CommissionStatusApproved  = "approved"
	CommissionStatusRejected  = "rejected"
	CommissionStatusPaid      = "paid"
	CommissionStatusCancelled = "cancelled"
)

// Commission is derived exactly once per completed order.
type Commission struct {
	ID              uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID         uint64 `gorm:"not null;uniqueIndex" json:"order_id"`
	ExchangeHouseID uint64 `gorm:"not null;index" json:"exchange_house_id"`

	Model     string          `gorm:"type:varchar(20);not null" json:"model"`
	Amount    decimal.Decimal `gorm:"type:numeric(30,10);not null" json:"amount"`
	Currency  string          `gorm:"type:varchar(3);not null" json:"currency"`
	Breakdown datatypes.JSON  `json:"breakdown,omitempty"`

	Status string `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Notes  string `gorm:"type:text" json:"notes,omitempty"`

	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Commission) TableName() string {
	return "commissions"
}

func (c *Commission) CanApprove() bool { return c.Status == CommissionStatusPending }
func (c *Commission) CanReject() bool  { return c.Status == CommissionStatusPending }
func (c *Commission) CanCancel() bool  { return c.Status == CommissionStatusPending }
func (c *Commission) CanPay() bool     { return c.Status == CommissionStatusApproved }

// CheckTransition validates a move to status using the capability predicates.
func (c *Commission) CheckTransition(status string) error {
	var ok bool
	switch status {
	case CommissionStatusApproved:
		ok = c.CanApprove()
	case CommissionStatusRejected:
		ok = c.CanReject()
	case CommissionStatusCancelled:
		ok = c.CanCancel()
	case CommissionStatusPaid:
		ok = c.CanPay()
	}
	if ok {
		return nil
	}
	return fmt.Errorf("commission %d %s -> %s: %w", c.ID, c.Status, status, ErrInvalidStatusTransition)
}

// CommissionConfig is the per exchange house commission setup. A nil
// CurrencyPairID is the house-wide default.
type CommissionConfig struct {
	ID              uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ExchangeHouseID uint64  `gorm:"not null;index:idx_commission_config_scope" json:"exchange_house_id"`
	CurrencyPairID  *uint64 `gorm:"index:idx_commission_config_scope" json:"currency_pair_id,omitempty"`

	Model          string           `gorm:"type:varchar(20);not null;default:'percentage'" json:"model"`
	PercentageRate decimal.Decimal  `gorm:"type:numeric(20,10);not null;default:0" json:"percentage_rate"`
	SpreadWeight   *decimal.Decimal `gorm:"type:numeric(20,10)" json:"spread_weight,omitempty"`
	IsActive       bool             `gorm:"not null" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CommissionConfig) TableName() string {
	return "commission_configs"
}
