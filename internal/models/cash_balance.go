package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceKey identifies one operator cash box.
type BalanceKey struct {
	OperatorID      uint64
	PaymentMethodID uint64
	Currency        string
}

func (k BalanceKey) Normalize() BalanceKey {
	k.Currency = strings.ToUpper(strings.TrimSpace(k.Currency))
	return k
}

func (k BalanceKey) String() string {
	return fmt.Sprintf("%d/%d/%s", k.OperatorID, k.PaymentMethodID, k.Currency)
}

// Less orders keys so that multi-row locks are always taken in the same order.
func (k BalanceKey) Less(other BalanceKey) bool {
	if k.OperatorID != other.OperatorID {
		return k.OperatorID < other.OperatorID
	}
	if k.PaymentMethodID != other.PaymentMethodID {
		return k.PaymentMethodID < other.PaymentMethodID
	}
	return k.Currency < other.Currency
}

// OperatorCashBalance is mutated only through ledger.Store.ApplyDelta.
type OperatorCashBalance struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OperatorID      uint64          `gorm:"not null;uniqueIndex:idx_cash_balance_key" json:"operator_id"`
	PaymentMethodID uint64          `gorm:"not null;uniqueIndex:idx_cash_balance_key" json:"payment_method_id"`
	Currency        string          `gorm:"type:varchar(3);not null;uniqueIndex:idx_cash_balance_key" json:"currency"`
	Balance         decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0" json:"balance"`
	Version         uint64          `gorm:"not null;default:0" json:"version"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OperatorCashBalance) TableName() string {
	return "operator_cash_balances"
}

func (b *OperatorCashBalance) Key() BalanceKey {
	return BalanceKey{OperatorID: b.OperatorID, PaymentMethodID: b.PaymentMethodID, Currency: b.Currency}
}
